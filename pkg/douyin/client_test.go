package douyin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dycrawler/pkg/config"
	errs "dycrawler/pkg/errors"
	"dycrawler/pkg/logger"
	"dycrawler/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(maxRetries int) *retry.Config {
	return &retry.Config{
		MaxRetries: maxRetries,
		Backoff:    &retry.ExponentialBackoff{BaseDelay: time.Millisecond, Multiplier: 2},
	}
}

func newTestClient(t *testing.T, server *httptest.Server, retries int) *Client {
	t.Helper()
	c := NewClient(Options{
		BaseURL: server.URL,
		Headers: DefaultHeaders(config.DefaultConfig().Douyin),
		Retry:   fastRetry(retries),
		Logger:  logger.NewNopLogger(),
	})
	t.Cleanup(c.Close)
	return c
}

func writePage(w http.ResponseWriter, page PostListResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Options{Logger: logger.NewNopLogger()})
	assert.Equal(t, BaseURL, c.baseURL)
	assert.Equal(t, DefaultAPITimeout, c.apiTimeout)
	assert.Equal(t, DefaultMediaTimeout, c.mediaTimeout)
	assert.Equal(t, 3, c.retry.MaxRetries)
	assert.NotNil(t, c.retry.Logger)
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Douyin.Cookie = "ttwid=1"
	cfg.Retry.MaxRetries = 5

	c := NewClientFromConfig(cfg, logger.NewNopLogger())
	assert.Equal(t, "ttwid=1", c.headers["Cookie"])
	assert.Equal(t, 5, c.retry.MaxRetries)
	assert.Equal(t, 15*time.Second, c.apiTimeout)
	assert.Equal(t, 30*time.Second, c.mediaTimeout)
}

func TestDefaultHeaders(t *testing.T) {
	cfg := config.DefaultConfig().Douyin
	cfg.ExtraHeaders = map[string]string{"X-Test": "1"}

	h := DefaultHeaders(cfg)
	assert.Equal(t, "application/json, text/plain, */*", h["Accept"])
	assert.Equal(t, "https://www.douyin.com/", h["Referer"])
	assert.Equal(t, "1", h["X-Test"])
	_, hasCookie := h["Cookie"]
	assert.False(t, hasCookie)
}

func TestFetchPosts(t *testing.T) {
	var gotHeaders http.Header
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotQuery = r.URL.RawQuery
		assert.Equal(t, PostListEndpoint, r.URL.Path)
		writePage(w, PostListResponse{
			HasMore:   true,
			MaxCursor: 42,
			AwemeList: []Aweme{{AwemeID: "1", Desc: "hi"}},
		})
	}))
	defer server.Close()

	c := newTestClient(t, server, 0)
	c.headers["Cookie"] = "sid=abc"

	page, err := c.FetchPosts(context.Background(), "SEC", 7, 18)
	require.NoError(t, err)
	assert.True(t, bool(page.HasMore))
	assert.Equal(t, int64(42), page.MaxCursor)
	require.Len(t, page.AwemeList, 1)

	assert.Contains(t, gotQuery, "sec_user_id=SEC")
	assert.Contains(t, gotQuery, "max_cursor=7")
	assert.Equal(t, "sid=abc", gotHeaders.Get("Cookie"))
	assert.Contains(t, gotHeaders.Get("User-Agent"), "Mobile")
}

func TestFetchPostsAPIStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, PostListResponse{StatusCode: 2053, StatusMsg: "user not found"})
	}))
	defer server.Close()

	_, err := newTestClient(t, server, 3).FetchPosts(context.Background(), "SEC", 0, 18)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeHTTP, errs.TypeOf(err))
	assert.Contains(t, err.Error(), "user not found")
}

func TestGetJSONRetriesOn503(t *testing.T) {
	var requests int32
	var mu sync.Mutex
	var stamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var delays []time.Duration
	c := NewClient(Options{
		BaseURL: server.URL,
		Logger:  logger.NewNopLogger(),
		Retry: &retry.Config{
			MaxRetries: 3,
			Backoff:    &retry.ExponentialBackoff{BaseDelay: 10 * time.Millisecond, Multiplier: 2},
			OnRetry: func(n int, err error, d time.Duration) {
				delays = append(delays, d)
			},
		},
	})

	var out map[string]interface{}
	err := c.GetJSON(context.Background(), server.URL+"/x", &out)
	require.Error(t, err)

	assert.Equal(t, int32(4), atomic.LoadInt32(&requests), "first attempt plus three retries")
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, errs.ErrorTypeServerError, errs.TypeOf(err))
	assert.Equal(t, http.StatusServiceUnavailable, errs.StatusCode(err))

	require.Len(t, delays, 3)
	assert.Less(t, delays[0], delays[1])
	assert.Less(t, delays[1], delays[2])

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, stamps[3].Sub(stamps[2]), stamps[1].Sub(stamps[0]))
}

func TestGetJSONTransientStatuses(t *testing.T) {
	for _, status := range []int{429, 500, 502, 503, 504} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			var requests int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&requests, 1) == 1 {
					w.WriteHeader(status)
					return
				}
				io.WriteString(w, `{"ok":true}`)
			}))
			defer server.Close()

			var out struct{ OK bool }
			require.NoError(t, newTestClient(t, server, 3).GetJSON(context.Background(), server.URL, &out))
			assert.True(t, out.OK)
			assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
		})
	}
}

func TestGetJSONNonTransientFailsImmediately(t *testing.T) {
	for _, status := range []int{400, 403, 404, 501} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			var requests int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&requests, 1)
				w.WriteHeader(status)
			}))
			defer server.Close()

			var out interface{}
			err := newTestClient(t, server, 3).GetJSON(context.Background(), server.URL, &out)
			require.Error(t, err)
			assert.Equal(t, errs.ErrorTypeHTTP, errs.TypeOf(err))
			assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
		})
	}
}

func TestGetJSONParsingError(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		io.WriteString(w, "<html>captcha</html>")
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	c := newTestClient(t, server, 3)
	c.logger = log

	var out PostListResponse
	err := c.GetJSON(context.Background(), server.URL, &out)
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	assert.True(t, log.HasMessage("failed to parse JSON response"))
}

func TestGetJSONConnectionFailureRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	var retries int32
	c := NewClient(Options{
		Logger: logger.NewNopLogger(),
		Retry: &retry.Config{
			MaxRetries: 2,
			Backoff:    &retry.ConstantBackoff{Delay: time.Millisecond},
			OnRetry:    func(int, error, time.Duration) { atomic.AddInt32(&retries, 1) },
		},
	})

	var out interface{}
	err := c.GetJSON(context.Background(), addr, &out)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&retries))
}

func TestGetJSONAPITimeout(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	c := NewClient(Options{
		APITimeout: 30 * time.Millisecond,
		Retry:      fastRetry(1),
		Logger:     logger.NewNopLogger(),
	})

	var out interface{}
	err := c.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestGetJSONCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(Options{
		Logger: logger.NewNopLogger(),
		Retry: &retry.Config{
			MaxRetries: 3,
			Backoff:    &retry.ConstantBackoff{Delay: time.Hour},
			OnRetry:    func(int, error, time.Duration) { cancel() },
		},
	})

	var out interface{}
	err := c.GetJSON(ctx, server.URL, &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, errs.IsCancelled(err))
}

func TestOpenMedia(t *testing.T) {
	payload := strings.Repeat("v", 10000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		io.WriteString(w, payload)
	}))
	defer server.Close()

	stream, err := newTestClient(t, server, 0).OpenMedia(context.Background(), server.URL+"/v.mp4")
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, int64(len(payload)), stream.ContentLength)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestOpenMediaRetriesStatus(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	stream, err := newTestClient(t, server, 3).OpenMedia(context.Background(), server.URL)
	require.NoError(t, err)
	stream.Close()
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestOpenMediaForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestClient(t, server, 3).OpenMedia(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, errs.StatusCode(err))
	assert.False(t, errs.IsRetryableError(err))
}

func TestOpenMediaStallTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		io.WriteString(w, "partial")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(Options{
		MediaTimeout: 50 * time.Millisecond,
		Retry:        fastRetry(0),
		Logger:       logger.NewNopLogger(),
	})

	stream, err := c.OpenMedia(context.Background(), server.URL)
	require.NoError(t, err)
	defer stream.Close()

	_, err = io.ReadAll(stream)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMediaTimeout))
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestOpenMediaCancelledMidStream(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "partial")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := newTestClient(t, server, 0).OpenMedia(ctx, server.URL)
	require.NoError(t, err)
	defer stream.Close()

	buf := make([]byte, 7)
	_, err = io.ReadFull(stream, buf)
	require.NoError(t, err)

	cancel()
	_, err = io.ReadAll(stream)
	assert.True(t, errs.IsCancelled(err))
}
