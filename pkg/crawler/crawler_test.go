package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dycrawler/pkg/config"
	"dycrawler/pkg/douyin"
	errs "dycrawler/pkg/errors"
	"dycrawler/pkg/logger"
)

const testProfile = "https://www.douyin.com/user/MS4wLjABAAAA-test_1?from=share"

type video struct {
	id, desc string
	body     []byte
	// failures is the number of 503 responses served before the body
	failures int32
	status   int
}

// mockAPI serves one listing page per entry in pages and media under /media/<id>
type mockAPI struct {
	*httptest.Server
	mu        sync.Mutex
	pages     [][]*video
	videos    map[string]*video
	listCalls int32
	block     chan struct{}
}

func newMockAPI(t *testing.T, pages ...[]*video) *mockAPI {
	t.Helper()
	m := &mockAPI{pages: pages, videos: map[string]*video{}}
	for _, p := range pages {
		for _, v := range p {
			m.videos[v.id] = v
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(douyin.PostListEndpoint, m.handleList)
	mux.HandleFunc("/media/", m.handleMedia)
	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Close)
	return m
}

func (m *mockAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-r.Context().Done():
			return
		}
	}
	call := int(atomic.AddInt32(&m.listCalls, 1))

	resp := douyin.PostListResponse{}
	if call <= len(m.pages) {
		for _, v := range m.pages[call-1] {
			a := douyin.Aweme{AwemeID: v.id, Desc: v.desc}
			a.Video.PlayAddr.URLList = []string{m.URL + "/media/" + v.id}
			resp.AwemeList = append(resp.AwemeList, a)
		}
		resp.HasMore = douyin.Flag(call < len(m.pages))
		resp.MaxCursor = int64(call)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (m *mockAPI) handleMedia(w http.ResponseWriter, r *http.Request) {
	v := m.videos[strings.TrimPrefix(r.URL.Path, "/media/")]
	if v == nil {
		http.NotFound(w, r)
		return
	}
	if v.status != 0 {
		w.WriteHeader(v.status)
		return
	}
	if atomic.AddInt32(&v.failures, -1) >= 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(v.body)))
	w.Write(v.body)
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Douyin.APIBaseURL = baseURL
	cfg.Crawl.PageDelay = time.Millisecond
	cfg.Download.DownloadDelay = time.Millisecond
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 10 * time.Millisecond
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Output.FallbackDirectory = ""
	return cfg
}

func drain(h *Handle) []Event {
	var events []Event
	for ev := range h.Events() {
		events = append(events, ev)
	}
	return events
}

func TestRunDownloadsEveryVideo(t *testing.T) {
	api := newMockAPI(t, []*video{
		{id: "1", desc: "first clip", body: []byte("one")},
		{id: "2", desc: "second: clip?", body: []byte("two")},
	})
	cfg := testConfig(t, api.URL)

	summary, err := New(cfg, logger.NewNopLogger()).Run(context.Background(), testProfile, "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 2, summary.Requested)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, "MS4wLjABAAAA-test_1", summary.SecUserID)
	assert.NoError(t, summary.Err())

	data, err := os.ReadFile(filepath.Join(cfg.Output.BaseDirectory, "first clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
	assert.FileExists(t, filepath.Join(cfg.Output.BaseDirectory, "second clip.mp4"))
}

func TestRunLogsProfileWorkersAndSavedFiles(t *testing.T) {
	api := newMockAPI(t, []*video{
		{id: "1", desc: "first clip", body: []byte("one")},
		{id: "2", desc: "second clip", body: []byte("two")},
	})
	cfg := testConfig(t, api.URL)
	cfg.Download.ConcurrentDownloads = 2
	log := logger.NewTestLogger()

	_, err := New(cfg, log).Run(context.Background(), testProfile, "")
	require.NoError(t, err)

	fields := func(msg string) map[string]interface{} {
		for _, m := range log.GetMessages() {
			if m.Message == msg {
				return m.Fields
			}
		}
		t.Fatalf("no %q log line", msg)
		return nil
	}
	assert.Equal(t, "https://www.douyin.com/user/MS4wLjABAAAA-test_1", fields("Crawl started")["profile"])
	assert.Equal(t, 2, fields("Downloading videos")["workers"])
	assert.Equal(t, 2, fields("Crawl finished")["files_saved"])
}

func TestRunFollowsPages(t *testing.T) {
	api := newMockAPI(t,
		[]*video{{id: "1", desc: "a", body: []byte("1")}},
		[]*video{{id: "2", desc: "b", body: []byte("2")}},
		[]*video{{id: "3", desc: "c", body: []byte("3")}},
	)

	summary, err := New(testConfig(t, api.URL), logger.NewNopLogger()).Run(context.Background(), testProfile, "")

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Pages)
	assert.EqualValues(t, 3, atomic.LoadInt32(&api.listCalls))
	require.Len(t, summary.Results, 3)
	for i, r := range summary.Results {
		assert.Equal(t, i, r.Item.Index)
	}
}

func TestRunNoVideosFound(t *testing.T) {
	api := newMockAPI(t, []*video{})
	cfg := testConfig(t, api.URL)

	h := New(cfg, logger.NewNopLogger()).Start(testProfile, "")
	events := drain(h)
	summary, err := h.Wait()

	require.NoError(t, err)
	assert.Equal(t, OutcomeNoVideosFound, summary.Outcome)
	assert.Equal(t, 0, summary.Requested)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventStatus, last.Type)
	assert.True(t, last.Terminal)
	assert.Equal(t, "no videos found: 0 succeeded, 0 failed of 0", last.Message)

	entries, _ := os.ReadDir(cfg.Output.BaseDirectory)
	assert.Empty(t, entries)
}

func TestRunInvalidURL(t *testing.T) {
	summary, err := New(testConfig(t, "http://127.0.0.1:0"), logger.NewNopLogger()).
		Run(context.Background(), "https://www.douyin.com/discover", "")

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeInvalidURL))
	assert.ErrorIs(t, err, douyin.ErrNotFound)
	assert.Equal(t, OutcomeFailed, summary.Outcome)
}

func TestRunFailureMessageCarriesCounts(t *testing.T) {
	h := New(testConfig(t, "http://127.0.0.1:0"), logger.NewNopLogger()).
		Start("https://www.douyin.com/discover", "")
	events := drain(h)
	_, err := h.Wait()
	require.Error(t, err)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.Terminal)
	assert.True(t, strings.HasPrefix(last.Message, "failed: "))
	assert.True(t, strings.HasSuffix(last.Message, "(0 succeeded, 0 failed of 0)"), last.Message)
}

func TestRunIsolatesItemFailures(t *testing.T) {
	api := newMockAPI(t, []*video{
		{id: "1", desc: "ok", body: []byte("1")},
		{id: "2", desc: "forbidden", status: http.StatusForbidden},
		{id: "3", desc: "flaky", body: []byte("3"), failures: 2},
	})

	summary, err := New(testConfig(t, api.URL), logger.NewNopLogger()).Run(context.Background(), testProfile, "")

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Requested)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Error(t, summary.Err())
	assert.Contains(t, summary.Err().Error(), "forbidden")
}

func TestRunCollisionSuffix(t *testing.T) {
	api := newMockAPI(t, []*video{
		{id: "1", desc: "same", body: []byte("1")},
		{id: "2", desc: "same", body: []byte("2")},
	})
	cfg := testConfig(t, api.URL)

	summary, err := New(cfg, logger.NewNopLogger()).Run(context.Background(), testProfile, "")

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.FileExists(t, filepath.Join(cfg.Output.BaseDirectory, "same.mp4"))
	assert.FileExists(t, filepath.Join(cfg.Output.BaseDirectory, "same_2.mp4"))
}

func TestRunPerAccountFolder(t *testing.T) {
	api := newMockAPI(t, []*video{{id: "1", desc: "x", body: []byte("1")}})
	cfg := testConfig(t, api.URL)
	cfg.Output.CreateUserFolders = true

	summary, err := New(cfg, logger.NewNopLogger()).Run(context.Background(), testProfile, "")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Output.BaseDirectory, "MS4wLjABAAAA-test_1"), summary.Directory)
	assert.FileExists(t, filepath.Join(summary.Directory, "x.mp4"))
}

func TestStartCancelAfterFirstItem(t *testing.T) {
	api := newMockAPI(t, []*video{
		{id: "1", desc: "a", body: []byte("1")},
		{id: "2", desc: "b", body: []byte("2")},
		{id: "3", desc: "c", body: []byte("3")},
	})
	cfg := testConfig(t, api.URL)
	cfg.Download.DownloadDelay = 300 * time.Millisecond

	h := New(cfg, logger.NewNopLogger()).Start(testProfile, "")
	var terminal *Event
	for ev := range h.Events() {
		if ev.Type == EventStatus && !ev.Terminal && ev.Completed == 1 {
			h.Cancel()
			h.Cancel()
		}
		if ev.Terminal {
			e := ev
			terminal = &e
		}
	}
	summary, err := h.Wait()

	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, summary.Outcome)
	assert.Equal(t, 3, summary.Requested)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 2, summary.Cancelled)

	require.NotNil(t, terminal)
	require.NotNil(t, terminal.Summary)
	assert.Equal(t, 1, terminal.Summary.Succeeded)
	assert.Equal(t, 3, terminal.Total)
}

func TestStartProgressIsMonotonic(t *testing.T) {
	body := bytes.Repeat([]byte{0xAB}, 10<<20)
	api := newMockAPI(t, []*video{{id: "big", desc: "big", body: body}})

	h := New(testConfig(t, api.URL), logger.NewNopLogger()).Start(testProfile, "")
	var percents []float64
	for ev := range h.Events() {
		if ev.Type == EventProgress {
			percents = append(percents, ev.Percent)
		}
	}
	summary, err := h.Wait()

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	require.Greater(t, len(percents), 1)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
	assert.Equal(t, 100.0, percents[len(percents)-1])
	assert.EqualValues(t, len(body), summary.Results[0].Size)
}

func TestStartEmitsLogLines(t *testing.T) {
	api := newMockAPI(t, []*video{{id: "1", desc: "hello", body: []byte("1")}})

	h := New(testConfig(t, api.URL), logger.NewNopLogger()).Start(testProfile, "")
	var logs []string
	for ev := range h.Events() {
		if ev.Type == EventLog {
			logs = append(logs, ev.Message)
		}
	}
	_, err := h.Wait()
	require.NoError(t, err)

	assert.Contains(t, logs, "found video: hello")
	assert.Contains(t, logs, "found 1 videos")
	assert.Contains(t, logs, "downloading 1/1: hello")
}

func TestAlreadyRunning(t *testing.T) {
	api := newMockAPI(t, []*video{{id: "1", desc: "a", body: []byte("1")}})
	api.block = make(chan struct{})
	c := New(testConfig(t, api.URL), logger.NewNopLogger())

	h := c.Start(testProfile, "")
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.running
	}, time.Second, 5*time.Millisecond)

	_, err := c.Run(context.Background(), testProfile, "")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	h.Cancel()
	drain(h)
	summary, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, summary.Outcome)
	close(api.block)
}
