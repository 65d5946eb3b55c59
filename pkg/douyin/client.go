package douyin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"dycrawler/pkg/config"
	errs "dycrawler/pkg/errors"
	"dycrawler/pkg/logger"
	"dycrawler/pkg/retry"
)

const (
	// DefaultAPITimeout bounds a whole listing request
	DefaultAPITimeout = 15 * time.Second
	// DefaultMediaTimeout bounds the wait for media headers and each read after that
	DefaultMediaTimeout = 30 * time.Second
)

// Options configures a Client
type Options struct {
	BaseURL      string
	Headers      map[string]string
	APITimeout   time.Duration
	MediaTimeout time.Duration
	Retry        *retry.Config
	Logger       logger.Logger
	// Transport overrides the pooled transport, mainly for tests
	Transport http.RoundTripper
}

// Client talks to the listing API and the media CDN through one pooled
// http.Client. Every request is retried on transient failures.
type Client struct {
	httpClient   *http.Client
	headers      map[string]string
	baseURL      string
	apiTimeout   time.Duration
	mediaTimeout time.Duration
	retry        *retry.Config
	logger       logger.Logger
}

// NewTransport returns the connection-pooling transport shared by a crawl
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

// DefaultHeaders returns the static headers sent with every request
func DefaultHeaders(cfg config.DouyinConfig) map[string]string {
	headers := map[string]string{
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": cfg.AcceptLanguage,
		"User-Agent":      cfg.UserAgent,
		"Referer":         cfg.Referer,
	}
	if cfg.Cookie != "" {
		headers["Cookie"] = cfg.Cookie
	}
	for k, v := range cfg.ExtraHeaders {
		headers[k] = v
	}
	for k, v := range headers {
		if v == "" {
			delete(headers, k)
		}
	}
	return headers
}

// NewClient creates a new client
func NewClient(opts Options) *Client {
	log := logger.OrGlobal(opts.Logger)

	transport := opts.Transport
	if transport == nil {
		transport = NewTransport()
	}
	if opts.APITimeout <= 0 {
		opts.APITimeout = DefaultAPITimeout
	}
	if opts.MediaTimeout <= 0 {
		opts.MediaTimeout = DefaultMediaTimeout
	}
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if retryCfg.Logger == nil {
		rc := *retryCfg
		rc.Logger = log
		retryCfg = &rc
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &Client{
		// Timeouts are applied per request through the context so that
		// long media streams are not cut off by a client-wide deadline.
		httpClient:   &http.Client{Transport: transport},
		headers:      headers,
		baseURL:      opts.BaseURL,
		apiTimeout:   opts.APITimeout,
		mediaTimeout: opts.MediaTimeout,
		retry:        retryCfg,
		logger:       log,
	}
}

// NewClientFromConfig builds a client from the application configuration
func NewClientFromConfig(cfg *config.Config, log logger.Logger) *Client {
	return NewClient(Options{
		BaseURL:      cfg.Douyin.APIBaseURL,
		Headers:      DefaultHeaders(cfg.Douyin),
		APITimeout:   cfg.Download.APITimeout,
		MediaTimeout: cfg.Download.MediaTimeout,
		Retry:        retry.FromSettings(cfg.Retry, log),
		Logger:       log,
	})
}

// Close releases idle pooled connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// doRequest performs one GET with the configured headers and maps
// transport failures and unexpected statuses to typed errors.
// The caller owns the returned body.
func (c *Client) doRequest(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidURL, err, "failed to create request")
	}

	// headers are fixed at construction
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "request failed")
	}

	logger.LogRequest(c.logger, req.Method, rawURL, resp.StatusCode, duration)

	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp.Body)
		return nil, errs.FromStatus(resp.StatusCode, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON response.
// Each attempt gets the API timeout; transient failures are retried.
func (c *Client) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	return retry.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.apiTimeout)
		defer cancel()

		resp, err := c.doRequest(attemptCtx, rawURL)
		if err != nil {
			return c.checkParentCancelled(ctx, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return c.checkParentCancelled(ctx, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body"))
		}

		if err := json.Unmarshal(body, target); err != nil {
			preview := string(body)
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
				"url":          rawURL,
				"error":        err.Error(),
				"body_preview": preview,
			})
			return errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse JSON")
		}
		return nil
	}, c.retry)
}

// checkParentCancelled reports cancellation of the caller's context as such,
// so that a per-attempt timeout stays a retryable network error.
func (c *Client) checkParentCancelled(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	return err
}

// FetchPosts fetches one page of an account's posts
func (c *Client) FetchPosts(ctx context.Context, secUserID string, cursor int64, count int) (*PostListResponse, error) {
	url := PostListURL(c.baseURL, secUserID, cursor, count)

	c.logger.DebugWithFields("fetching post list", map[string]interface{}{
		"sec_user_id": secUserID,
		"max_cursor":  cursor,
		"url":         url,
	})

	var page PostListResponse
	if err := c.GetJSON(ctx, url, &page); err != nil {
		return nil, err
	}

	if page.StatusCode != 0 {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeHTTP,
			Message: fmt.Sprintf("api status %d: %s", page.StatusCode, page.StatusMsg),
		}
	}

	return &page, nil
}

// ErrMediaTimeout reports a media request that made no progress within the media timeout
var ErrMediaTimeout = errors.New("media request timed out")

// MediaStream is an open media response
type MediaStream struct {
	io.ReadCloser
	// ContentLength is -1 when the server did not send one
	ContentLength int64
}

// OpenMedia opens a media URL for streaming. Opening is retried like any
// other request; once headers arrive, every Read must make progress within
// the media timeout or the stream fails.
func (c *Client) OpenMedia(ctx context.Context, rawURL string) (*MediaStream, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*MediaStream, error) {
		streamCtx, cancel := context.WithCancelCause(ctx)
		watchdog := time.AfterFunc(c.mediaTimeout, func() { cancel(ErrMediaTimeout) })

		resp, err := c.doRequest(streamCtx, rawURL)
		if err != nil {
			watchdog.Stop()
			timedOut := errors.Is(context.Cause(streamCtx), ErrMediaTimeout)
			cancel(nil)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if timedOut {
				return nil, errs.Wrap(errs.ErrorTypeNetwork, ErrMediaTimeout, "no media response")
			}
			return nil, err
		}

		return &MediaStream{
			ReadCloser: &stallReader{
				body:     resp.Body,
				parent:   ctx,
				ctx:      streamCtx,
				watchdog: watchdog,
				timeout:  c.mediaTimeout,
				cancel:   cancel,
			},
			ContentLength: resp.ContentLength,
		}, nil
	}, c.retry)
}

// stallReader fails a stream that makes no progress for timeout
type stallReader struct {
	body     io.ReadCloser
	parent   context.Context
	ctx      context.Context
	watchdog *time.Timer
	timeout  time.Duration
	cancel   context.CancelCauseFunc
}

func (r *stallReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if n > 0 {
		r.watchdog.Reset(r.timeout)
	}
	if err != nil && err != io.EOF {
		if r.parent.Err() != nil {
			return n, r.parent.Err()
		}
		if errors.Is(context.Cause(r.ctx), ErrMediaTimeout) {
			err = ErrMediaTimeout
		}
		return n, errs.Wrap(errs.ErrorTypeNetwork, err, "media stream interrupted")
	}
	return n, err
}

func (r *stallReader) Close() error {
	r.watchdog.Stop()
	r.cancel(nil)
	return r.body.Close()
}

func drainAndClose(body io.ReadCloser) {
	io.CopyN(io.Discard, body, 4096)
	body.Close()
}
