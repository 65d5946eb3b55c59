package crawler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"dycrawler/internal/downloader"
	"dycrawler/pkg/config"
	"dycrawler/pkg/douyin"
	errs "dycrawler/pkg/errors"
	"dycrawler/pkg/logger"
	"dycrawler/pkg/models"
	"dycrawler/pkg/ratelimit"
	"dycrawler/pkg/storage"
)

// DefaultEventBuffer is the capacity of a Handle's event channel
const DefaultEventBuffer = 256

// ErrAlreadyRunning is returned when a Crawler is asked to run twice at once
var ErrAlreadyRunning = errors.New("a crawl is already running")

// Crawler resolves an account, walks its catalogue and downloads every video
type Crawler struct {
	cfg    *config.Config
	logger logger.Logger

	mu      sync.Mutex
	running bool
}

// New creates a Crawler for cfg
func New(cfg *config.Config, log logger.Logger) *Crawler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Crawler{cfg: cfg, logger: logger.OrGlobal(log)}
}

func (c *Crawler) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}
	c.running = true
	return nil
}

func (c *Crawler) release() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Run crawls profileURL into dir and blocks until done. An empty dir uses
// the configured base directory. Item failures and cancellation are
// reported in the Summary; the error is reserved for runs that could not
// start.
func (c *Crawler) Run(ctx context.Context, profileURL, dir string) (Summary, error) {
	if err := c.acquire(); err != nil {
		return Summary{}, err
	}
	defer c.release()
	return c.run(ctx, uuid.NewString(), profileURL, dir, emitter{})
}

// Start launches a crawl in the background and returns immediately
func (c *Crawler) Start(profileURL, dir string) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		ID:         uuid.NewString(),
		ProfileURL: profileURL,
		events:     make(chan Event, DefaultEventBuffer),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer close(h.events)
		defer cancel()

		emit := emitter{ch: h.events}
		if err := c.acquire(); err != nil {
			h.err = err
			emit.send(Event{Type: EventStatus, Message: err.Error(), Terminal: true, Percent: 0})
			return
		}
		defer c.release()

		h.summary, h.err = c.run(ctx, h.ID, profileURL, dir, emit)
	}()

	return h
}

func (c *Crawler) run(ctx context.Context, id, profileURL, dir string, emit emitter) (summary Summary, err error) {
	start := time.Now()
	log := c.logger.WithFields(map[string]interface{}{"crawl_id": id})
	summary = Summary{ID: id}

	defer func() {
		summary.Elapsed = time.Since(start)
		if err != nil {
			summary.Outcome = OutcomeFailed
			emit.log(err.Error())
		}
		pct := 100.0
		if summary.Outcome == OutcomeCancelled || summary.Outcome == OutcomeFailed {
			pct = overallPercent(summary)
		}
		final := summary
		msg := summary.String()
		if err != nil {
			msg = fmt.Sprintf("failed: %v (%s)", err, summary.counts())
		}
		emit.send(Event{
			Type:      EventStatus,
			Message:   msg,
			Percent:   pct,
			Completed: summary.Succeeded + summary.Failed + summary.Cancelled,
			Total:     summary.Requested,
			Terminal:  true,
			Summary:   &final,
		})
	}()

	secUserID, exErr := douyin.ExtractSecUserID(profileURL)
	if exErr != nil {
		return summary, errs.Wrap(errs.ErrorTypeInvalidURL, exErr, "cannot find account id in "+profileURL)
	}
	summary.SecUserID = secUserID
	log = log.WithField("sec_user_id", secUserID)

	if dir == "" {
		dir = c.cfg.Output.BaseDirectory
	}
	if c.cfg.Output.CreateUserFolders {
		dir = filepath.Join(dir, secUserID)
	}
	store, sErr := storage.NewManager(storage.Options{
		Dir:         dir,
		FallbackDir: c.cfg.Output.FallbackDirectory,
		Extension:   c.cfg.Download.Extension,
		Policy:      storage.Policy(c.cfg.Download.CollisionPolicy),
	})
	if sErr != nil {
		return summary, sErr
	}
	summary.Directory = store.Dir()
	if store.UsedFallback() {
		log.WarnWithFields("Output directory not writable, using fallback", map[string]interface{}{
			"requested": dir,
			"fallback":  store.Dir(),
		})
		emit.log(fmt.Sprintf("cannot write to %s, saving to %s", dir, store.Dir()))
	}

	client := douyin.NewClientFromConfig(c.cfg, log)
	defer client.Close()

	log.InfoWithFields("Crawl started", map[string]interface{}{
		"profile":   douyin.ProfileURL(secUserID),
		"directory": store.Dir(),
	})
	emit.log("fetching video list for " + secUserID)

	walker := NewWalker(client, WalkerOptions{
		PageSize:  c.cfg.Crawl.PageSize,
		MaxPages:  c.cfg.Crawl.MaxPages,
		PageDelay: c.cfg.Crawl.PageDelay,
		Logger:    log,
		OnLog:     emit.log,
	})
	walk := walker.Walk(ctx, secUserID)
	summary.Pages = walk.PageCount
	summary.ListingErr = walk.Err

	if len(walk.Items) == 0 {
		if walk.State == StateCancelled {
			summary.Outcome = OutcomeCancelled
		} else {
			summary.Outcome = OutcomeNoVideosFound
			log.Warn("No videos found")
		}
		return summary, nil
	}
	emit.log(fmt.Sprintf("found %d videos", len(walk.Items)))

	results := c.download(ctx, client, store, walk.Items, log, emit)
	summary.tally(results)

	if ctx.Err() != nil || walk.State == StateCancelled {
		summary.Outcome = OutcomeCancelled
	} else {
		summary.Outcome = OutcomeCompleted
	}
	logger.LogSummary(log.WithField("files_saved", store.Saved()), summary.Requested, summary.Succeeded, summary.Failed, summary.Cancelled, time.Since(start))
	return summary, nil
}

func (c *Crawler) download(
	ctx context.Context,
	client *douyin.Client,
	store *storage.Manager,
	items []models.VideoItem,
	log logger.Logger,
	emit emitter,
) []models.DownloadResult {
	tracker := newProgressTracker(len(items))
	total := len(items)

	dl := downloader.New(client, store, downloader.Options{
		ChunkSize: c.cfg.Download.ChunkSize,
		Delay:     c.cfg.Download.DownloadDelay,
		Gate:      ratelimit.NewGate(c.cfg.Download.DownloadDelay),
		Logger:    log,
	})

	onProgress := func(item models.VideoItem, percent float64) {
		if pct, moved := tracker.update(item.Index, percent); moved {
			emit.trySend(Event{Type: EventProgress, Percent: pct, Total: total})
		}
	}

	pool := downloader.NewWorkerPool(ctx, c.cfg.Download.ConcurrentDownloads, announcing{dl, emit, total}, onProgress, log)
	log.InfoWithFields("Downloading videos", map[string]interface{}{
		"items":   total,
		"workers": pool.Size(),
	})

	return pool.RunAll(items, func(r models.DownloadResult) {
		pct, completed := tracker.finish(r.Item.Index, r.Outcome != models.OutcomeCancelled)
		switch r.Outcome {
		case models.OutcomeSuccess:
			emit.log("saved " + r.Path)
		case models.OutcomeFailed:
			emit.log(fmt.Sprintf("failed %s: %v", r.Item.Title, r.Err))
		}
		emit.send(Event{Type: EventProgress, Percent: pct, Completed: completed, Total: total})
		emit.send(Event{
			Type:      EventStatus,
			Message:   fmt.Sprintf("%d/%d %s: %s", completed, total, r.Outcome, r.Item.Title),
			Percent:   pct,
			Completed: completed,
			Total:     total,
		})
	})
}

// announcing emits a log line when a download begins
type announcing struct {
	inner *downloader.Downloader
	emit  emitter
	total int
}

func (a announcing) Download(ctx context.Context, item models.VideoItem, progress downloader.ProgressFunc) models.DownloadResult {
	a.emit.log(fmt.Sprintf("downloading %d/%d: %s", item.Index+1, a.total, item.Title))
	return a.inner.Download(ctx, item, progress)
}

func overallPercent(s Summary) float64 {
	if s.Requested == 0 {
		return 0
	}
	return float64(s.Succeeded+s.Failed) / float64(s.Requested) * 100
}
