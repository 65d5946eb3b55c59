package downloader

import (
	"context"
	"fmt"
	"io"
	"time"

	"dycrawler/pkg/douyin"
	errs "dycrawler/pkg/errors"
	"dycrawler/pkg/logger"
	"dycrawler/pkg/models"
	"dycrawler/pkg/ratelimit"
	"dycrawler/pkg/retry"
	"dycrawler/pkg/storage"
)

const (
	// DefaultChunkSize is the size of each buffered write
	DefaultChunkSize = 8 * 1024
	// DefaultDelay precedes every download start
	DefaultDelay = 500 * time.Millisecond
)

// MediaOpener opens a media URL for streaming
type MediaOpener interface {
	OpenMedia(ctx context.Context, url string) (*douyin.MediaStream, error)
}

// FileStore hands out destination paths and partial files
type FileStore interface {
	Reserve(title string) string
	Create(path string) (*storage.PartialFile, error)
}

// ProgressFunc receives the percentage of an item written so far.
// It is only called when the server announced a Content-Length.
type ProgressFunc func(item models.VideoItem, percent float64)

// Options configures a Downloader
type Options struct {
	ChunkSize int
	Delay     time.Duration
	// Gate is shared by all workers of a crawl; nil means no spacing beyond Delay
	Gate   ratelimit.Limiter
	Logger logger.Logger
}

// Downloader streams single videos to disk
type Downloader struct {
	client    MediaOpener
	store     FileStore
	chunkSize int
	delay     time.Duration
	gate      ratelimit.Limiter
	logger    logger.Logger
}

// New creates a Downloader. A negative Delay disables the pre-download pause.
func New(client MediaOpener, store FileStore, opts Options) *Downloader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Gate == nil {
		opts.Gate = ratelimit.Unlimited{}
	}
	return &Downloader{
		client:    client,
		store:     store,
		chunkSize: opts.ChunkSize,
		delay:     opts.Delay,
		gate:      opts.Gate,
		logger:    logger.OrGlobal(opts.Logger),
	}
}

// Download writes item to the store. Cancellation is checked before every
// chunk; a cancelled download leaves its partial file behind.
func (d *Downloader) Download(ctx context.Context, item models.VideoItem, progress ProgressFunc) models.DownloadResult {
	start := time.Now()
	result := models.DownloadResult{Item: item}

	done := func(outcome models.Outcome, err error) models.DownloadResult {
		result.Outcome = outcome
		result.Err = err
		result.Duration = time.Since(start)
		switch outcome {
		case models.OutcomeSuccess:
			logger.LogDownload(d.logger, item.ID, item.Title, result.Path, nil)
		case models.OutcomeFailed:
			logger.LogDownload(d.logger, item.ID, item.Title, result.Path, err)
		case models.OutcomeCancelled:
			d.logger.InfoWithFields("Download cancelled", map[string]interface{}{
				"video_id": item.ID,
				"written":  result.Size,
			})
		}
		return result
	}

	if err := retry.Wait(ctx, d.delay); err != nil {
		return done(models.OutcomeCancelled, err)
	}
	if err := d.gate.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return done(models.OutcomeCancelled, ctx.Err())
		}
		return done(models.OutcomeFailed, err)
	}
	result.Attempted = true

	d.logger.InfoWithFields("Downloading video", map[string]interface{}{
		"video_id": item.ID,
		"title":    item.Title,
		"index":    item.Index,
	})

	stream, err := d.client.OpenMedia(ctx, item.SourceURL)
	if err != nil {
		if errs.IsCancelled(err) {
			return done(models.OutcomeCancelled, err)
		}
		return done(models.OutcomeFailed, fmt.Errorf("open media: %w", err))
	}
	defer stream.Close()

	result.Path = d.store.Reserve(item.Title)
	file, err := d.store.Create(result.Path)
	if err != nil {
		return done(models.OutcomeFailed, err)
	}

	total := stream.ContentLength
	buf := make([]byte, d.chunkSize)
	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			if err := ctx.Err(); err != nil {
				file.Abandon()
				return done(models.OutcomeCancelled, err)
			}
			if _, err := file.Write(buf[:n]); err != nil {
				file.Discard()
				return done(models.OutcomeFailed, fmt.Errorf("write chunk: %w", err))
			}
			result.Size += int64(n)
			if progress != nil && total > 0 {
				progress(item, percentOf(result.Size, total))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if errs.IsCancelled(readErr) || ctx.Err() != nil {
				file.Abandon()
				return done(models.OutcomeCancelled, readErr)
			}
			file.Discard()
			return done(models.OutcomeFailed, fmt.Errorf("read stream: %w", readErr))
		}
	}

	if err := file.Commit(); err != nil {
		return done(models.OutcomeFailed, err)
	}
	return done(models.OutcomeSuccess, nil)
}

func percentOf(written, total int64) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(written) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
