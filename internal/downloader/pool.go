package downloader

import (
	"context"
	"errors"
	"sort"
	"sync"

	"dycrawler/pkg/logger"
	"dycrawler/pkg/models"
)

// MaxWorkers caps the pool size
const MaxWorkers = 5

// ErrPoolStopped is returned by Submit after Stop
var ErrPoolStopped = errors.New("worker pool is stopped")

// ItemDownloader downloads a single item
type ItemDownloader interface {
	Download(ctx context.Context, item models.VideoItem, progress ProgressFunc) models.DownloadResult
}

// WorkerPool runs downloads on a fixed number of workers.
// Items taken off the queue after cancellation are reported as cancelled
// without being attempted, so every submitted item yields one result.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan models.VideoItem
	resultQueue chan models.DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	downloader  ItemDownloader
	progress    ProgressFunc
	logger      logger.Logger

	mu      sync.Mutex
	stopped bool
}

// NewWorkerPool creates a pool bound to ctx
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	downloader ItemDownloader,
	progress ProgressFunc,
	log logger.Logger,
) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > MaxWorkers {
		numWorkers = MaxWorkers
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan models.VideoItem, numWorkers*2),
		resultQueue: make(chan models.DownloadResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		downloader:  downloader,
		progress:    progress,
		logger:      logger.OrGlobal(log),
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for queued items and closes Results
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Cancel aborts the in-flight downloads; queued items come out cancelled
func (wp *WorkerPool) Cancel() {
	wp.cancel()
}

// Submit queues an item. It blocks while the queue is full.
func (wp *WorkerPool) Submit(item models.VideoItem) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return ErrPoolStopped
	}
	wp.jobQueue <- item
	return nil
}

// Results returns the result channel; it must be drained
func (wp *WorkerPool) Results() <-chan models.DownloadResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for item := range wp.jobQueue {
		var result models.DownloadResult
		if err := wp.ctx.Err(); err != nil {
			result = models.DownloadResult{Item: item, Outcome: models.OutcomeCancelled, Err: err}
		} else {
			wp.logger.DebugWithFields("Worker processing item", map[string]interface{}{
				"worker_id": id,
				"video_id":  item.ID,
				"index":     item.Index,
			})
			result = wp.downloader.Download(wp.ctx, item, wp.progress)
		}
		wp.resultQueue <- result
	}
}

// RunAll downloads items and returns their results in item order.
// onResult, if set, sees each result as soon as it is available.
func (wp *WorkerPool) RunAll(items []models.VideoItem, onResult func(models.DownloadResult)) []models.DownloadResult {
	wp.Start()

	go func() {
		for _, item := range items {
			if err := wp.Submit(item); err != nil {
				break
			}
		}
		wp.Stop()
	}()

	results := make([]models.DownloadResult, 0, len(items))
	for result := range wp.Results() {
		if onResult != nil {
			onResult(result)
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Item.Index < results[j].Item.Index
	})
	return results
}

// Size returns the number of workers after clamping
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}
