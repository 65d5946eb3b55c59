package downloader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dycrawler/pkg/logger"
	"dycrawler/pkg/models"
)

// MockDownloader records calls and returns canned outcomes
type MockDownloader struct {
	delay    time.Duration
	failIdx  map[int]bool
	calls    int32
	active   int32
	maxSeen  int32
	mu       sync.Mutex
	order    []int
	onCalled func(item models.VideoItem)
}

func (m *MockDownloader) Download(ctx context.Context, item models.VideoItem, progress ProgressFunc) models.DownloadResult {
	atomic.AddInt32(&m.calls, 1)
	cur := atomic.AddInt32(&m.active, 1)
	defer atomic.AddInt32(&m.active, -1)
	for {
		seen := atomic.LoadInt32(&m.maxSeen)
		if cur <= seen || atomic.CompareAndSwapInt32(&m.maxSeen, seen, cur) {
			break
		}
	}

	m.mu.Lock()
	m.order = append(m.order, item.Index)
	m.mu.Unlock()

	if m.onCalled != nil {
		m.onCalled(item)
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return models.DownloadResult{Item: item, Outcome: models.OutcomeCancelled, Err: ctx.Err(), Attempted: true}
		}
	}

	if progress != nil {
		progress(item, 100)
	}
	if m.failIdx[item.Index] {
		return models.DownloadResult{Item: item, Outcome: models.OutcomeFailed, Err: fmt.Errorf("boom"), Attempted: true}
	}
	return models.DownloadResult{Item: item, Outcome: models.OutcomeSuccess, Attempted: true}
}

func makeItems(n int) []models.VideoItem {
	items := make([]models.VideoItem, n)
	for i := range items {
		items[i] = models.VideoItem{Index: i, ID: fmt.Sprintf("v%d", i), Title: fmt.Sprintf("title %d", i)}
	}
	return items
}

func TestWorkerPoolSequentialOrder(t *testing.T) {
	mock := &MockDownloader{}
	pool := NewWorkerPool(context.Background(), 1, mock, nil, logger.NewNopLogger())

	results := pool.RunAll(makeItems(6), nil)

	require.Len(t, results, 6)
	for i, r := range results {
		assert.Equal(t, i, r.Item.Index)
		assert.True(t, r.Succeeded())
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, mock.order)
	assert.EqualValues(t, 1, mock.maxSeen)
}

func TestWorkerPoolWithErrors(t *testing.T) {
	mock := &MockDownloader{failIdx: map[int]bool{1: true, 3: true}}
	pool := NewWorkerPool(context.Background(), 2, mock, nil, logger.NewNopLogger())

	var streamed int
	results := pool.RunAll(makeItems(5), func(models.DownloadResult) { streamed++ })

	require.Len(t, results, 5)
	assert.Equal(t, 5, streamed)
	failed := 0
	for _, r := range results {
		if r.Outcome == models.OutcomeFailed {
			failed++
			assert.Error(t, r.Err)
		}
	}
	assert.Equal(t, 2, failed)
}

func TestWorkerPoolConcurrency(t *testing.T) {
	mock := &MockDownloader{delay: 50 * time.Millisecond}
	pool := NewWorkerPool(context.Background(), 3, mock, nil, logger.NewNopLogger())

	results := pool.RunAll(makeItems(9), nil)

	require.Len(t, results, 9)
	for i, r := range results {
		assert.Equal(t, i, r.Item.Index, "results are returned in item order")
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&mock.maxSeen), int32(3))
	assert.Greater(t, atomic.LoadInt32(&mock.maxSeen), int32(1))
}

func TestWorkerPoolSizeIsClamped(t *testing.T) {
	assert.Equal(t, 1, NewWorkerPool(context.Background(), 0, &MockDownloader{}, nil, nil).Size())
	assert.Equal(t, MaxWorkers, NewWorkerPool(context.Background(), 50, &MockDownloader{}, nil, nil).Size())
}

func TestWorkerPoolCancelStopsAfterCurrentItem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock := &MockDownloader{}
	mock.onCalled = func(item models.VideoItem) {
		if item.Index == 0 {
			cancel()
		}
	}
	pool := NewWorkerPool(ctx, 1, mock, nil, logger.NewNopLogger())

	results := pool.RunAll(makeItems(4), nil)

	require.Len(t, results, 4)
	assert.EqualValues(t, 1, atomic.LoadInt32(&mock.calls))
	assert.True(t, results[0].Succeeded())
	for _, r := range results[1:] {
		assert.Equal(t, models.OutcomeCancelled, r.Outcome)
		assert.False(t, r.Attempted)
	}
}

func TestWorkerPoolSubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, &MockDownloader{}, nil, logger.NewNopLogger())
	pool.Start()
	pool.Stop()
	pool.Stop()

	assert.ErrorIs(t, pool.Submit(models.VideoItem{}), ErrPoolStopped)
}

func TestWorkerPoolForwardsProgress(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]float64{}
	progress := func(item models.VideoItem, pct float64) {
		mu.Lock()
		seen[item.Index] = pct
		mu.Unlock()
	}
	pool := NewWorkerPool(context.Background(), 2, &MockDownloader{}, progress, logger.NewNopLogger())
	pool.RunAll(makeItems(3), nil)

	assert.Equal(t, map[int]float64{0: 100, 1: 100, 2: 100}, seen)
}
