package crawler

import (
	"context"
	"fmt"
	"time"

	"dycrawler/pkg/douyin"
	errs "dycrawler/pkg/errors"
	"dycrawler/pkg/logger"
	"dycrawler/pkg/models"
	"dycrawler/pkg/retry"
	"dycrawler/pkg/storage"
)

const (
	// DefaultMaxPages is the page ceiling of one walk
	DefaultMaxPages = 10
	// DefaultPageDelay separates successful page fetches
	DefaultPageDelay = time.Second
)

// PostFetcher fetches one page of an account's posts
type PostFetcher interface {
	FetchPosts(ctx context.Context, secUserID string, cursor int64, count int) (*douyin.PostListResponse, error)
}

// State is the state of a pagination walk
type State int

const (
	StateInit State = iota
	StateFetchingPage
	StateExhausted
	StateCancelled
	StateError
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFetchingPage:
		return "fetching_page"
	case StateExhausted:
		return "exhausted"
	case StateCancelled:
		return "cancelled"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// CrawlState is the outcome of a walk. Items are kept in every terminal state.
type CrawlState struct {
	Cursor    int64
	PageCount int
	HasMore   bool
	Items     []models.VideoItem
	State     State
	// Err is set when State is StateError
	Err error
}

// WalkerOptions configures a Walker
type WalkerOptions struct {
	PageSize  int
	MaxPages  int
	PageDelay time.Duration
	Logger    logger.Logger
	// OnLog receives human readable progress lines
	OnLog func(msg string)
}

// Walker follows the listing cursor until the catalogue is exhausted
type Walker struct {
	fetcher   PostFetcher
	pageSize  int
	maxPages  int
	pageDelay time.Duration
	logger    logger.Logger
	onLog     func(string)
}

// NewWalker creates a Walker. A negative PageDelay disables the pause.
func NewWalker(fetcher PostFetcher, opts WalkerOptions) *Walker {
	if opts.PageSize <= 0 {
		opts.PageSize = douyin.DefaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.PageDelay == 0 {
		opts.PageDelay = DefaultPageDelay
	}
	onLog := opts.OnLog
	if onLog == nil {
		onLog = func(string) {}
	}
	return &Walker{
		fetcher:   fetcher,
		pageSize:  opts.PageSize,
		maxPages:  opts.MaxPages,
		pageDelay: opts.PageDelay,
		logger:    logger.OrGlobal(opts.Logger),
		onLog:     onLog,
	}
}

// Walk collects the playable posts of secUserID. It never returns an
// error: a failing page stops the walk and the items gathered so far
// are returned with State set to StateError.
func (w *Walker) Walk(ctx context.Context, secUserID string) *CrawlState {
	st := &CrawlState{HasMore: true, State: StateInit}
	log := w.logger.WithField("sec_user_id", secUserID)

	for {
		if ctx.Err() != nil {
			st.State = StateCancelled
			return st
		}
		if st.PageCount >= w.maxPages {
			log.InfoWithFields("Page ceiling reached", map[string]interface{}{
				"max_pages": w.maxPages,
			})
			st.State = StateExhausted
			return st
		}

		st.State = StateFetchingPage
		page, err := w.fetcher.FetchPosts(ctx, secUserID, st.Cursor, w.pageSize)
		if err != nil {
			if errs.IsCancelled(err) || ctx.Err() != nil {
				st.State = StateCancelled
				return st
			}
			st.State = StateError
			st.Err = fmt.Errorf("page %d: %w", st.PageCount+1, err)
			log.WithError(err).Error("Listing failed, keeping items collected so far")
			w.onLog(fmt.Sprintf("failed to fetch page %d: %v", st.PageCount+1, err))
			return st
		}
		st.PageCount++

		skipped := 0
		for i := range page.AwemeList {
			aweme := &page.AwemeList[i]
			src := aweme.PlayURL()
			if src == "" {
				skipped++
				log.WarnWithFields("Skipping post without playable URL", map[string]interface{}{
					"aweme_id": aweme.AwemeID,
				})
				continue
			}
			item := models.VideoItem{
				Index:     len(st.Items),
				ID:        aweme.AwemeID,
				Title:     storage.SanitizeTitle(aweme.Desc, aweme.AwemeID),
				SourceURL: src,
			}
			st.Items = append(st.Items, item)
			w.onLog("found video: " + item.Title)
		}

		st.HasMore = bool(page.HasMore)
		logger.LogPage(log, st.PageCount, len(page.AwemeList)-skipped, skipped, st.HasMore)
		w.onLog(fmt.Sprintf("page %d: %d videos", st.PageCount, len(page.AwemeList)-skipped))

		if !st.HasMore || len(page.AwemeList) == 0 {
			st.State = StateExhausted
			return st
		}
		st.Cursor = page.MaxCursor

		if st.PageCount < w.maxPages {
			if err := retry.Wait(ctx, w.pageDelay); err != nil {
				st.State = StateCancelled
				return st
			}
		}
	}
}
