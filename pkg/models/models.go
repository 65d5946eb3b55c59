package models

import (
	"fmt"
	"time"
)

// VideoItem is one downloadable entry of an account's catalogue
type VideoItem struct {
	// Index is the position in listing order, starting at 0
	Index     int
	ID        string
	Title     string
	SourceURL string
}

func (v VideoItem) String() string {
	return fmt.Sprintf("#%d %s (%s)", v.Index+1, v.Title, v.ID)
}

// Outcome is the terminal state of one download
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// DownloadResult is produced once for every VideoItem
type DownloadResult struct {
	Item     VideoItem
	Outcome  Outcome
	Err      error
	Path     string
	Size     int64
	Duration time.Duration
	// Attempted is false for items skipped because the crawl was cancelled first
	Attempted bool
}

// Succeeded reports whether the file was written completely
func (r DownloadResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}
