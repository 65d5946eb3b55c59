package crawler

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"dycrawler/pkg/models"
)

// RunOutcome is how a crawl ended
type RunOutcome string

const (
	OutcomeCompleted     RunOutcome = "completed"
	OutcomeNoVideosFound RunOutcome = "no_videos_found"
	OutcomeCancelled     RunOutcome = "cancelled"
	OutcomeFailed        RunOutcome = "failed"
)

// Summary is the result of one crawl
type Summary struct {
	ID        string
	SecUserID string
	Directory string
	Requested int
	Succeeded int
	Failed    int
	// Cancelled counts items interrupted mid-download and items never started
	Cancelled int
	Pages     int
	Outcome   RunOutcome
	Results   []models.DownloadResult
	// ListingErr is set when pagination stopped early on an error
	ListingErr error
	Elapsed    time.Duration
}

func (s *Summary) tally(results []models.DownloadResult) {
	s.Results = results
	s.Requested = len(results)
	s.Succeeded, s.Failed, s.Cancelled = 0, 0, 0
	for _, r := range results {
		switch r.Outcome {
		case models.OutcomeSuccess:
			s.Succeeded++
		case models.OutcomeFailed:
			s.Failed++
		case models.OutcomeCancelled:
			s.Cancelled++
		}
	}
}

// Err aggregates the listing error and every failed download, or returns nil
func (s Summary) Err() error {
	var result *multierror.Error
	if s.ListingErr != nil {
		result = multierror.Append(result, fmt.Errorf("listing: %w", s.ListingErr))
	}
	for _, r := range s.Results {
		if r.Outcome == models.OutcomeFailed && r.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", r.Item.Title, r.Err))
		}
	}
	return result.ErrorOrNil()
}

// String renders the counts line shown at the end of a crawl
func (s Summary) String() string {
	switch s.Outcome {
	case OutcomeNoVideosFound:
		return "no videos found: " + s.counts()
	case OutcomeCancelled:
		return fmt.Sprintf("cancelled: %d succeeded, %d failed, %d cancelled of %d",
			s.Succeeded, s.Failed, s.Cancelled, s.Requested)
	case OutcomeFailed:
		return "failed: " + s.counts()
	default:
		return "finished: " + s.counts()
	}
}

func (s Summary) counts() string {
	return fmt.Sprintf("%d succeeded, %d failed of %d", s.Succeeded, s.Failed, s.Requested)
}
