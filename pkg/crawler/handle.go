package crawler

import "context"

// Handle controls a crawl started with Crawler.Start.
// Events must be drained until the channel is closed.
type Handle struct {
	ID         string
	ProfileURL string

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	summary Summary
	err     error
}

// Events returns the event stream; it is closed when the crawl ends
func (h *Handle) Events() <-chan Event {
	return h.events
}

// Cancel requests cancellation. It is safe to call more than once and
// after the crawl has finished.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once the crawl has ended and the event stream is closed
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the crawl ends and returns its summary
func (h *Handle) Wait() (Summary, error) {
	<-h.done
	return h.summary, h.err
}
