package crawler

import (
	"sync"
	"time"
)

// EventType identifies the kind of an Event
type EventType int

const (
	// EventLog is a human readable progress line
	EventLog EventType = iota
	// EventProgress carries the overall percentage
	EventProgress
	// EventStatus reports counts after each item and once at the end
	EventStatus
)

func (t EventType) String() string {
	switch t {
	case EventLog:
		return "log"
	case EventProgress:
		return "progress"
	case EventStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Event is delivered to the presentation layer while a crawl runs
type Event struct {
	Type    EventType
	Message string
	// Percent is the overall progress, 0 to 100
	Percent   float64
	Completed int
	Total     int
	// Terminal marks the last Status event of a run
	Terminal bool
	// Summary is set on the terminal event
	Summary *Summary
	Time    time.Time
}

// emitter delivers events; a nil channel discards them
type emitter struct {
	ch chan Event
}

func (e emitter) send(ev Event) {
	if e.ch == nil {
		return
	}
	ev.Time = time.Now()
	e.ch <- ev
}

// trySend drops the event when the buffer is full; used for progress
// ticks, which are superseded by the next one anyway.
func (e emitter) trySend(ev Event) {
	if e.ch == nil {
		return
	}
	ev.Time = time.Now()
	select {
	case e.ch <- ev:
	default:
	}
}

func (e emitter) log(msg string) {
	e.send(Event{Type: EventLog, Message: msg})
}

// progressTracker turns per-item percentages into a monotonic overall percentage
type progressTracker struct {
	mu       sync.Mutex
	total    int
	done     int
	finished int
	inFlight map[int]float64
	last     float64
}

func newProgressTracker(total int) *progressTracker {
	return &progressTracker{total: total, inFlight: make(map[int]float64)}
}

// update records an item's percentage and returns the overall value and
// whether it moved forward
func (p *progressTracker) update(index int, percent float64) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight[index] = percent / 100
	return p.overall()
}

// finish marks an item as over and returns the overall percentage and the
// number of items over so far. Cancelled items do not advance the percentage.
func (p *progressTracker) finish(index int, counted bool) (float64, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, index)
	p.finished++
	if counted {
		p.done++
	}
	pct, _ := p.overall()
	return pct, p.finished
}

func (p *progressTracker) overall() (float64, bool) {
	if p.total == 0 {
		return 100, false
	}
	sum := float64(p.done)
	for _, f := range p.inFlight {
		sum += f
	}
	pct := sum / float64(p.total) * 100
	if pct > 100 {
		pct = 100
	}
	if pct <= p.last {
		return p.last, false
	}
	p.last = pct
	return pct, true
}
