package jobs

import (
	"sync"
	"time"

	"whisper-studio/internal/domain"
)

// IndeterminateFraction marks phases whose progress cannot be quantified;
// the UI renders an animated bar instead of a percentage.
const IndeterminateFraction = -1.0

// EventType classifies messages emitted during job execution.
type EventType string

const (
	EventTypeProgress EventType = "progress"
	EventTypeResult   EventType = "result"
	EventTypeError    EventType = "error"
	EventTypeNotice   EventType = "notice"
)

// Event is a sequenced payload consumed by UI subscribers. Fraction is in
// [0,1] for determinate phases and IndeterminateFraction otherwise.
type Event struct {
	Seq       int64        `json:"seq"`
	Timestamp time.Time    `json:"timestamp"`
	JobID     string       `json:"jobId,omitempty"`
	Type      EventType    `json:"type"`
	Phase     domain.Phase `json:"phase,omitempty"`
	Fraction  float64      `json:"fraction"`
	Message   string       `json:"message,omitempty"`
	Text      string       `json:"text,omitempty"`
}

// EventBus stores recent events and provides incremental reads. Consumers
// that fall behind may drop intermediate values; Latest always reflects the
// newest state, which is all the progress display needs.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	latest    Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}
	b.latest = event

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Latest returns the newest published event and whether one exists.
func (b *EventBus) Latest() (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest, b.latest.Seq != 0
}
