package eventbus

import (
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
)

const (
	// DefaultCapacity bounds the retained event log.
	DefaultCapacity = 500

	// subscriberBuffer is the per-subscriber channel depth. A slow
	// subscriber loses events rather than stalling publishers.
	subscriberBuffer = 64
)

// Bus is a bounded in-process event log with live fan-out. Events get
// strictly increasing ids; once capacity is reached the oldest entries
// are evicted, and cursor readers are told when their cursor fell off
// the tail.
type Bus struct {
	mu     sync.Mutex
	buf    []models.Event
	head   int // index of oldest entry
	size   int
	nextID int64
	subs   map[int]chan models.Event
	subSeq int
}

func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		buf:    make([]models.Event, capacity),
		nextID: 1,
		subs:   make(map[int]chan models.Event),
	}
}

// Publish appends an event, assigns its id, and fans it out to live
// subscribers without blocking.
func (b *Bus) Publish(typ models.EventType, summary string, payload map[string]any) models.Event {
	b.mu.Lock()
	ev := models.Event{
		ID:        b.nextID,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Summary:   summary,
		Payload:   payload,
	}
	b.nextID++

	idx := (b.head + b.size) % len(b.buf)
	b.buf[idx] = ev
	if b.size < len(b.buf) {
		b.size++
	} else {
		b.head = (b.head + 1) % len(b.buf)
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default: // subscriber is behind; it can catch up via EventsSince
		}
	}
	b.mu.Unlock()
	return ev
}

// EventsSince returns up to limit events with id > afterID, oldest
// first. gap is true when afterID has already been evicted, meaning
// the caller missed events it can no longer read.
func (b *Bus) EventsSince(afterID int64, limit int) (events []models.Event, gap bool) {
	if limit <= 0 {
		limit = DefaultCapacity
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil, false
	}
	oldest := b.buf[b.head].ID
	if afterID > 0 && afterID < oldest-1 {
		gap = true
	}
	for i := 0; i < b.size && len(events) < limit; i++ {
		ev := b.buf[(b.head+i)%len(b.buf)]
		if ev.ID > afterID {
			events = append(events, ev)
		}
	}
	return events, gap
}

// Latest returns the most recent events, newest first.
func (b *Bus) Latest(limit int) []models.Event {
	if limit <= 0 {
		limit = DefaultCapacity
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.size
	if n > limit {
		n = limit
	}
	out := make([]models.Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, b.buf[(b.head+b.size-1-i)%len(b.buf)])
	}
	return out
}

// LastID returns the id of the newest event, or 0 when empty.
func (b *Bus) LastID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextID - 1
}

// Subscribe registers a live listener. The returned cancel func must
// be called once the listener is done.
func (b *Bus) Subscribe() (<-chan models.Event, func()) {
	ch := make(chan models.Event, subscriberBuffer)
	b.mu.Lock()
	id := b.subSeq
	b.subSeq++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
