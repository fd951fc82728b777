package progress

import (
	"context"
	"sync"
	"time"
)

// Publisher is the surface stages use to report progress.
type Publisher interface {
	Publish(evt Event)
}

// Hub stores recent events in a bounded buffer and wakes waiting
// subscribers when new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
}

// NewHub constructs a bounded in-memory progress broker.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends an event to the hub. It never blocks on subscribers.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Fetch returns events with sequence greater than since, optionally for
// a single run. When wait is true, Fetch blocks until at least one
// matching event is available or the context ends.
func (h *Hub) Fetch(ctx context.Context, runID string, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(runID, since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Tail returns the most recent events for a run without blocking.
func (h *Hub) Tail(runID string, limit int) []Event {
	if h == nil {
		return nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Event
	for i := len(h.buffer) - 1; i >= 0 && len(out) < limit; i-- {
		if runID == "" || h.buffer[i].RunID == runID {
			out = append(out, h.buffer[i])
		}
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (h *Hub) snapshotLocked(runID string, since uint64, limit int) ([]Event, uint64) {
	next := since
	var out []Event
	for _, evt := range h.buffer {
		if evt.Sequence <= since {
			continue
		}
		if evt.Sequence > next {
			next = evt.Sequence
		}
		if runID != "" && evt.RunID != runID {
			continue
		}
		out = append(out, evt)
		if len(out) == limit {
			break
		}
	}
	if h.nextSeq > next && len(out) == 0 {
		next = h.nextSeq
	}
	return out, next
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
