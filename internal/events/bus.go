// Package events fans out committed collection changes to subscribed views.
package events

import (
	"context"
	"sync"

	"spmi.org/internal/records"
)

// Bus fan-outs changes to all active subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan records.Change
	next   int
	buffer int
}

// New initialises an empty bus. buffer is the per-subscriber channel capacity.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{subs: make(map[int]chan records.Change), buffer: buffer}
}

// Subscribe registers a subscriber and returns a channel which will receive changes.
// The channel is closed when the provided context ends.
func (b *Bus) Subscribe(ctx context.Context) <-chan records.Change {
	ch := make(chan records.Change, b.buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the change to all subscribers.
func (b *Bus) Publish(c records.Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
			// Slow subscribers miss changes and should re-read the store.
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
