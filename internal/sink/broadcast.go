package sink

import (
	"sync"

	"github.com/scheerer/pslight/internal/color"
)

// Broadcast relays frames to a changing set of subscribers. A subscriber
// that falls behind skips frames instead of holding up the strip.
type Broadcast struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
	last []color.Color
}

type subscription struct {
	frames latest
}

func NewBroadcast() *Broadcast {
	return &Broadcast{subs: make(map[*subscription]struct{})}
}

func (b *Broadcast) Write(frame []color.Color) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = frame
	for sub := range b.subs {
		sub.frames.offer(frame)
	}
	return nil
}

// Subscribe returns a channel that starts with the most recent frame. The
// returned func unsubscribes; the channel is never closed.
func (b *Broadcast) Subscribe() (<-chan []color.Color, func()) {
	sub := &subscription{frames: newLatest()}

	b.mu.Lock()
	if b.last != nil {
		sub.frames.offer(b.last)
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub.frames.ch, func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	}
}

// Last returns the most recent frame, or nil before the first write.
func (b *Broadcast) Last() []color.Color {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *Broadcast) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
