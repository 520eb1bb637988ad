// Package signal feeds boolean enable states into strip spans.
package signal

import (
	"context"
	"sync"

	"github.com/scheerer/pslight/internal/logging"
	"go.uber.org/zap"
)

var logger = logging.New("signal")

// Source produces a span's enable state over time. The channel yields the
// current value first and is closed once ctx is done.
type Source interface {
	Watch(ctx context.Context) <-chan bool
}

// Target is anything that can be switched on and off, usually a strip span.
type Target interface {
	Enable(enabled bool)
}

type constant bool

// Constant is a source that never changes.
func Constant(v bool) Source {
	return constant(v)
}

func (c constant) Watch(ctx context.Context) <-chan bool {
	ch := make(chan bool, 1)
	ch <- bool(c)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

// Cell is a writable boolean whose watchers see every change. A slow
// watcher only ever misses intermediate values, never the latest one.
type Cell struct {
	mu       sync.Mutex
	value    bool
	watchers map[chan bool]struct{}
}

func NewCell(initial bool) *Cell {
	return &Cell{
		value:    initial,
		watchers: make(map[chan bool]struct{}),
	}
}

func (c *Cell) Get() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *Cell) Set(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value == v {
		return
	}
	c.value = v
	for ch := range c.watchers {
		offer(ch, v)
	}
}

func (c *Cell) Watch(ctx context.Context) <-chan bool {
	ch := make(chan bool, 1)

	c.mu.Lock()
	ch <- c.value
	c.watchers[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.watchers, ch)
		close(ch)
		c.mu.Unlock()
	}()
	return ch
}

// offer replaces whatever is buffered in ch with v.
func offer(ch chan bool, v bool) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Bind forwards src into target until ctx is done, skipping repeats.
// A panic in target is handed to onPanic; with no hook it is re-raised.
func Bind(ctx context.Context, name string, src Source, target Target, onPanic func(any)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if onPanic == nil {
					panic(r)
				}
				onPanic(r)
			}
		}()

		first := true
		var last bool
		for v := range src.Watch(ctx) {
			if !first && v == last {
				continue
			}
			first = false
			last = v
			logger.With(zap.String("span", name), zap.Bool("enabled", v)).Debug("Signal changed")
			target.Enable(v)
		}
	}()
}
