// Package sink holds the places a rendered strip frame can go.
package sink

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/scheerer/pslight/internal/color"
	"github.com/scheerer/pslight/internal/logging"
)

var logger = logging.New("sink")

var ErrNotConnected = errors.New("strip not connected")

// Writer accepts full strip frames without blocking.
type Writer interface {
	Write(frame []color.Color) error
}

type multi []Writer

// Multi writes each frame to every writer and joins their errors.
func Multi(writers ...Writer) Writer {
	if len(writers) == 1 {
		return writers[0]
	}
	return multi(writers)
}

func (m multi) Write(frame []color.Color) error {
	var errs []error
	for _, w := range m {
		if err := w.Write(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Adjuster scales brightness and applies gamma correction before handing
// frames to next. Other writers keep seeing the uncorrected frame.
// Brightness can be changed while frames are flowing.
type Adjuster struct {
	next       Writer
	gamma      float64
	brightness atomic.Uint64

	mu   sync.Mutex
	last []color.Color
}

func Adjust(next Writer, brightness, gamma float64) *Adjuster {
	a := &Adjuster{next: next, gamma: gamma}
	a.brightness.Store(math.Float64bits(brightness))
	return a
}

func (a *Adjuster) Brightness() float64 {
	return math.Float64frombits(a.brightness.Load())
}

// SetBrightness takes effect immediately: the last frame is written again
// at the new level.
func (a *Adjuster) SetBrightness(brightness float64) error {
	a.brightness.Store(math.Float64bits(brightness))

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return nil
	}
	return a.write(a.last)
}

func (a *Adjuster) Write(frame []color.Color) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = append(a.last[:0], frame...)
	return a.write(frame)
}

func (a *Adjuster) write(frame []color.Color) error {
	brightness := a.Brightness()
	out := make([]color.Color, len(frame))
	for i, c := range frame {
		out[i] = c.Scale(brightness).Gamma(a.gamma)
	}
	return a.next.Write(out)
}

// latest is a one-slot mailbox where a new frame replaces an unread one.
type latest struct {
	ch chan []color.Color
}

func newLatest() latest {
	return latest{ch: make(chan []color.Color, 1)}
}

func (l latest) offer(frame []color.Color) {
	for {
		select {
		case l.ch <- frame:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}
