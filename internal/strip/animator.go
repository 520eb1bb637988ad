package strip

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/pslight/internal/color"
	"github.com/scheerer/pslight/internal/logging"
)

var logger = logging.New("strip")

const (
	DefaultDuration = 2 * time.Second
	// DefaultFrameInterval caps output at 250 frames per second.
	DefaultFrameInterval = 4 * time.Millisecond
	// DefaultOverrideDuration is used whenever either side of a transition
	// is in the override group, so fault indicators flash on and off.
	DefaultOverrideDuration = 250 * time.Millisecond
	// DefaultTripleCompression narrows the sweep of three-color targets.
	DefaultTripleCompression = 2.6
)

// Sink receives every rendered frame. Write must not block; each frame is a
// private copy of the full strip.
type Sink interface {
	Write(frame []color.Color) error
}

type AnimatorConfig struct {
	Length            int
	Duration          time.Duration
	OverrideDuration  time.Duration
	FrameInterval     time.Duration
	TripleCompression float64
	// OnPanic receives anything recovered from a transition goroutine,
	// usually a panicking sink. Without it the panic is re-raised.
	OnPanic func(any)
}

func (c AnimatorConfig) withDefaults() AnimatorConfig {
	if c.Duration <= 0 {
		c.Duration = DefaultDuration
	}
	if c.OverrideDuration <= 0 {
		c.OverrideDuration = DefaultOverrideDuration
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	if c.TripleCompression <= 0 {
		c.TripleCompression = DefaultTripleCompression
	}
	return c
}

// Animator owns the rendered strip buffer and moves it towards the target
// of the latest transition, writing every intermediate frame to its sink.
// Starting a transition supersedes the one in flight; the new one starts
// from whatever was last rendered.
type Animator struct {
	config AnimatorConfig
	sink   Sink
	now    func() time.Time

	mu          sync.Mutex
	current     []color.Color
	active      *transition
	halted      bool
	sinkFailing bool
}

type transition struct {
	previous  []color.Color
	target    []color.Color
	positions []float64
	duration  time.Duration
	start     time.Time

	done   chan struct{}
	settle sync.Once
}

func (t *transition) finish() {
	t.settle.Do(func() { close(t.done) })
}

func NewAnimator(config AnimatorConfig, sink Sink) *Animator {
	config = config.withDefaults()
	current := make([]color.Color, config.Length)
	for i := range current {
		current[i] = color.Black
	}
	return &Animator{
		config:  config,
		sink:    sink,
		now:     time.Now,
		current: current,
	}
}

func (a *Animator) Length() int {
	return a.config.Length
}

// Current returns a copy of the last rendered frame.
func (a *Animator) Current() []color.Color {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]color.Color(nil), a.current...)
}

// Transition starts animating from the current buffer to the spread of
// to.Colors. The returned channel is closed when this transition has written
// its final frame or has been superseded by a later call.
func (a *Animator) Transition(from, to Snapshot) <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.halted {
		done := make(chan struct{})
		close(done)
		return done
	}

	if a.active != nil {
		a.active.finish()
	}

	t := a.plan(from, to)
	a.active = t

	logger.With(
		zap.Float64("fromGroup", from.Group),
		zap.Float64("toGroup", to.Group),
		zap.Int("colors", len(to.Colors)),
		zap.Stringer("duration", t.duration)).
		Debug("Starting transition")

	go a.run(t)
	return t.done
}

func (a *Animator) plan(from, to Snapshot) *transition {
	n := a.config.Length
	backwards := to.Group < from.Group || (to.Group == from.Group && len(to.Colors) == 2)

	mid := float64(n-1) / 2
	positions := make([]float64, n)
	for i := range positions {
		var pos float64
		if mid > 0 {
			pos = math.Abs((float64(i) - mid) / mid)
		}
		if len(to.Colors) == 3 {
			pos = math.Min(1, pos*a.config.TripleCompression)
		}
		if backwards {
			pos = 1 - pos
		}
		positions[i] = pos
	}

	duration := a.config.Duration
	if from.isOverride() || to.isOverride() {
		duration = a.config.OverrideDuration
	}

	return &transition{
		previous:  append([]color.Color(nil), a.current...),
		target:    Spread(to.Colors, n),
		positions: positions,
		duration:  duration,
		start:     a.now(),
		done:      make(chan struct{}),
	}
}

func (a *Animator) run(t *transition) {
	defer func() {
		if r := recover(); r != nil {
			t.finish()
			if a.config.OnPanic == nil {
				panic(r)
			}
			a.config.OnPanic(r)
		}
	}()

	ticker := time.NewTicker(a.config.FrameInterval)
	defer ticker.Stop()

	for {
		if a.step(t) {
			return
		}
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
	}
}

// step renders one frame of t. It reports true once t is finished or no
// longer the active transition.
func (a *Animator) step(t *transition) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active != t {
		return true
	}

	progress := 1.0
	if t.duration > 0 {
		progress = float64(a.now().Sub(t.start)) / float64(t.duration)
	}

	if progress >= 1 {
		copy(a.current, t.target)
		a.emit()
		a.active = nil
		t.finish()
		return true
	}

	for i := range a.current {
		a.current[i] = t.previous[i].Lerp(t.target[i], sweep(progress, t.positions[i]))
	}
	a.emit()
	return false
}

// sweep is how far a pixel at pos has travelled at progress. Pixels start
// up to half the duration late depending on their position, which turns a
// plain fade into a moving wipe.
func sweep(progress, pos float64) float64 {
	return math.Max(0, math.Min((progress-pos/2)*2, 1))
}

// Halt cancels any transition, shows frame and ignores every transition
// requested afterwards. It is the last thing a failing host does.
func (a *Animator) Halt(frame []color.Color) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active != nil {
		a.active.finish()
		a.active = nil
	}
	a.halted = true
	for i := range a.current {
		if i < len(frame) {
			a.current[i] = frame[i]
		} else {
			a.current[i] = color.Black
		}
	}

	// a sink that already panicked must not take the halt down with it
	defer func() {
		if r := recover(); r != nil {
			logger.With(zap.Any("panic", r)).Error("Strip panicked while halting")
		}
	}()
	a.emit()
}

func (a *Animator) emit() {
	frame := make([]color.Color, len(a.current))
	for i, c := range a.current {
		frame[i] = c.Clamp()
	}

	err := a.sink.Write(frame)
	if err != nil {
		if !a.sinkFailing {
			logger.With(zap.Error(err)).Warn("Failed to write frame to strip")
		}
		a.sinkFailing = true
		return
	}
	if a.sinkFailing {
		logger.Info("Strip accepting frames again")
		a.sinkFailing = false
	}
}
