package strip

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/scheerer/pslight/internal/color"
)

// Registry owns every span and decides which of them the strip shows. Spans
// are never removed, only disabled.
type Registry struct {
	animator *Animator

	mu     sync.Mutex
	spans  []span
	closed bool
}

type span struct {
	name   string
	color  color.Color
	group  float64
	active bool
}

// SpanState is a read-only view of a registered span.
type SpanState struct {
	ID     int         `json:"id"`
	Name   string      `json:"name"`
	Color  color.Color `json:"color"`
	Group  float64     `json:"-"`
	Active bool        `json:"active"`
}

// Span is the handle returned by AddSpan.
type Span struct {
	id       int
	registry *Registry
}

func (s Span) ID() int {
	return s.id
}

// Enable switches the span on or off. It never blocks.
func (s Span) Enable(enabled bool) {
	s.registry.setActive([]int{s.id}, enabled)
}

// SpanSet toggles several spans together so they change in one transition.
type SpanSet struct {
	ids      []int
	registry *Registry
}

func (s SpanSet) Enable(enabled bool) {
	s.registry.setActive(s.ids, enabled)
}

func NewRegistry(animator *Animator) *Registry {
	return &Registry{animator: animator}
}

// AddSpan registers an inactive span.
func (r *Registry) AddSpan(name string, c color.Color, group float64) Span {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Span{id: r.add(name, c, group), registry: r}
}

// AddSpans registers one span per color in group, toggled as a unit.
func (r *Registry) AddSpans(name string, group float64, colors ...color.Color) SpanSet {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := SpanSet{registry: r}
	for _, c := range colors {
		set.ids = append(set.ids, r.add(name, c, group))
	}
	return set
}

func (r *Registry) add(name string, c color.Color, group float64) int {
	r.spans = append(r.spans, span{name: name, color: c, group: group})
	return len(r.spans) - 1
}

func (r *Registry) setActive(ids []int, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	changed := false
	for _, id := range ids {
		if r.spans[id].active != enabled {
			changed = true
		}
	}
	if !changed {
		return
	}

	old := r.snapshot()
	for _, id := range ids {
		r.spans[id].active = enabled
	}
	next := r.snapshot()

	logger.With(
		zap.String("span", r.spans[ids[0]].name),
		zap.Bool("enabled", enabled),
		zap.Float64("group", next.Group),
		zap.Int("colors", len(next.Colors))).
		Debug("Span changed")

	if old.Equal(next) {
		return
	}
	r.animator.Transition(old, next)
}

// Snapshot resolves the state the strip is showing or moving towards.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Registry) snapshot() Snapshot {
	group := GroupNone
	for _, s := range r.spans {
		if s.active {
			group = math.Max(group, s.group)
		}
	}

	var colors []color.Color
	for _, s := range r.spans {
		if s.active && s.group == group {
			colors = append(colors, s.color)
		}
	}
	if len(colors) == 0 {
		return Dark()
	}
	return Snapshot{Group: group, Colors: colors}
}

func (r *Registry) Spans() []SpanState {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make([]SpanState, len(r.spans))
	for i, s := range r.spans {
		states[i] = SpanState{ID: i, Name: s.name, Color: s.color, Group: s.group, Active: s.active}
	}
	return states
}

// Shutdown stops accepting span changes and fades the strip to black. It
// returns once the black frame has been written or ctx is done.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	done := r.animator.Transition(r.snapshot(), Dark())
	r.mu.Unlock()

	logger.Info("Fading strip out")

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Halt freezes the strip on the fault frame, bypassing span resolution.
func (r *Registry) Halt() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.animator.Halt(FaultFrame(r.animator.Length()))
}

// FaultFrame is a dark strip with red ends.
func FaultFrame(length int) []color.Color {
	frame := make([]color.Color, length)
	for i := range frame {
		frame[i] = color.Black
	}
	if length > 0 {
		frame[0] = color.Red
		frame[length-1] = color.Red
	}
	return frame
}
