package strip

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/pslight/internal/color"
	"github.com/scheerer/pslight/internal/sink"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newSteppedAnimator returns an animator whose frames only advance when the
// test calls stepActive, on a clock the test controls.
func newSteppedAnimator(length int) (*Animator, *fakeClock, *sink.Recorder) {
	rec := sink.NewRecorder(0)
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	a := NewAnimator(AnimatorConfig{
		Length:        length,
		Duration:      time.Second,
		FrameInterval: time.Hour,
	}, rec)
	a.now = clock.Now
	return a, clock, rec
}

func stepActive(a *Animator) bool {
	a.mu.Lock()
	t := a.active
	a.mu.Unlock()
	if t == nil {
		return true
	}
	return a.step(t)
}

func waitFrames(t *testing.T, rec *sink.Recorder, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return rec.Len() >= n }, time.Second, time.Millisecond)
}

func requireSolid(t *testing.T, frame []color.Color, want color.Color) {
	t.Helper()
	for i, c := range frame {
		require.True(t, want.Equal(c), "pixel %d is %s, want %s", i, c, want)
	}
}

func solid(c color.Color) Snapshot {
	return Snapshot{Group: 0, Colors: []color.Color{c}}
}

func TestSweep(t *testing.T) {
	assert.Equal(t, 0.0, sweep(0, 0))
	assert.Equal(t, 1.0, sweep(0.5, 0))
	assert.Equal(t, 0.0, sweep(0.5, 1))
	assert.Equal(t, 1.0, sweep(1, 1))
	assert.InDelta(t, 0.5, sweep(0.5, 0.5), 1e-9)
	assert.Equal(t, 0.0, sweep(0.1, 0.8))
}

func TestPlanPositionsAndDirection(t *testing.T) {
	a, _, _ := newSteppedAnimator(11)

	forward := a.plan(Snapshot{Group: 0, Colors: []color.Color{amber}}, Snapshot{Group: 1, Colors: []color.Color{color.White}})
	assert.InDelta(t, 1, forward.positions[0], 1e-9)
	assert.InDelta(t, 0, forward.positions[5], 1e-9)
	assert.InDelta(t, 1, forward.positions[10], 1e-9)
	assert.InDelta(t, 0.4, forward.positions[3], 1e-9)
	assert.Equal(t, time.Second, forward.duration)

	backwards := a.plan(Snapshot{Group: 1, Colors: []color.Color{color.White}}, Snapshot{Group: 0, Colors: []color.Color{amber}})
	assert.InDelta(t, 0, backwards.positions[0], 1e-9)
	assert.InDelta(t, 1, backwards.positions[5], 1e-9)

	toggle := a.plan(Snapshot{Group: 2, Colors: []color.Color{blue}}, Snapshot{Group: 2, Colors: []color.Color{blue, green}})
	assert.InDelta(t, 0, toggle.positions[0], 1e-9, "two colors in the same group sweep backwards")

	triple := a.plan(solid(amber), Snapshot{Group: 0, Colors: []color.Color{amber, blue, green}})
	assert.InDelta(t, 1, triple.positions[0], 1e-9)
	assert.InDelta(t, 0.2*DefaultTripleCompression, triple.positions[4], 1e-9)
	assert.InDelta(t, 1, triple.positions[2], 1e-9, "compressed positions clamp at 1")
}

func TestPlanOverrideDuration(t *testing.T) {
	a, _, _ := newSteppedAnimator(4)

	on := a.plan(solid(amber), Snapshot{Group: GroupOverride, Colors: []color.Color{color.Red}})
	assert.Equal(t, DefaultOverrideDuration, on.duration)

	off := a.plan(Snapshot{Group: GroupOverride, Colors: []color.Color{color.Red}}, solid(amber))
	assert.Equal(t, DefaultOverrideDuration, off.duration)
}

func TestPlanSinglePixel(t *testing.T) {
	a, _, _ := newSteppedAnimator(1)
	p := a.plan(Dark(), solid(amber))
	require.Len(t, p.positions, 1)
	assert.Equal(t, 0.0, p.positions[0])
}

func TestTransitionTerminatesOnTarget(t *testing.T) {
	rec := sink.NewRecorder(0)
	a := NewAnimator(AnimatorConfig{Length: 12, Duration: 30 * time.Millisecond, FrameInterval: time.Millisecond}, rec)

	done := a.Transition(Dark(), Snapshot{Group: 0, Colors: []color.Color{blue, green}})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("transition never settled")
	}

	want := Spread([]color.Color{blue, green}, 12)
	assert.Equal(t, want, rec.Last())
	assert.Equal(t, want, a.Current())
	assert.Greater(t, rec.Len(), 1)
}

// Frames move away from the old state and never step back within one
// transition, and every frame is a full strip.
func TestTransitionFramesAreMonotonic(t *testing.T) {
	a, clock, rec := newSteppedAnimator(10)

	done := a.Transition(Dark(), solid(color.White))
	waitFrames(t, rec, 1)
	for i := 0; i < 20; i++ {
		clock.Advance(50 * time.Millisecond)
		stepActive(a)
	}
	<-done

	frames := rec.Frames()
	require.Len(t, frames, 21)
	for f := 1; f < len(frames); f++ {
		require.Len(t, frames[f], 10)
		for i := range frames[f] {
			assert.GreaterOrEqual(t, frames[f][i].R, frames[f-1][i].R, "frame %d pixel %d", f, i)
		}
	}
	requireSolid(t, frames[len(frames)-1], color.White)
}

func TestTransitionSupersedesInFlight(t *testing.T) {
	a, clock, rec := newSteppedAnimator(10)

	first := a.Transition(Dark(), Snapshot{Group: 1, Colors: []color.Color{color.White}})
	waitFrames(t, rec, 1)
	clock.Advance(300 * time.Millisecond)
	stepActive(a)
	partial := a.Current()

	second := a.Transition(Snapshot{Group: 1, Colors: []color.Color{color.White}}, Snapshot{Group: 2, Colors: []color.Color{color.Red}})

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("superseded transition was not released")
	}

	waitFrames(t, rec, 3)
	// the new transition starts from what was on the strip
	assert.Equal(t, partial, rec.Frames()[2])

	for i := 0; i < 10; i++ {
		clock.Advance(100 * time.Millisecond)
		stepActive(a)
	}
	<-second

	requireSolid(t, rec.Last(), color.Red)
	for f, frame := range rec.Frames() {
		allWhite := true
		for _, c := range frame {
			if !c.Equal(color.White) {
				allWhite = false
			}
		}
		assert.False(t, allWhite, "frame %d reached the superseded target", f)
	}
}

func TestSupersededTransitionStopsEmitting(t *testing.T) {
	a, clock, rec := newSteppedAnimator(6)

	a.Transition(Dark(), solid(color.White))
	waitFrames(t, rec, 1)

	a.mu.Lock()
	stale := a.active
	a.mu.Unlock()

	a.Transition(solid(color.White), solid(color.Red))
	waitFrames(t, rec, 2)

	clock.Advance(2 * time.Second)
	assert.True(t, a.step(stale))
	assert.Equal(t, 2, rec.Len(), "a superseded transition must not write")
}

func TestHaltFreezesStrip(t *testing.T) {
	a, _, rec := newSteppedAnimator(5)

	a.Transition(Dark(), solid(color.White))
	waitFrames(t, rec, 1)

	a.Halt(FaultFrame(5))
	assert.Equal(t, FaultFrame(5), rec.Last())
	count := rec.Len()

	done := a.Transition(solid(color.White), solid(amber))
	select {
	case <-done:
	default:
		t.Fatal("transition after halt should settle immediately")
	}
	assert.Equal(t, count, rec.Len())
	assert.True(t, stepActive(a))
}

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (f *failingSink) Write([]color.Color) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return assert.AnError
}

func TestSinkFailureDoesNotCorruptBuffer(t *testing.T) {
	s := &failingSink{}
	a := NewAnimator(AnimatorConfig{Length: 4, Duration: 10 * time.Millisecond, FrameInterval: time.Millisecond}, s)

	<-a.Transition(Dark(), solid(amber))

	requireSolid(t, a.Current(), amber)
	s.mu.Lock()
	assert.Greater(t, s.calls, 0)
	s.mu.Unlock()
}

type panickingSink struct{}

func (panickingSink) Write([]color.Color) error {
	panic("strip unplugged")
}

func TestSinkPanicGoesToHook(t *testing.T) {
	recovered := make(chan any, 1)
	var a *Animator
	a = NewAnimator(AnimatorConfig{
		Length:        3,
		FrameInterval: time.Millisecond,
		OnPanic: func(r any) {
			recovered <- r
			a.Halt(FaultFrame(3))
		},
	}, panickingSink{})

	done := a.Transition(Dark(), solid(amber))

	select {
	case r := <-recovered:
		assert.Equal(t, "strip unplugged", r)
	case <-time.After(time.Second):
		t.Fatal("panic was not handed to the hook")
	}
	<-done
	assert.Equal(t, FaultFrame(3), a.Current())
}
