package sink

import (
	"sync"

	"github.com/scheerer/pslight/internal/color"
)

// Recorder keeps every frame in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	frames [][]color.Color
	limit  int
}

// NewRecorder keeps at most limit frames; zero keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Write(frame []color.Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = append(r.frames, append([]color.Color(nil), frame...))
	if r.limit > 0 && len(r.frames) > r.limit {
		r.frames = r.frames[len(r.frames)-r.limit:]
	}
	return nil
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *Recorder) Frames() [][]color.Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]color.Color(nil), r.frames...)
}

// Last returns the most recent frame, or nil before the first write.
func (r *Recorder) Last() []color.Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}
