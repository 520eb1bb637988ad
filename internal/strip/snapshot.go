package strip

import (
	"math"

	"github.com/scheerer/pslight/internal/color"
)

var (
	// GroupNone is the group of a snapshot with no active span.
	GroupNone = math.Inf(-1)
	// GroupOverride outranks every application group. It is reserved for
	// fault indicators.
	GroupOverride = math.Inf(1)
)

// Snapshot is the winning visual state: the highest active group and the
// colors of every active span in that group.
type Snapshot struct {
	Group  float64
	Colors []color.Color
}

// Dark is what the strip shows when nothing is active.
func Dark() Snapshot {
	return Snapshot{Group: GroupNone, Colors: []color.Color{color.Black}}
}

func (s Snapshot) Equal(o Snapshot) bool {
	if s.Group != o.Group || len(s.Colors) != len(o.Colors) {
		return false
	}
	for i := range s.Colors {
		if !s.Colors[i].Equal(o.Colors[i]) {
			return false
		}
	}
	return true
}

func (s Snapshot) isOverride() bool {
	return math.IsInf(s.Group, 1)
}
