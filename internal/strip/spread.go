package strip

import (
	"math"

	"github.com/scheerer/pslight/internal/color"
)

// spreadEpsilon absorbs float drift in the band accumulator so a band edge
// that should land exactly on a pixel boundary does not spill a sliver into
// the next pixel.
const spreadEpsilon = 0.0002

type band struct {
	color     color.Color
	remaining float64
}

// Spread lays colors out as equal, contiguous bands over length pixels. A
// pixel that straddles a band edge gets the average of the bands it covers,
// weighted by how much of the pixel each one covers.
func Spread(colors []color.Color, length int) []color.Color {
	out := make([]color.Color, length)
	if length <= 0 {
		return out
	}
	if len(colors) == 0 {
		colors = []color.Color{color.Black}
	}

	width := float64(length) / float64(len(colors))
	bands := make([]band, len(colors))
	for i, c := range colors {
		bands[i] = band{color: c, remaining: width}
	}
	last := colors[len(colors)-1]

	for i := range out {
		if len(bands) == 0 {
			out[i] = last
			continue
		}

		if bands[0].remaining >= 1-spreadEpsilon {
			out[i] = bands[0].color
			bands[0].remaining--
			if bands[0].remaining < spreadEpsilon {
				bands = bands[1:]
			}
			continue
		}

		var sum color.Color
		var total float64
		for fill := 0.0; fill < 1-spreadEpsilon && len(bands) > 0; {
			take := math.Min(1-fill, bands[0].remaining)
			fill += take
			total += take
			sum = sum.Add(bands[0].color.Mul(take))
			bands[0].remaining -= take
			if bands[0].remaining < spreadEpsilon {
				bands = bands[1:]
			}
		}
		if total == 0 {
			out[i] = last
			continue
		}
		out[i] = sum.Mul(1 / total)
	}
	return out
}
