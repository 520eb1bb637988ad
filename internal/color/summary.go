package color

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Summary reduces a frame to the single color a room light should show.
type Summary func(colors []Color) Color

// SummaryByName picks a summary by its config name: AVERAGE,
// SQUARED_AVERAGE, MEDIAN or MODE.
func SummaryByName(name string) (Summary, error) {
	switch strings.ToUpper(name) {
	case "", "AVERAGE":
		return Average, nil
	case "SQUARED_AVERAGE":
		return SquaredAverage, nil
	case "MEDIAN":
		return Median, nil
	case "MODE":
		return Mode, nil
	}
	return nil, fmt.Errorf("unknown color algorithm: %v", name)
}

// Average returns the mean of colors, or Black for an empty slice.
func Average(colors []Color) Color {
	if len(colors) == 0 {
		return Black
	}
	var sum Color
	for _, c := range colors {
		sum = sum.Add(c)
	}
	return sum.Mul(1 / float64(len(colors)))
}

// SquaredAverage is the root mean square per component. It leans towards
// the brighter colors of the frame.
func SquaredAverage(colors []Color) Color {
	if len(colors) == 0 {
		return Black
	}
	var sum Color
	for _, c := range colors {
		sum = sum.Add(c.Map(func(v float64, _ int) float64 { return v * v }))
	}
	return sum.Mul(1 / float64(len(colors))).Map(func(v float64, _ int) float64 {
		return math.Sqrt(v)
	})
}

// Median takes the median of each component separately.
func Median(colors []Color) Color {
	if len(colors) == 0 {
		return Black
	}
	components := [3][]float64{}
	for _, c := range colors {
		components[0] = append(components[0], c.R)
		components[1] = append(components[1], c.G)
		components[2] = append(components[2], c.B)
	}

	median := func(values []float64) float64 {
		sort.Float64s(values)
		n := len(values)
		if n%2 == 0 {
			return (values[n/2-1] + values[n/2]) / 2
		}
		return values[n/2]
	}

	return Color{R: median(components[0]), G: median(components[1]), B: median(components[2])}
}

// Mode returns the most common color. Ties go to the color seen first.
func Mode(colors []Color) Color {
	if len(colors) == 0 {
		return Black
	}
	counts := make(map[uint32]int)
	var modeColor Color
	maxCount := 0
	for _, c := range colors {
		key := c.Packed()
		counts[key]++
		if counts[key] > maxCount {
			maxCount = counts[key]
			modeColor = c
		}
	}
	return modeColor
}
