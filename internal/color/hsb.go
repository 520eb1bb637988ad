package color

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ToHSB converts to the 16-bit hue, saturation and brightness LIFX bulbs
// expect. Hue wraps so that red is always 0.
func (c Color) ToHSB() (uint16, uint16, uint16) {
	c = c.Clamp()
	hue, saturation, value := colorful.Color{R: c.R, G: c.G, B: c.B}.Hsv()

	turn := math.Mod(hue/360, 1)
	if turn < 0 {
		turn++
	}
	return to16(turn), to16(saturation), to16(value)
}

func to16(v float64) uint16 {
	return uint16(math.Round(math.Max(0, math.Min(v, 1)) * 0xFFFF))
}
