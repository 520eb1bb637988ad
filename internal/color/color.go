// Package color holds the RGB vector every other package passes around.
// Components are normalized to [0,1]; values outside that range are legal
// while blending but are clamped before they reach a strip.
package color

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

type Color struct {
	R float64
	G float64
	B float64
}

var (
	Black = FromPacked(0x000000)
	White = FromPacked(0xFFFFFF)
	Red   = FromPacked(0xFF0000)
)

func New(r, g, b float64) Color {
	return Color{R: r, G: g, B: b}
}

// FromPacked builds a color from a 0xRRGGBB integer.
func FromPacked(packed uint32) Color {
	return Color{
		R: float64((packed>>16)&0xFF) / 255,
		G: float64((packed>>8)&0xFF) / 255,
		B: float64(packed&0xFF) / 255,
	}
}

// Packed returns the clamped color as 0xRRGGBB.
func (c Color) Packed() uint32 {
	r, g, b := c.RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// RGB255 returns the clamped color as 8-bit channels.
func (c Color) RGB255() (uint8, uint8, uint8) {
	c = c.Clamp()
	return uint8(math.Round(c.R * 255)), uint8(math.Round(c.G * 255)), uint8(math.Round(c.B * 255))
}

// Map applies f to each component. index is 0 for red, 1 for green and 2
// for blue.
func (c Color) Map(f func(component float64, index int) float64) Color {
	return Color{R: f(c.R, 0), G: f(c.G, 1), B: f(c.B, 2)}
}

func (c Color) Clamp() Color {
	return c.Map(func(v float64, _ int) float64 {
		if math.IsNaN(v) || v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	})
}

// Lerp moves from c towards to by t, where t=0 is c and t=1 is to.
func (c Color) Lerp(to Color, t float64) Color {
	return Color{
		R: c.R + (to.R-c.R)*t,
		G: c.G + (to.G-c.G)*t,
		B: c.B + (to.B-c.B)*t,
	}
}

// Add and Mul are used to build weighted averages.
func (c Color) Add(o Color) Color {
	return Color{R: c.R + o.R, G: c.G + o.G, B: c.B + o.B}
}

func (c Color) Mul(f float64) Color {
	return Color{R: c.R * f, G: c.G * f, B: c.B * f}
}

// Scale multiplies every component by brightness.
func (c Color) Scale(brightness float64) Color {
	return c.Map(func(v float64, _ int) float64 { return v * brightness })
}

// Gamma raises every component to the power gamma. A gamma of 1 is the
// identity.
func (c Color) Gamma(gamma float64) Color {
	if gamma == 1 {
		return c
	}
	return c.Clamp().Map(func(v float64, _ int) float64 { return math.Pow(v, gamma) })
}

// Equal compares colors at 8-bit precision, which is all a strip can show.
func (c Color) Equal(o Color) bool {
	return c.Packed() == o.Packed()
}

func (c Color) Hex() string {
	return fmt.Sprintf("%06x", c.Packed())
}

func (c Color) String() string {
	return "#" + c.Hex()
}

// ParseHex accepts "#rrggbb", "rrggbb" and the short "#rgb" form.
func ParseHex(s string) (Color, error) {
	if len(s) > 0 && s[0] != '#' {
		s = "#" + s
	}
	cf, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: cf.R, G: cf.G, B: cf.B}, nil
}

// UnmarshalText lets colors be written as hex strings in config files.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
