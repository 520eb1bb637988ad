package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/scheerer/pslight/internal/color"
)

// Where a span's enable state comes from.
const (
	SourceAlways = "always"
	SourceNever  = "never"
	SourcePower  = "power"
	SourceMock   = "mock"
	SourceFaults = "faults"
)

type Layout struct {
	Spans []SpanDef `yaml:"spans"`
}

type SpanDef struct {
	Name   string `yaml:"name"`
	Color  Color  `yaml:"color"`
	Group  Group  `yaml:"group"`
	Source string `yaml:"source"`
}

// Color is a hex color in YAML.
type Color color.Color

func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := color.ParseHex(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = Color(parsed)
	return nil
}

// Group is a span priority. Besides numbers it accepts "override" for the
// fault tier above every other group.
type Group float64

func (g *Group) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "override":
		*g = Group(math.Inf(1))
		return nil
	}
	var f float64
	if err := value.Decode(&f); err != nil {
		return fmt.Errorf("line %d: invalid group %q", value.Line, value.Value)
	}
	if math.IsInf(f, -1) || math.IsNaN(f) {
		return fmt.Errorf("line %d: group %q is reserved", value.Line, value.Value)
	}
	*g = Group(f)
	return nil
}

// DefaultLayout mirrors the stock install: four player spans, the console
// power span and the standby glow.
func DefaultLayout() Layout {
	return Layout{Spans: []SpanDef{
		{Name: "player1", Color: Color(color.FromPacked(0x4070FF)), Group: 2, Source: SourceMock},
		{Name: "player2", Color: Color(color.FromPacked(0x40FF70)), Group: 2, Source: SourceMock},
		{Name: "player3", Color: Color(color.FromPacked(0xFF40FF)), Group: 2, Source: SourceMock},
		{Name: "player4", Color: Color(color.FromPacked(0xD84315)), Group: 2, Source: SourceMock},
		{Name: "power", Color: Color(color.FromPacked(0xA0A0A0)), Group: 1, Source: SourcePower},
		{Name: "standby", Color: Color(color.FromPacked(0x402000)), Group: 0, Source: SourceAlways},
	}}
}

// LoadLayout reads a span layout file, or returns the default layout when
// path is empty.
func LoadLayout(path string) (Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read spans %s: %w", path, err)
	}
	return ParseLayout(data)
}

func ParseLayout(data []byte) (Layout, error) {
	var layout Layout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return Layout{}, fmt.Errorf("parse spans: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return Layout{}, err
	}
	return layout, nil
}

func (l Layout) Validate() error {
	if len(l.Spans) == 0 {
		return fmt.Errorf("spans: no spans defined")
	}
	seen := make(map[string]bool, len(l.Spans))
	for i, s := range l.Spans {
		if s.Name == "" {
			return fmt.Errorf("spans[%d]: missing name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("spans[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true

		switch s.Source {
		case SourceAlways, SourceNever, SourcePower, SourceMock, SourceFaults:
		default:
			return fmt.Errorf("spans[%d] %s: unknown source %q", i, s.Name, s.Source)
		}
	}
	return nil
}
