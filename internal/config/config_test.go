package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/pslight/internal/color"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 108, cfg.NumberOfLeds)
	assert.Equal(t, 2*time.Second, cfg.TransitionDuration)
	assert.Equal(t, 4*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, []string{SinkOPC}, cfg.Sinks)
	assert.Equal(t, PowerMock, cfg.PowerSource)
	assert.Equal(t, ":8085", cfg.WebAddress)
	assert.Empty(t, cfg.SpansFile)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NUMBER_OF_LEDS", "60")
	t.Setenv("TRANSITION_DURATION", "1500ms")
	t.Setenv("SINKS", "opc,terminal")
	t.Setenv("POWER_SOURCE", "network")
	t.Setenv("GAMMA", "2.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.NumberOfLeds)
	assert.Equal(t, 1500*time.Millisecond, cfg.TransitionDuration)
	assert.True(t, cfg.HasSink(SinkTerminal))
	assert.False(t, cfg.HasSink(SinkLifx))
	assert.Equal(t, PowerNetwork, cfg.PowerSource)
	assert.Equal(t, 2.2, cfg.Gamma)
}

func TestValidate(t *testing.T) {
	t.Setenv("NUMBER_OF_LEDS", "0")
	t.Setenv("SINKS", "opc,laser")
	t.Setenv("POWER_SOURCE", "psychic")
	t.Setenv("BRIGHTNESS", "3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NUMBER_OF_LEDS")
	assert.Contains(t, err.Error(), `unknown sink "laser"`)
	assert.Contains(t, err.Error(), `unknown POWER_SOURCE "psychic"`)
	assert.Contains(t, err.Error(), "BRIGHTNESS")
}

func TestParseLayout(t *testing.T) {
	layout, err := ParseLayout([]byte(`
spans:
  - name: fault
    color: "#ff0000"
    group: override
    source: faults
  - name: player1
    color: 4070ff
    group: 2
    source: mock
  - name: standby
    color: "#402000"
    group: -1.5
    source: always
`))
	require.NoError(t, err)
	require.Len(t, layout.Spans, 3)

	assert.True(t, math.IsInf(float64(layout.Spans[0].Group), 1))
	assert.Equal(t, color.Red, color.Color(layout.Spans[0].Color))
	assert.Equal(t, uint32(0x4070FF), color.Color(layout.Spans[1].Color).Packed())
	assert.Equal(t, Group(-1.5), layout.Spans[2].Group)
	assert.Equal(t, SourceAlways, layout.Spans[2].Source)
}

func TestParseLayoutErrors(t *testing.T) {
	tests := map[string]string{
		"bad color":      "spans:\n  - {name: a, color: '#zz0000', group: 0, source: always}\n",
		"bad group":      "spans:\n  - {name: a, color: '#ff0000', group: high, source: always}\n",
		"reserved group": "spans:\n  - {name: a, color: '#ff0000', group: -.inf, source: always}\n",
		"bad source":     "spans:\n  - {name: a, color: '#ff0000', group: 0, source: moon}\n",
		"duplicate":      "spans:\n  - {name: a, color: '#ff0000', group: 0, source: always}\n  - {name: a, color: '#ff0000', group: 1, source: mock}\n",
		"missing name":   "spans:\n  - {color: '#ff0000', group: 0, source: always}\n",
		"empty":          "spans: []\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLayout([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadLayout(t *testing.T) {
	layout, err := LoadLayout("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout(), layout)
	require.NoError(t, layout.Validate())

	path := filepath.Join(t.TempDir(), "spans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spans:\n  - {name: only, color: '#ffffff', group: 0, source: never}\n"), 0o600))
	layout, err = LoadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, "only", layout.Spans[0].Name)

	_, err = LoadLayout(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
