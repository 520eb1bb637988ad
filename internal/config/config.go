package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env"

	"github.com/scheerer/pslight/internal/color"
)

const (
	SinkOPC      = "opc"
	SinkLifx     = "lifx"
	SinkTerminal = "terminal"

	PowerGPIO    = "gpio"
	PowerNetwork = "network"
	PowerMock    = "mock"
)

type Config struct {
	NumberOfLeds       int           `env:"NUMBER_OF_LEDS" envDefault:"108"`
	TransitionDuration time.Duration `env:"TRANSITION_DURATION" envDefault:"2s"`
	FrameInterval      time.Duration `env:"FRAME_INTERVAL" envDefault:"4ms"`
	Brightness         float64       `env:"BRIGHTNESS" envDefault:"1"`
	Gamma              float64       `env:"GAMMA" envDefault:"1"`

	Sinks             []string      `env:"SINKS" envDefault:"opc" envSeparator:","`
	OPCAddress        string        `env:"OPC_ADDRESS" envDefault:"localhost:7890"`
	OPCChannel        int           `env:"OPC_CHANNEL" envDefault:"0"`
	LifxGroupName     string        `env:"LIFX_GROUP_NAME" envDefault:"PSLIGHT"`
	LifxInterval      time.Duration `env:"LIFX_INTERVAL" envDefault:"250ms"`
	LifxMaxBrightness float64       `env:"LIFX_MAX_BRIGHTNESS" envDefault:"0.65"`
	LifxMinBrightness float64       `env:"LIFX_MIN_BRIGHTNESS" envDefault:"0"`
	LifxColorAlgo     string        `env:"LIFX_COLOR_ALGO" envDefault:"AVERAGE"`

	PowerSource   string `env:"POWER_SOURCE" envDefault:"mock"`
	PowerGPIOChip string `env:"POWER_GPIO_CHIP" envDefault:"gpiochip0"`
	PowerGPIOLine int    `env:"POWER_GPIO_LINE" envDefault:"25"`
	PowerDDPPort  int    `env:"POWER_DDP_PORT" envDefault:"9302"`

	WebAddress string `env:"WEB_ADDRESS" envDefault:":8085"`
	SpansFile  string `env:"SPANS_FILE"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.NumberOfLeds <= 0 {
		errs = append(errs, fmt.Errorf("NUMBER_OF_LEDS must be positive, got %d", c.NumberOfLeds))
	}
	if c.TransitionDuration <= 0 {
		errs = append(errs, fmt.Errorf("TRANSITION_DURATION must be positive, got %s", c.TransitionDuration))
	}
	if c.Brightness < 0 || c.Brightness > 1 {
		errs = append(errs, fmt.Errorf("BRIGHTNESS must be between 0 and 1, got %v", c.Brightness))
	}
	if c.Gamma <= 0 {
		errs = append(errs, fmt.Errorf("GAMMA must be positive, got %v", c.Gamma))
	}
	if c.OPCChannel < 0 || c.OPCChannel > 255 {
		errs = append(errs, fmt.Errorf("OPC_CHANNEL must be between 0 and 255, got %d", c.OPCChannel))
	}
	for _, s := range c.Sinks {
		if !slices.Contains([]string{SinkOPC, SinkLifx, SinkTerminal}, s) {
			errs = append(errs, fmt.Errorf("unknown sink %q in SINKS", s))
		}
	}
	if _, err := color.SummaryByName(c.LifxColorAlgo); err != nil {
		errs = append(errs, fmt.Errorf("LIFX_COLOR_ALGO: %w", err))
	}
	if !slices.Contains([]string{PowerGPIO, PowerNetwork, PowerMock}, c.PowerSource) {
		errs = append(errs, fmt.Errorf("unknown POWER_SOURCE %q", c.PowerSource))
	}
	return errors.Join(errs...)
}

func (c Config) HasSink(name string) bool {
	return slices.Contains(c.Sinks, name)
}
