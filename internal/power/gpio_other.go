//go:build !linux

package power

import (
	"context"
	"errors"

	"github.com/scheerer/pslight/internal/signal"
)

// GPIO needs the Linux GPIO character device; elsewhere it only reports a
// fault.
type GPIO struct {
	faults *signal.Faults
	power  *signal.Cell
}

func NewGPIO(chip string, offset int, faults *signal.Faults) *GPIO {
	return &GPIO{faults: faults, power: signal.NewCell(false)}
}

func (g *GPIO) Watch(ctx context.Context) <-chan bool {
	return g.power.Watch(ctx)
}

func (g *GPIO) Start(ctx context.Context) error {
	g.faults.Set(signal.FaultPowerMonitor)
	return errors.New("power: gpio is only supported on linux")
}
