//go:build linux

package power

import (
	"context"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"

	"github.com/scheerer/pslight/internal/signal"
)

// GPIO reads the console's power rail through a GPIO input line.
type GPIO struct {
	chip   string
	offset int
	faults *signal.Faults
	power  *signal.Cell
}

func NewGPIO(chip string, offset int, faults *signal.Faults) *GPIO {
	return &GPIO{
		chip:   chip,
		offset: offset,
		faults: faults,
		power:  signal.NewCell(false),
	}
}

func (g *GPIO) Watch(ctx context.Context) <-chan bool {
	return g.power.Watch(ctx)
}

// Start watches both edges of the line until ctx is done.
func (g *GPIO) Start(ctx context.Context) error {
	line, err := gpiocdev.RequestLine(g.chip, g.offset,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithConsumer("pslight"),
		gpiocdev.WithEventHandler(g.handleEvent))
	if err != nil {
		g.faults.Set(signal.FaultPowerMonitor)
		return fmt.Errorf("power: request %s line %d: %w", g.chip, g.offset, err)
	}
	defer line.Close()

	value, err := line.Value()
	if err != nil {
		g.faults.Set(signal.FaultPowerMonitor)
		return fmt.Errorf("power: read %s line %d: %w", g.chip, g.offset, err)
	}
	g.faults.Clear(signal.FaultPowerMonitor)
	g.power.Set(value == 1)

	logger.With(zap.String("chip", g.chip), zap.Int("line", g.offset), zap.Bool("power", value == 1)).Info("Watching power line")

	<-ctx.Done()
	return nil
}

func (g *GPIO) handleEvent(evt gpiocdev.LineEvent) {
	g.power.Set(evt.Type == gpiocdev.LineEventRisingEdge)
}
