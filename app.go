package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/pslight/internal/color"
	"github.com/scheerer/pslight/internal/config"
	"github.com/scheerer/pslight/internal/power"
	"github.com/scheerer/pslight/internal/signal"
	"github.com/scheerer/pslight/internal/sink"
	"github.com/scheerer/pslight/internal/strip"
	"github.com/scheerer/pslight/internal/web"
)

// stripGrace is how long the OPC server may stay unreachable at startup
// before it counts as a fault.
const stripGrace = 5 * time.Second

type component struct {
	name  string
	start func(ctx context.Context) error
}

type binding struct {
	name   string
	source signal.Source
	target signal.Target
}

// app wires the strip core to its sinks and signal sources.
type app struct {
	cfg        config.Config
	faults     *signal.Faults
	frames     *sink.Broadcast
	registry   *strip.Registry
	brightness *sink.Adjuster
	mocks      map[string]*signal.Cell
	components []component
	bindings   []binding
}

func newApp(cfg config.Config, layout config.Layout, onQuit func()) (*app, error) {
	a := &app{
		cfg:    cfg,
		faults: signal.NewFaults(),
		frames: sink.NewBroadcast(),
		mocks:  make(map[string]*signal.Cell),
	}

	writers, err := a.sinks(onQuit)
	if err != nil {
		return nil, err
	}
	animator := strip.NewAnimator(strip.AnimatorConfig{
		Length:        cfg.NumberOfLeds,
		Duration:      cfg.TransitionDuration,
		FrameInterval: cfg.FrameInterval,
		OnPanic:       a.haltOnPanic("animator"),
	}, sink.Multi(writers...))
	a.registry = strip.NewRegistry(animator)

	powerSource, err := a.powerSource()
	if err != nil {
		return nil, err
	}

	fault := a.registry.AddSpans("fault", strip.GroupOverride, color.Red, color.Black, color.Red)
	a.bind("fault", a.faults, fault)

	for _, def := range layout.Spans {
		span := a.registry.AddSpan(def.Name, color.Color(def.Color), float64(def.Group))
		switch def.Source {
		case config.SourceAlways:
			a.bind(def.Name, signal.Constant(true), span)
		case config.SourceNever:
			a.bind(def.Name, signal.Constant(false), span)
		case config.SourcePower:
			a.bind(def.Name, powerSource, span)
		case config.SourceFaults:
			a.bind(def.Name, a.faults, span)
		case config.SourceMock:
			a.bind(def.Name, a.mock(def.Name), span)
		default:
			return nil, fmt.Errorf("span %s: unknown source %q", def.Name, def.Source)
		}
	}

	if cfg.WebAddress != "" {
		var dimmer web.Dimmer
		if a.brightness != nil {
			dimmer = a.brightness
		}
		server := web.New(a.registry, a.frames, a.mocks, a.faults, dimmer)
		a.components = append(a.components, component{"web", func(ctx context.Context) error {
			return server.Start(ctx, cfg.WebAddress)
		}})
	}

	return a, nil
}

// sinks builds the writers every frame goes to. Brightness and gamma only
// apply to the physical strip; mirrors see the unadjusted frame.
func (a *app) sinks(onQuit func()) ([]sink.Writer, error) {
	writers := []sink.Writer{a.frames}

	if a.cfg.HasSink(config.SinkOPC) {
		o := sink.NewOPC(sink.OPCConfig{
			Address: a.cfg.OPCAddress,
			Channel: uint8(a.cfg.OPCChannel),
		})
		a.brightness = sink.Adjust(o, a.cfg.Brightness, a.cfg.Gamma)
		writers = append(writers, a.brightness)
		a.components = append(a.components,
			component{"opc", func(ctx context.Context) error {
				o.Start(ctx)
				return nil
			}},
			component{"opc-monitor", func(ctx context.Context) error {
				return watchConnection(ctx, o, a.faults)
			}})
	}

	if a.cfg.HasSink(config.SinkLifx) {
		summary, err := color.SummaryByName(a.cfg.LifxColorAlgo)
		if err != nil {
			return nil, err
		}
		l, err := sink.NewLifx(sink.LifxConfig{
			GroupName:     a.cfg.LifxGroupName,
			Interval:      a.cfg.LifxInterval,
			MaxBrightness: a.cfg.LifxMaxBrightness,
			MinBrightness: a.cfg.LifxMinBrightness,
			Summary:       summary,
		})
		if err != nil {
			return nil, fmt.Errorf("lifx: %w", err)
		}
		writers = append(writers, l)
		a.components = append(a.components, component{"lifx", func(ctx context.Context) error {
			l.Start(ctx)
			return nil
		}})
	}

	if a.cfg.HasSink(config.SinkTerminal) {
		t, err := sink.NewTerminal(onQuit)
		if err != nil {
			return nil, fmt.Errorf("terminal: %w", err)
		}
		writers = append(writers, t)
		a.components = append(a.components, component{"terminal", t.Start})
	}

	return writers, nil
}

func (a *app) powerSource() (signal.Source, error) {
	switch a.cfg.PowerSource {
	case config.PowerGPIO:
		g := power.NewGPIO(a.cfg.PowerGPIOChip, a.cfg.PowerGPIOLine, a.faults)
		a.components = append(a.components, component{"gpio", g.Start})
		return g, nil
	case config.PowerNetwork:
		n := power.NewNetwork(power.NetworkConfig{Port: a.cfg.PowerDDPPort}, a.faults)
		a.components = append(a.components, component{"network", n.Start})
		return n, nil
	case config.PowerMock:
		return a.mock("power"), nil
	}
	return nil, fmt.Errorf("unknown power source %q", a.cfg.PowerSource)
}

// mock returns the cell the dashboard toggles for name, creating it once.
func (a *app) mock(name string) *signal.Cell {
	if cell, ok := a.mocks[name]; ok {
		return cell
	}
	cell := signal.NewCell(false)
	a.mocks[name] = cell
	return cell
}

func (a *app) bind(name string, source signal.Source, target signal.Target) {
	a.bindings = append(a.bindings, binding{name, source, target})
}

// run starts every component and binding. It returns immediately.
func (a *app) run(ctx context.Context) {
	defer a.recoverHalt("bootstrap")

	for _, c := range a.components {
		a.goSafe(ctx, c)
	}
	for _, b := range a.bindings {
		signal.Bind(ctx, b.name, b.source, b.target, a.haltOnPanic(b.name))
	}
}

func (a *app) goSafe(ctx context.Context, c component) {
	go func() {
		defer a.recoverHalt(c.name)
		if err := c.start(ctx); err != nil && ctx.Err() == nil {
			logger.With(zap.String("component", c.name), zap.Error(err)).Error("Component stopped")
		}
	}()
}

// recoverHalt freezes the strip on the fault frame if the caller panicked.
func (a *app) recoverHalt(name string) {
	if r := recover(); r != nil {
		a.haltOnPanic(name)(r)
	}
}

// haltOnPanic is the hook for goroutines that recover on their own.
func (a *app) haltOnPanic(name string) func(any) {
	return func(r any) {
		logger.With(zap.String("component", name), zap.Any("panic", r)).Error("Panic, halting strip")
		a.registry.Halt()
	}
}

func (a *app) shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.registry.Shutdown(ctx)
}

type connection interface {
	Connected() bool
}

// watchConnection raises the strip fault while the LED server is unreachable.
func watchConnection(ctx context.Context, c connection, faults *signal.Faults) error {
	started := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		switch {
		case c.Connected():
			faults.Clear(signal.FaultStrip)
		case time.Since(started) > stripGrace:
			faults.Set(signal.FaultStrip)
		}
	}
}
