package sink

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pdf/golifx"
	"github.com/pdf/golifx/common"
	"github.com/pdf/golifx/protocol"
	"go.uber.org/zap"

	"github.com/scheerer/pslight/internal/color"
)

type LifxConfig struct {
	GroupName     string
	Interval      time.Duration
	MaxBrightness float64
	MinBrightness float64
	// Summary picks the bulb color from a frame. Defaults to the average.
	Summary color.Summary
}

// Lifx mirrors the strip onto a LIFX group as a summary of the frame, so
// room lights follow whatever the strip shows.
type Lifx struct {
	config LifxConfig
	client *golifx.Client

	frames latest

	groupMu sync.RWMutex
	group   common.Group
}

func NewLifx(config LifxConfig) (*Lifx, error) {
	client, err := golifx.NewClient(&protocol.V2{})
	if err != nil {
		return nil, err
	}
	if config.Interval <= 0 {
		config.Interval = 250 * time.Millisecond
	}
	if config.MaxBrightness <= 0 {
		config.MaxBrightness = 1
	}
	if config.Summary == nil {
		config.Summary = color.Average
	}

	return &Lifx{
		config: config,
		client: client,
		frames: newLatest(),
	}, nil
}

func (l *Lifx) Write(frame []color.Color) error {
	l.frames.offer(frame)
	return nil
}

func (l *Lifx) Start(ctx context.Context) {
	defer l.client.Close()

	discoveryInterval := 15 * time.Second
	discoveryTicker := time.NewTicker(discoveryInterval)
	defer discoveryTicker.Stop()

	l.client.SetDiscoveryInterval(discoveryInterval)

	timeout := 5 * time.Second
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	l.discover(ctxWithTimeout)
	cancel()

	sendTicker := time.NewTicker(l.config.Interval)
	defer sendTicker.Stop()

	var pending []color.Color
	var sent common.Color
	for {
		select {
		case <-discoveryTicker.C:
			ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
			l.discover(ctxWithTimeout)
			cancel()
		case frame := <-l.frames.ch:
			pending = frame
		case <-sendTicker.C:
			if pending == nil {
				continue
			}
			lifxColor := adjustLifxColor(newLifxColor(l.config.Summary(pending)), l.config)
			pending = nil
			if lifxColor == sent {
				continue
			}
			if l.setColor(lifxColor) {
				sent = lifxColor
			}
		case <-ctx.Done():
			return
		}
	}
}

func (l *Lifx) discover(ctx context.Context) {
	logger.With(zap.String("group", l.config.GroupName)).Debug("LIFX discovery starting...")

	completed := make(chan common.Group, 1)
	go func() {
		g, err := l.client.GetGroupByLabel(l.config.GroupName)
		if err != nil {
			logger.With(zap.Error(err)).Debug("Failed to get LIFX group by label")
		}
		completed <- g
	}()

	select {
	case <-ctx.Done():
		logger.With(zap.Error(ctx.Err())).Warn("LIFX discovery timed out.")
	case g := <-completed:
		if g != nil {
			logger.With(zap.String("group", g.GetLabel())).Debug("LIFX group found")
			l.groupMu.Lock()
			l.group = g
			l.groupMu.Unlock()
		} else {
			logger.With(zap.String("group", l.config.GroupName)).Warn("Couldn't discover group.")
		}
	}
}

func (l *Lifx) setColor(lifxColor common.Color) bool {
	l.groupMu.RLock()
	group := l.group
	l.groupMu.RUnlock()
	if group == nil {
		return false
	}

	logger.With(zap.Any("lifxColor", lifxColor)).Debug("Setting LIFX group color")

	err := group.SetColor(lifxColor, l.config.Interval)
	if err != nil {
		logger.With(zap.Error(err)).Warn("Failed to set color for LIFX group")
		return false
	}
	return true
}

func newLifxColor(c color.Color) common.Color {
	hue, saturation, brightness := c.ToHSB()

	return common.Color{
		Hue:        hue,
		Saturation: saturation,
		Brightness: brightness,
		Kelvin:     3500,
	}
}

func adjustLifxColor(c common.Color, config LifxConfig) common.Color {
	blackThreshold := 0.015 * 0xFFFF
	if c.Brightness <= uint16(blackThreshold) && c.Saturation <= uint16(blackThreshold) {
		// blackish color - turn off the light
		return common.Color{Kelvin: 3500}
	}

	c.Brightness = uint16(math.Min(config.MaxBrightness*0xFFFF, math.Max(config.MinBrightness*0xFFFF, float64(c.Brightness))))

	return c
}
