package sink

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/kellydunn/go-opc"
	"go.uber.org/zap"

	"github.com/scheerer/pslight/internal/color"
)

type OPCConfig struct {
	Address        string
	Channel        uint8
	ReconnectDelay time.Duration
}

// OPC streams frames to an Open Pixel Control server such as a fadecandy.
// Writes are queued; only the newest unsent frame is kept.
type OPC struct {
	config    OPCConfig
	frames    latest
	connected atomic.Bool
}

func NewOPC(config OPCConfig) *OPC {
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 2 * time.Second
	}
	return &OPC{
		config: config,
		frames: newLatest(),
	}
}

func (o *OPC) Write(frame []color.Color) error {
	o.frames.offer(frame)
	if !o.connected.Load() {
		return fmt.Errorf("opc %s: %w", o.config.Address, ErrNotConnected)
	}
	return nil
}

func (o *OPC) Connected() bool {
	return o.connected.Load()
}

// Start keeps a connection open and sends queued frames until ctx is done.
// The connection is dialed here rather than through opc.Client, which has
// no way to close it.
func (o *OPC) Start(ctx context.Context) {
	var dialer net.Dialer
	var last []color.Color
	for {
		conn, err := dialer.DialContext(ctx, "tcp", o.config.Address)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.With(zap.String("address", o.config.Address), zap.Error(err)).Warn("Failed to connect to OPC server")
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.config.ReconnectDelay):
				continue
			}
		}

		logger.With(zap.String("address", o.config.Address)).Info("Connected to OPC server")
		o.connected.Store(true)

		// resend what the strip should show after a reconnect
		if last != nil {
			err = o.send(conn, last)
		}
		for err == nil {
			select {
			case <-ctx.Done():
				// flush the fade-out frame queued right before shutdown
				select {
				case frame := <-o.frames.ch:
					_ = o.send(conn, frame)
				default:
				}
				o.connected.Store(false)
				_ = conn.Close()
				return
			case frame := <-o.frames.ch:
				last = frame
				err = o.send(conn, frame)
			}
		}

		o.connected.Store(false)
		_ = conn.Close()
		logger.With(zap.String("address", o.config.Address), zap.Error(err)).Warn("Lost OPC server")
	}
}

func (o *OPC) send(conn net.Conn, frame []color.Color) error {
	_, err := conn.Write(o.message(frame).ByteArray())
	return err
}

func (o *OPC) message(frame []color.Color) *opc.Message {
	m := opc.NewMessage(o.config.Channel)
	m.SetLength(uint16(len(frame) * 3))
	for i, c := range frame {
		r, g, b := c.RGB255()
		m.SetPixelColor(i, r, g, b)
	}
	return m
}
