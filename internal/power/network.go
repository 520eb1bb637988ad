// Package power reports whether the console is switched on.
package power

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/pslight/internal/logging"
	"github.com/scheerer/pslight/internal/signal"
)

var logger = logging.New("power")

const DefaultDDPPort = 9302

var ddpProbe = []byte("SRCH * HTTP/1.1\ndevice-discovery-protocol-version:00030010\n\x00")

type Status int

const (
	StatusUnknown Status = iota
	StatusStandby
	StatusAwake
)

func (s Status) String() string {
	switch s {
	case StatusStandby:
		return "standby"
	case StatusAwake:
		return "awake"
	default:
		return "unknown"
	}
}

type NetworkConfig struct {
	Port     int
	Interval time.Duration
	// Broadcast is the address probes are sent to.
	Broadcast string
}

// Network finds consoles by broadcasting device discovery probes and
// reports power on while any console that answered is awake.
type Network struct {
	config NetworkConfig
	faults *signal.Faults
	power  *signal.Cell

	mu      sync.Mutex
	devices map[string]Status
}

func NewNetwork(config NetworkConfig, faults *signal.Faults) *Network {
	if config.Port == 0 {
		config.Port = DefaultDDPPort
	}
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.Broadcast == "" {
		config.Broadcast = "255.255.255.255"
	}
	return &Network{
		config:  config,
		faults:  faults,
		power:   signal.NewCell(false),
		devices: make(map[string]Status),
	}
}

func (n *Network) Watch(ctx context.Context) <-chan bool {
	return n.power.Watch(ctx)
}

func (n *Network) Devices() map[string]Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	devices := make(map[string]Status, len(n.devices))
	for id, status := range n.devices {
		devices[id] = status
	}
	return devices
}

// Start probes until ctx is done.
func (n *Network) Start(ctx context.Context) error {
	lc := net.ListenConfig{Control: enableBroadcast}
	pc, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		n.faults.Set(signal.FaultPowerMonitor)
		return fmt.Errorf("power: listen: %w", err)
	}
	defer pc.Close()

	target, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", n.config.Broadcast, n.config.Port))
	if err != nil {
		n.faults.Set(signal.FaultPowerMonitor)
		return fmt.Errorf("power: resolve %s: %w", n.config.Broadcast, err)
	}

	go n.receive(pc)

	ticker := time.NewTicker(n.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := pc.WriteTo(ddpProbe, target); err != nil {
			logger.With(zap.Error(err)).Warn("Failed to send discovery probe")
			n.faults.Set(signal.FaultPowerMonitor)
		} else {
			n.faults.Clear(signal.FaultPowerMonitor)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (n *Network) receive(pc net.PacketConn) {
	buf := make([]byte, 2048)
	for {
		size, _, err := pc.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logger.With(zap.Error(err)).Warn("Failed to read discovery response")
			}
			return
		}
		hostID, status, ok := parseDDP(string(buf[:size]))
		if !ok {
			continue
		}
		n.update(hostID, status)
	}
}

func (n *Network) update(hostID string, status Status) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if previous, ok := n.devices[hostID]; !ok || previous != status {
		logger.With(zap.String("hostID", hostID), zap.Stringer("status", status)).Info("Console status changed")
	}
	n.devices[hostID] = status

	awake := false
	for _, s := range n.devices {
		if s == StatusAwake {
			awake = true
		}
	}
	n.power.Set(awake)
}

// parseDDP reads a discovery response such as
//
//	HTTP/1.1 200 Ok
//	host-id:1234
func parseDDP(message string) (string, Status, bool) {
	lines := strings.Split(strings.TrimSpace(message), "\n")
	parts := strings.SplitN(strings.TrimSpace(lines[0]), " ", 3)
	if len(parts) < 2 || parts[0] != "HTTP/1.1" {
		return "", StatusUnknown, false
	}

	var hostID string
	for _, line := range lines[1:] {
		key, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if found && key == "host-id" {
			hostID = value
		}
	}
	if hostID == "" {
		return "", StatusUnknown, false
	}

	switch parts[1] {
	case "200":
		return hostID, StatusAwake, true
	case "620":
		return hostID, StatusStandby, true
	default:
		return hostID, StatusUnknown, true
	}
}
