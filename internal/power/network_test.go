package power

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/pslight/internal/signal"
)

func TestParseDDP(t *testing.T) {
	tests := []struct {
		name    string
		message string
		hostID  string
		status  Status
		ok      bool
	}{
		{"awake", "HTTP/1.1 200 Ok\nhost-id:ABC\nhost-type:PS5\n", "ABC", StatusAwake, true},
		{"standby", "HTTP/1.1 620 Server Standby\nhost-id:ABC\n", "ABC", StatusStandby, true},
		{"other status", "HTTP/1.1 500 Broken\nhost-id:XYZ", "XYZ", StatusUnknown, true},
		{"no host id", "HTTP/1.1 200 Ok\nhost-type:PS5\n", "", StatusUnknown, false},
		{"probe echo", string(ddpProbe), "", StatusUnknown, false},
		{"garbage", "hello", "", StatusUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hostID, status, ok := parseDDP(tt.message)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.hostID, hostID)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestNetworkPowerFollowsAnyAwakeConsole(t *testing.T) {
	n := NewNetwork(NetworkConfig{}, signal.NewFaults())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	power := n.Watch(ctx)
	assert.False(t, <-power)

	n.update("A", StatusStandby)
	n.update("B", StatusAwake)
	assert.True(t, <-power)

	n.update("B", StatusStandby)
	assert.False(t, <-power)
	assert.Equal(t, map[string]Status{"A": StatusStandby, "B": StatusStandby}, n.Devices())
}

func TestNetworkDiscoversConsole(t *testing.T) {
	console, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer console.Close()

	go func() {
		buf := make([]byte, 1024)
		for {
			_, from, err := console.ReadFrom(buf)
			if err != nil {
				return
			}
			_, _ = console.WriteTo([]byte("HTTP/1.1 200 Ok\nhost-id:CONSOLE1\n"), from)
		}
	}()

	faults := signal.NewFaults()
	n := NewNetwork(NetworkConfig{
		Port:      console.LocalAddr().(*net.UDPAddr).Port,
		Interval:  10 * time.Millisecond,
		Broadcast: "127.0.0.1",
	}, faults)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = n.Start(ctx) }()

	power := n.Watch(ctx)
	require.Eventually(t, func() bool {
		select {
		case v := <-power:
			return v
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, StatusAwake, n.Devices()["CONSOLE1"])
	assert.False(t, faults.Has(signal.FaultPowerMonitor))
}
