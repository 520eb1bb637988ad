package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/pslight/internal/config"
	"github.com/scheerer/pslight/internal/logging"
)

var logger = logging.New("main")

const shutdownTimeout = 5 * time.Second

func main() {
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to parse environment variables")
	}
	if err := logging.Configure(cfg.LogLevel); err != nil {
		logger.With(zap.Error(err)).Fatal("Invalid LOG_LEVEL")
	}
	layout, err := config.LoadLayout(cfg.SpansFile)
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to load span layout")
	}

	logger.With(zap.Any("config", cfg)).Info("Starting pslight")
	logger.Info("Adjust NUMBER_OF_LEDS to match the strip.")
	logger.Info("Adjust SINKS to choose outputs. Valid values are: [opc, lifx, terminal]")
	logger.Info("Adjust POWER_SOURCE to choose how console power is detected. Valid values are: [gpio, network, mock]")
	logger.Info("Set SPANS_FILE to a YAML span layout to replace the default spans.")
	logger.Info("Press Ctrl+C to stop")

	quit := make(chan struct{})
	var quitOnce sync.Once
	onQuit := func() { quitOnce.Do(func() { close(quit) }) }

	a, err := newApp(cfg, layout, onQuit)
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.run(ctx)

	shutdown := make(chan os.Signal, 1)
	ossignal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-shutdown:
	case <-quit:
	}

	logger.Info("Shutting down")
	if err := a.shutdown(shutdownTimeout); err != nil {
		logger.With(zap.Error(err)).Warn("Strip did not fade out in time")
	}
	cancel()
	// give sinks a moment to close their connections
	time.Sleep(100 * time.Millisecond)
}
