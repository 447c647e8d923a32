package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/jessevdk/go-flags"
	"i4.energy/across/windsensor/errlog"
	"i4.energy/across/windsensor/modem"
	"i4.energy/across/windsensor/outbox"
)

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(&opts))
	if err == nil {
		err = config.Validate()
	}
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	// Cancelled on shutdown so a send in progress stops waiting on the modem.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	powerKey, relay, closePins, err := modem.OpenPins(config.PowerKeyPin, config.RelayPin)
	if err != nil {
		logger.Error("Failed to open control lines", "error", err)
		os.Exit(1)
	}
	defer closePins()

	errors := errlog.New(errlog.DefaultCapacity)
	box := outbox.New(outbox.NewQueue(outbox.DefaultQueueCapacity), errors)

	modemConfig, err := modem.NewConfigBuilder().
		WithDialer(modem.SerialDialer{
			PortName: config.SerialPort,
			BaudRate: config.BaudRate,
		}).
		WithPins(powerKey, relay).
		WithErrorLog(errors).
		WithLogger(logger.With("component", "modem")).
		WithAPN(config.APN).
		WithBaudRates(config.BaudRate, modem.DefaultAutoBaudRate).
		WithBaudConfigured(config.BaudConfigured).
		WithActionTimeout(config.ActionTimeout).
		WithRegistrationTimeout(config.RegistrationTimeout).
		WithMaxReadyDuration(config.MaxReadyDuration).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		logger.Error("Failed to create modem", "error", err)
		os.Exit(1)
	}

	uplink := NewUplink(logger.With("component", "uplink"), m, box, config.CollectorURL, StateFile{Path: config.StateFile})
	if err := uplink.Restore(); err != nil {
		logger.Warn("Starting without saved state", "error", err)
	}

	logger.Info("Starting wind sensor uplink", "collector", config.CollectorURL, "serial_port", config.SerialPort)

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:  logger.With("component", "server"),
			Uplink:  uplink,
			Modem:   m,
			Context: ctx,
		},
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("Failed to notify service manager", "error", err)
	} else if sent {
		logger.Debug("Notified service manager")
	}

	// Wait for interrupt signal
	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig)

	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		logger.Warn("Failed to notify service manager", "error", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
	}
}
