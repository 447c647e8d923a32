package modem

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Modem drives a cellular modem attached over a Transport and delivers
// HTTP POST requests through it. It owns the transport and both control
// lines for its lifetime.
//
// A Modem is not reentrant: Send must not be called again before the
// previous call returned. Status may be called concurrently.
type Modem struct {
	// transport provides the physical connection to the modem
	transport Transport
	// lines frames the transport byte stream into response lines
	lines *lineReader
	// config contains the modem configuration settings
	config Config
	// logger receives protocol traces
	logger *slog.Logger
	// errors records failure tokens for the collector
	errors ErrorRecorder
	// closed indicates if the modem has been shut down
	closed bool

	// baudConfigured is set once the modem is known to use the fixed rate
	baudConfigured bool

	mu         sync.Mutex
	readiness  Readiness
	failures   int
	readySince time.Time
}

// Status is a snapshot of the engine's session state.
type Status struct {
	Readiness           Readiness
	ConsecutiveFailures int
	// ReadySince is zero unless Readiness is ReadinessReady.
	ReadySince time.Time
}

// New creates a new Modem with the given configuration and opens its
// transport. The modem itself is activated lazily by the first Send.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	config.powerKey.Low()
	config.relay.Low()

	m := &Modem{
		transport:      transport,
		lines:          newLineReader(transport, config.clock, config.lineCapacity),
		config:         config,
		logger:         config.logger,
		errors:         config.errors,
		baudConfigured: config.baudConfigured,
		readiness:      ReadinessUnconfigured,
	}
	if m.baudConfigured {
		m.readiness = ReadinessIdle
	}
	return m, nil
}

// Send delivers body to url as an HTTP POST and returns the HTTP status
// code, or 0 when no status could be obtained. Failures are recorded in
// the error log; Send never panics on a misbehaving modem and always
// returns once its internal deadlines have elapsed.
//
// Cancelling ctx expires every pending wait, so Send returns promptly with
// status 0 after tearing down the HTTP session.
func (m *Modem) Send(ctx context.Context, url, body string) int {
	if m.closed || m.transport == nil {
		return 0
	}

	if err := m.transport.ResetInputBuffer(); err != nil {
		m.logger.Warn("could not flush input", "error", err)
	}
	m.lines.reset()

	status := 0
	if m.ensureReady(ctx) {
		status = m.post(ctx, url, body)
	}
	m.logger.Info("send finished", "status", status, "bytes", len(body))

	m.afterSend(ctx, status)
	return status
}

// Status returns the current session state.
func (m *Modem) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Readiness:           m.readiness,
		ConsecutiveFailures: m.failures,
		ReadySince:          m.readySince,
	}
}

// Close releases the transport. After calling Close(), the modem cannot be
// reused.
func (m *Modem) Close() error {
	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true

	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}

func (m *Modem) setReadiness(r Readiness) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readiness != r {
		m.logger.Debug("readiness changed", "from", m.readiness, "to", r)
	}
	m.readiness = r
	if r == ReadinessReady {
		m.readySince = m.config.clock.Now()
	} else {
		m.readySince = time.Time{}
	}
}
