package modem

import (
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultBaudRate is the rate the modem is pinned to after negotiation.
	DefaultBaudRate = 57600
	// DefaultAutoBaudRate is the rate probed when the modem does not greet
	// at DefaultBaudRate, i.e. the factory auto-bauding setting.
	DefaultAutoBaudRate = 115200
	// DefaultAPN is the packet data access point used for the bearer.
	DefaultAPN = "CMNET"
	// DefaultContentType is the content type announced for POST bodies.
	DefaultContentType = "application/json"
)

// ErrorRecorder receives error tokens. *errlog.Log satisfies it.
type ErrorRecorder interface {
	Append(token string)
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	if c.powerKey == nil || c.relay == nil {
		return ErrNoPins
	}
	if c.errors == nil {
		return ErrNoErrorLog
	}
	return nil
}

// Config holds everything the engine needs. Build it with NewConfigBuilder;
// zero timing fields are replaced by defaults.
type Config struct {
	dialer   Dialer
	powerKey Pin
	relay    Pin
	errors   ErrorRecorder
	logger   *slog.Logger
	clock    Clock

	apn         string
	contentType string

	baudRate       int
	autoBaudRate   int
	baudConfigured bool

	lineCapacity       int
	headerLineCapacity int

	atTimeout        time.Duration
	probeTimeout     time.Duration
	greetingTimeout  time.Duration
	simReadyTimeout  time.Duration
	registerTimeout  time.Duration
	registerInterval time.Duration
	downloadTimeout  time.Duration
	maxInputTime     time.Duration
	actionTimeout    time.Duration
	headerTimeout    time.Duration
	powerDownTimeout time.Duration
	powerDownPinWait time.Duration

	powerKeySettle    time.Duration
	powerKeyPulse     time.Duration
	relayPulse        time.Duration
	relayPowerDown    time.Duration
	maxReadyDuration  time.Duration
	greetingToggles   int
	autoBaudToggles   int
	autoBaudProbes    int
	activationRetries int
	maxFailures       int
}

func (c *Config) setDefaults() {
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.apn == "" {
		c.apn = DefaultAPN
	}
	if c.contentType == "" {
		c.contentType = DefaultContentType
	}
	if c.baudRate == 0 {
		c.baudRate = DefaultBaudRate
	}
	if c.autoBaudRate == 0 {
		c.autoBaudRate = DefaultAutoBaudRate
	}
	if c.lineCapacity == 0 {
		c.lineCapacity = 128
	}
	if c.headerLineCapacity == 0 {
		c.headerLineCapacity = 512
	}
	if c.atTimeout == 0 {
		c.atTimeout = time.Second
	}
	if c.probeTimeout == 0 {
		c.probeTimeout = 500 * time.Millisecond
	}
	if c.greetingTimeout == 0 {
		c.greetingTimeout = 8 * time.Second
	}
	if c.simReadyTimeout == 0 {
		c.simReadyTimeout = 5 * time.Second
	}
	if c.registerTimeout == 0 {
		c.registerTimeout = 20 * time.Second
	}
	if c.registerInterval == 0 {
		c.registerInterval = time.Second
	}
	if c.downloadTimeout == 0 {
		c.downloadTimeout = time.Second
	}
	if c.maxInputTime == 0 {
		c.maxInputTime = 3 * time.Second
	}
	if c.actionTimeout == 0 {
		c.actionTimeout = 10 * time.Second
	}
	if c.headerTimeout == 0 {
		c.headerTimeout = 5 * time.Second
	}
	if c.powerDownTimeout == 0 {
		c.powerDownTimeout = time.Second
	}
	if c.powerDownPinWait == 0 {
		c.powerDownPinWait = 5 * time.Second
	}
	if c.powerKeySettle == 0 {
		c.powerKeySettle = time.Second
	}
	if c.powerKeyPulse == 0 {
		c.powerKeyPulse = 1600 * time.Millisecond
	}
	if c.relayPulse == 0 {
		c.relayPulse = time.Second
	}
	if c.relayPowerDown == 0 {
		c.relayPowerDown = 5 * time.Second
	}
	if c.maxReadyDuration == 0 {
		c.maxReadyDuration = 24 * time.Hour
	}
	if c.greetingToggles == 0 {
		c.greetingToggles = 2
	}
	if c.autoBaudToggles == 0 {
		c.autoBaudToggles = 2
	}
	if c.autoBaudProbes == 0 {
		c.autoBaudProbes = 10
	}
	if c.activationRetries == 0 {
		c.activationRetries = 2
	}
	if c.maxFailures == 0 {
		c.maxFailures = 4
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithPins sets the power-key and relay output lines.
func (b *ConfigBuilder) WithPins(powerKey, relay Pin) *ConfigBuilder {
	b.config.powerKey = powerKey
	b.config.relay = relay
	return b
}

// WithErrorLog sets where error tokens are recorded.
func (b *ConfigBuilder) WithErrorLog(r ErrorRecorder) *ConfigBuilder {
	b.config.errors = r
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

func (b *ConfigBuilder) WithClock(c Clock) *ConfigBuilder {
	b.config.clock = c
	return b
}

func (b *ConfigBuilder) WithAPN(apn string) *ConfigBuilder {
	b.config.apn = apn
	return b
}

// WithBaudRates sets the rate the modem is pinned to and the auto-bauding
// rate probed as a fallback.
func (b *ConfigBuilder) WithBaudRates(fixed, auto int) *ConfigBuilder {
	b.config.baudRate = fixed
	b.config.autoBaudRate = auto
	return b
}

// WithBaudConfigured skips the first-activation baud negotiation, for
// modems already pinned to the fixed rate.
func (b *ConfigBuilder) WithBaudConfigured(configured bool) *ConfigBuilder {
	b.config.baudConfigured = configured
	return b
}

// WithATTimeout sets how long a command waits for its acknowledgement.
func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

// WithActionTimeout sets how long the HTTP action report is awaited.
func (b *ConfigBuilder) WithActionTimeout(d time.Duration) *ConfigBuilder {
	b.config.actionTimeout = d
	return b
}

// WithRegistrationTimeout bounds network registration polling.
func (b *ConfigBuilder) WithRegistrationTimeout(d time.Duration) *ConfigBuilder {
	b.config.registerTimeout = d
	return b
}

// WithMaxFailures sets how many consecutive failed sends force a full
// power cycle.
func (b *ConfigBuilder) WithMaxFailures(n int) *ConfigBuilder {
	b.config.maxFailures = n
	return b
}

// WithMaxReadyDuration sets after how long of continuous readiness the
// modem is power cycled preventively.
func (b *ConfigBuilder) WithMaxReadyDuration(d time.Duration) *ConfigBuilder {
	b.config.maxReadyDuration = d
	return b
}

// WithLineCapacity sets the largest line the framer accepts.
func (b *ConfigBuilder) WithLineCapacity(n int) *ConfigBuilder {
	b.config.lineCapacity = n
	return b
}

func (b *ConfigBuilder) Build() (Config, error) {
	if err := b.config.validate(); err != nil {
		return Config{}, err
	}
	b.config.setDefaults()
	return b.config, nil
}
