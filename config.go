package main

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the intake server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyS0")
	SerialPort string
	// BaudRate is the rate the modem is pinned to (e.g. 57600)
	BaudRate int
	// BaudConfigured skips baud negotiation for modems already pinned to BaudRate
	BaudConfigured bool
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// CollectorURL is where envelopes are posted
	CollectorURL string
	// APN is the access point name of the cellular data bearer
	APN string
	// PowerKeyPin is the BCM number of the modem's power-key line
	PowerKeyPin int
	// RelayPin is the BCM number of the line switching the modem supply
	RelayPin int
	// StateFile keeps undelivered messages and errors across restarts;
	// empty disables persistence
	StateFile string
	// ActionTimeout bounds the wait for the collector's answer; zero keeps
	// the modem default
	ActionTimeout time.Duration
	// RegistrationTimeout bounds network registration; zero keeps the
	// modem default
	RegistrationTimeout time.Duration
	// MaxReadyDuration is how long the modem may stay registered before a
	// preventive restart; zero keeps the modem default
	MaxReadyDuration time.Duration
}

// Options are the command-line flags. Only flags given explicitly are
// non-nil and override defaults and environment.
type Options struct {
	BindAddress    *string `long:"bind-address" description:"Bind address for the HTTP server"`
	SerialPort     *string `long:"serial-port" description:"Serial port connected to the modem"`
	BaudRate       *int    `long:"baud-rate" description:"Baud rate the modem is pinned to"`
	BaudConfigured *bool   `long:"baud-configured" description:"Skip baud negotiation, the modem is already pinned"`
	LogLevel       *string `long:"log-level" description:"Log level (debug, info, warn, error)"`
	CollectorURL   *string `long:"collector-url" description:"URL envelopes are posted to"`
	APN            *string `long:"apn" description:"Access point name of the data bearer"`
	PowerKeyPin    *int    `long:"power-key-pin" description:"BCM pin driving the modem power key"`
	RelayPin       *int    `long:"relay-pin" description:"BCM pin driving the supply relay"`
	StateFile      *string `long:"state-file" description:"File keeping undelivered data across restarts"`

	ActionTimeout       *time.Duration `long:"action-timeout" description:"How long to wait for the collector's answer"`
	RegistrationTimeout *time.Duration `long:"registration-timeout" description:"How long to wait for network registration"`
	MaxReadyDuration    *time.Duration `long:"max-ready-duration" description:"Restart the modem after being registered this long"`
}

// ErrNoCollectorURL is returned by Validate when no collector is configured.
var ErrNoCollectorURL = errors.New("collector URL is required")

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// Validate reports settings the daemon cannot run without.
func (c *Config) Validate() error {
	if c.CollectorURL == "" {
		return ErrNoCollectorURL
	}
	return nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "127.0.0.1:8080"
		c.SerialPort = "/dev/ttyS0"
		c.BaudRate = 57600
		c.LogLevel = "info"
		c.APN = "CMNET"
		c.PowerKeyPin = 17
		c.RelayPin = 27
		c.StateFile = "/var/lib/windsensor/state.json"
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if configured := os.Getenv("BAUD_CONFIGURED"); configured != "" {
			if b, err := strconv.ParseBool(configured); err == nil {
				c.BaudConfigured = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if url := os.Getenv("COLLECTOR_URL"); url != "" {
			c.CollectorURL = url
		}

		if apn := os.Getenv("APN"); apn != "" {
			c.APN = apn
		}

		if pin := os.Getenv("POWER_KEY_PIN"); pin != "" {
			if p, err := strconv.Atoi(pin); err == nil {
				c.PowerKeyPin = p
			}
		}

		if pin := os.Getenv("RELAY_PIN"); pin != "" {
			if p, err := strconv.Atoi(pin); err == nil {
				c.RelayPin = p
			}
		}

		if path, ok := os.LookupEnv("STATE_FILE"); ok {
			c.StateFile = path
		}

		if timeout := os.Getenv("ACTION_TIMEOUT"); timeout != "" {
			if d, err := time.ParseDuration(timeout); err == nil {
				c.ActionTimeout = d
			}
		}

		if timeout := os.Getenv("REGISTRATION_TIMEOUT"); timeout != "" {
			if d, err := time.ParseDuration(timeout); err == nil {
				c.RegistrationTimeout = d
			}
		}

		if ready := os.Getenv("MAX_READY_DURATION"); ready != "" {
			if d, err := time.ParseDuration(ready); err == nil {
				c.MaxReadyDuration = d
			}
		}

		return nil
	}
}

// WithFlags applies the command-line flags that were set
func WithFlags(opts *Options) ConfigOption {
	return func(c *Config) error {
		if opts.BindAddress != nil {
			c.BindAddress = *opts.BindAddress
		}
		if opts.SerialPort != nil {
			c.SerialPort = *opts.SerialPort
		}
		if opts.BaudRate != nil {
			c.BaudRate = *opts.BaudRate
		}
		if opts.BaudConfigured != nil {
			c.BaudConfigured = *opts.BaudConfigured
		}
		if opts.LogLevel != nil {
			c.LogLevel = *opts.LogLevel
		}
		if opts.CollectorURL != nil {
			c.CollectorURL = *opts.CollectorURL
		}
		if opts.APN != nil {
			c.APN = *opts.APN
		}
		if opts.PowerKeyPin != nil {
			c.PowerKeyPin = *opts.PowerKeyPin
		}
		if opts.RelayPin != nil {
			c.RelayPin = *opts.RelayPin
		}
		if opts.StateFile != nil {
			c.StateFile = *opts.StateFile
		}
		if opts.ActionTimeout != nil {
			c.ActionTimeout = *opts.ActionTimeout
		}
		if opts.RegistrationTimeout != nil {
			c.RegistrationTimeout = *opts.RegistrationTimeout
		}
		if opts.MaxReadyDuration != nil {
			c.MaxReadyDuration = *opts.MaxReadyDuration
		}
		return nil
	}
}
