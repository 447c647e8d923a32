package modem

import (
	"fmt"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// Pin is a digital output line. rpio.Pin satisfies it.
type Pin interface {
	High()
	Low()
}

// OpenPins maps the GPIO registers and configures the power-key and relay
// lines as low outputs. The returned function unmaps the registers.
func OpenPins(powerKey, relay int) (Pin, Pin, func() error, error) {
	if err := rpio.Open(); err != nil {
		return nil, nil, nil, fmt.Errorf("open gpio: %w", err)
	}

	pk := rpio.Pin(powerKey)
	pk.Output()
	pk.Low()

	rl := rpio.Pin(relay)
	rl.Output()
	rl.Low()

	return pk, rl, rpio.Close, nil
}

// pulse drives p high for d, then low again.
func pulse(p Pin, clock Clock, d time.Duration) {
	p.High()
	defer p.Low()
	clock.Sleep(d)
}
