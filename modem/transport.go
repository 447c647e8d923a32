package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -destination=mock_modem.go -package=modem . Transport,Dialer,Pin

// Transport represents an established, bidirectional byte stream to the
// modem.
//
// A Transport is assumed to be already connected and ready for use. Reads
// honor the timeout last set with SetReadTimeout: a Read returning zero
// bytes and a nil error means the timeout elapsed without traffic. This is
// the behavior of go.bug.st/serial ports.
type Transport interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds how long the next Read blocks.
	SetReadTimeout(t time.Duration) error

	// ResetInputBuffer drops bytes received but not yet read.
	ResetInputBuffer() error

	// SetBaudRate switches the host side of the link to rate.
	SetBaudRate(rate int) error
}

// Dialer opens a Transport to the modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port or a test double) and is intended to be used during modem
// construction only. Once a Transport is obtained, the Dialer is no longer
// needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport.
	// It should respect cancellation of the context. Dial returns an error
	// if the transport cannot be established.
	Dial(ctx context.Context) (Transport, error)
}

// SerialDialer opens the modem over a local serial port using
// go.bug.st/serial, 8N1 without flow control.
type SerialDialer struct {
	PortName string
	// BaudRate the port is opened with. Zero selects DefaultBaudRate.
	BaudRate int
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("windsensor: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("windsensor: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: d.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if mode.BaudRate == 0 {
		mode.BaudRate = DefaultBaudRate
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return &serialTransport{Port: port, mode: *mode}, nil
}

// serialTransport adapts a serial.Port to Transport.
type serialTransport struct {
	serial.Port
	mode serial.Mode
}

func (t *serialTransport) SetBaudRate(rate int) error {
	if rate == t.mode.BaudRate {
		return nil
	}
	mode := t.mode
	mode.BaudRate = rate
	if err := t.Port.SetMode(&mode); err != nil {
		return fmt.Errorf("set baud rate %d: %w", rate, err)
	}
	t.mode = mode
	return nil
}
