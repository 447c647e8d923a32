package modem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"i4.energy/across/windsensor/errlog"
)

// fakeClock only moves when slept on, so timeouts elapse instantly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakePin counts completed high pulses and their accumulated duration.
type fakePin struct {
	clock   *fakeClock
	high    bool
	since   time.Time
	pulses  []time.Duration
	onPulse func()
}

func (p *fakePin) High() {
	p.high = true
	p.since = p.clock.Now()
}

func (p *fakePin) Low() {
	if !p.high {
		return
	}
	p.high = false
	p.pulses = append(p.pulses, p.clock.Now().Sub(p.since))
	if p.onPulse != nil {
		p.onPulse()
	}
}

// fakeModem imitates a SIM800 style modem behind a serial link. Reads
// without pending output let the read timeout elapse on the clock.
type fakeModem struct {
	clock *fakeClock

	timeout  time.Duration
	output   []byte
	writes   []string
	hostBaud int
	closed   bool

	// modem side state
	on            bool
	dead          bool
	modemBaud     int // 0 = auto-bauding
	registration  string
	httpStatus    int
	noReport      bool
	noDownload    bool
	ignoreCPOWD   bool
	noSimReady    bool
	silentAfter   string
	silent        bool
	failCommand   string
	redirectTo    string
	expectingData int
	body          string
}

func newFakeModem(clock *fakeClock) *fakeModem {
	return &fakeModem{
		clock:        clock,
		timeout:      time.Second,
		hostBaud:     DefaultBaudRate,
		modemBaud:    DefaultBaudRate,
		registration: "+CREG: 0,1",
		httpStatus:   200,
	}
}

func (f *fakeModem) Read(p []byte) (int, error) {
	if f.closed {
		return 0, io.EOF
	}
	if len(f.output) == 0 {
		f.clock.Sleep(f.timeout)
		return 0, nil
	}
	n := copy(p, f.output)
	f.output = f.output[n:]
	return n, nil
}

func (f *fakeModem) Write(p []byte) (int, error) {
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	cmd := strings.TrimSuffix(string(p), "\r")
	f.writes = append(f.writes, cmd)
	f.emit(f.respond(cmd))
	return len(p), nil
}

func (f *fakeModem) SetReadTimeout(d time.Duration) error {
	f.timeout = d
	return nil
}

func (f *fakeModem) ResetInputBuffer() error {
	f.output = nil
	return nil
}

func (f *fakeModem) SetBaudRate(rate int) error {
	f.hostBaud = rate
	return nil
}

func (f *fakeModem) Close() error {
	f.closed = true
	return nil
}

func (f *fakeModem) emit(s string) {
	f.output = append(f.output, s...)
}

// understood reports whether the host talks at a rate the modem decodes.
func (f *fakeModem) understood() bool {
	return f.modemBaud == 0 || f.modemBaud == f.hostBaud
}

// togglePower is wired to the power-key pin.
func (f *fakeModem) togglePower() {
	if f.dead {
		return
	}
	f.on = !f.on
	f.silent = false
	if !f.on {
		f.emit("\r\nNORMAL POWER DOWN\r\n")
		return
	}
	if f.modemBaud == 0 || f.modemBaud != f.hostBaud {
		return
	}
	f.emit("\r\nRDY\r\n\r\n+CFUN: 1\r\n")
	if !f.noSimReady {
		f.emit("\r\n+CPIN: READY\r\n")
	}
	f.emit("\r\nCall Ready\r\n\r\nSMS Ready\r\n")
}

func (f *fakeModem) respond(cmd string) string {
	if !f.on || f.silent || !f.understood() {
		return ""
	}

	if f.expectingData > 0 {
		f.body = cmd
		f.expectingData = 0
		return "\r\nOK\r\n"
	}

	if f.silentAfter != "" && cmd == f.silentAfter {
		f.silent = true
	}
	if f.silent {
		return ""
	}

	if f.failCommand != "" && cmd == f.failCommand {
		return "\r\nERROR\r\n"
	}

	switch {
	case cmd == "AT+CREG?":
		return "\r\n" + f.registration + "\r\n\r\nOK\r\n"
	case cmd == "AT+CLTS?":
		return "\r\n+CLTS: 0\r\n\r\nOK\r\n"
	case cmd == "AT+IPR?":
		return fmt.Sprintf("\r\n+IPR: %d\r\n\r\nOK\r\n", f.modemBaud)
	case strings.HasPrefix(cmd, "AT+IPR="):
		fmt.Sscanf(cmd, "AT+IPR=%d", &f.modemBaud)
		return "\r\nOK\r\n"
	case strings.HasPrefix(cmd, "AT+HTTPDATA="):
		if f.noDownload {
			return "\r\nERROR\r\n"
		}
		fmt.Sscanf(cmd, "AT+HTTPDATA=%d", &f.expectingData)
		return "\r\nDOWNLOAD\r\n"
	case cmd == "AT+HTTPACTION=1":
		if f.noReport {
			return "\r\nOK\r\n"
		}
		return fmt.Sprintf("\r\nOK\r\n\r\n+HTTPACTION: 1,%d,345\r\n", f.httpStatus)
	case cmd == "AT+HTTPACTION=2":
		return "\r\nOK\r\n\r\n+HTTPACTION: 2,301,0\r\n"
	case cmd == "AT+HTTPHEAD":
		return "\r\n+HTTPHEAD: 80\r\nHTTP/1.1 301 Moved Permanently\r\nLocation: " + f.redirectTo + "\r\nContent-Length: 0\r\n\r\nOK\r\n"
	case cmd == "AT+CPOWD=1":
		if f.ignoreCPOWD {
			return ""
		}
		f.on = false
		return "\r\nNORMAL POWER DOWN\r\n"
	case strings.HasPrefix(cmd, "AT"):
		return "\r\nOK\r\n"
	default:
		return "\r\nERROR\r\n"
	}
}

func (f *fakeModem) wrote(cmd string) bool {
	for _, w := range f.writes {
		if w == cmd {
			return true
		}
	}
	return false
}

func (f *fakeModem) count(cmd string) int {
	n := 0
	for _, w := range f.writes {
		if w == cmd {
			n++
		}
	}
	return n
}

type staticDialer struct {
	transport Transport
}

func (d staticDialer) Dial(context.Context) (Transport, error) {
	return d.transport, nil
}

// bench is a modem wired to fakes.
type bench struct {
	clock    *fakeClock
	fake     *fakeModem
	powerKey *fakePin
	relay    *fakePin
	errors   *errlog.Log
	modem    *Modem
}

type benchOption func(*ConfigBuilder)

func baudConfigured(b *ConfigBuilder) { b.WithBaudConfigured(true) }

func newBench(t *testing.T, opts ...benchOption) *bench {
	t.Helper()

	clock := newFakeClock()
	fake := newFakeModem(clock)
	b := &bench{
		clock:    clock,
		fake:     fake,
		powerKey: &fakePin{clock: clock, onPulse: fake.togglePower},
		relay:    &fakePin{clock: clock},
		errors:   errlog.New(errlog.DefaultCapacity),
	}
	b.relay.onPulse = func() {
		fake.on = false
		fake.silent = false
	}

	builder := NewConfigBuilder().
		WithDialer(staticDialer{fake}).
		WithPins(b.powerKey, b.relay).
		WithErrorLog(b.errors).
		WithClock(clock).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, opt := range opts {
		opt(builder)
	}

	config, err := builder.Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	m, err := New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create modem: %v", err)
	}
	b.modem = m
	return b
}

func (b *bench) send(body string) int {
	return b.modem.Send(context.Background(), "http://collector.example.com/wind", body)
}
