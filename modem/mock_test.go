package modem

import (
	"time"

	gomock "go.uber.org/mock/gomock"
)

// MockSequenceBuilder scripts a command exchange on a MockTransport: each
// step expects one command write followed by one read carrying the reply.
type MockSequenceBuilder struct {
	transport *MockTransport
	clock     *fakeClock
	calls     []any
}

func NewMockSequence(transport *MockTransport, clock *fakeClock) *MockSequenceBuilder {
	transport.EXPECT().SetReadTimeout(gomock.Any()).Return(nil).AnyTimes()
	return &MockSequenceBuilder{
		transport: transport,
		clock:     clock,
		calls:     []any{},
	}
}

// Command expects cmd and answers with reply.
func (b *MockSequenceBuilder) Command(cmd, reply string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(cmd+"\r")).Return(len(cmd)+1, nil),
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, reply), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) OK(cmd string) *MockSequenceBuilder {
	return b.Command(cmd, "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) Error(cmd string) *MockSequenceBuilder {
	return b.Command(cmd, "\r\nERROR\r\n")
}

// Unanswered expects cmd and lets d pass without a reply.
func (b *MockSequenceBuilder) Unanswered(cmd string, d time.Duration) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(cmd+"\r")).Return(len(cmd)+1, nil),
	)
	return b.Silence(d)
}

// Chunk delivers data without a preceding command.
func (b *MockSequenceBuilder) Chunk(data string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, data), nil
		}),
	)
	return b
}

// Silence lets d pass without any data.
func (b *MockSequenceBuilder) Silence(d time.Duration) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			b.clock.Sleep(d)
			return 0, nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// newMockModem wires a Modem to transport without going through a Dialer.
func newMockModem(transport Transport, clock *fakeClock, errors ErrorRecorder) *Modem {
	config := Config{
		dialer:   staticDialer{transport},
		powerKey: &fakePin{clock: clock},
		relay:    &fakePin{clock: clock},
		errors:   errors,
		clock:    clock,
	}
	config.setDefaults()

	return &Modem{
		transport: transport,
		lines:     newLineReader(transport, clock, config.lineCapacity),
		config:    config,
		logger:    config.logger,
		errors:    errors,
	}
}
