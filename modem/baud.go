package modem

import (
	"context"

	"i4.energy/across/windsensor/at"
)

// negotiateBaud makes sure the modem talks at the fixed rate. It runs on
// the first activation and after every full power cycle; repeating it is
// harmless.
func (m *Modem) negotiateBaud(ctx context.Context) bool {
	m.setReadiness(ReadinessBaudNegotiating)

	if token := m.pinBaudRate(ctx); token != "" {
		m.setReadiness(ReadinessFaulted)
		if ctx.Err() != nil {
			m.logger.Warn("baud negotiation cancelled", "error", ctx.Err())
			return false
		}
		m.logger.Warn("baud negotiation failed", "token", token)
		m.errors.Append(token)
		return false
	}

	m.logger.Info("baud rate negotiated", "rate", m.config.baudRate)
	m.baudConfigured = true
	m.setReadiness(ReadinessIdle)
	return true
}

func (m *Modem) pinBaudRate(ctx context.Context) string {
	if !m.switchRate(m.config.baudRate) {
		return TokenAutoBaudFailed
	}

	// A modem pinned to the fixed rate greets on power up.
	for i := 0; i < m.config.greetingToggles; i++ {
		pulse(m.config.powerKey, m.config.clock, m.config.powerKeyPulse)
		if m.awaitResponse(ctx, at.Ready, m.config.greetingTimeout) == Matched {
			return ""
		}
	}

	// An auto-bauding modem stays silent until it sees a command.
	if !m.switchRate(m.config.autoBaudRate) || !m.probeAutoBaud(ctx) {
		return TokenAutoBaudFailed
	}

	if err := m.expectOk(ctx, at.CmdEchoOff); err != nil {
		return TokenEchoOffFailed
	}

	// The acknowledgement still comes at the old rate.
	if err := m.expectOk(ctx, at.SetBaud(m.config.baudRate)); err != nil {
		return TokenSetBaudFailed
	}
	if !m.switchRate(m.config.baudRate) {
		return TokenSetBaudFailed
	}

	if err := m.expectOk(ctx, at.CmdSaveProfile); err != nil {
		return TokenSaveBaudFailed
	}

	if !m.verifyBaud(ctx) {
		return TokenVerifyBaudFailed
	}
	return ""
}

// probeAutoBaud sends short AT probes after each power toggle until one
// is acknowledged.
func (m *Modem) probeAutoBaud(ctx context.Context) bool {
	for toggle := 0; toggle < m.config.autoBaudToggles; toggle++ {
		pulse(m.config.powerKey, m.config.clock, m.config.powerKeyPulse)

		for probe := 0; probe < m.config.autoBaudProbes; probe++ {
			if err := m.send(at.CmdAt); err != nil {
				m.logger.Warn("auto baud probe failed", "error", err)
				return false
			}
			if err := m.awaitOk(ctx, m.config.probeTimeout); err == nil {
				return true
			}
			if ctx.Err() != nil {
				return false
			}
		}
	}
	return false
}

func (m *Modem) verifyBaud(ctx context.Context) bool {
	if err := m.send(at.CmdQueryBaud); err != nil {
		return false
	}
	if m.awaitResponse(ctx, at.BaudReport(m.config.baudRate), m.config.atTimeout) != Matched {
		return false
	}
	return m.awaitOk(ctx, m.config.atTimeout) == nil
}

func (m *Modem) switchRate(rate int) bool {
	if err := m.transport.SetBaudRate(rate); err != nil {
		m.logger.Warn("could not switch host baud rate", "rate", rate, "error", err)
		return false
	}
	m.lines.reset()
	return true
}
