package modem

import (
	"context"

	"i4.energy/across/windsensor/at"
)

// Readiness is the modem state as far as the engine knows it.
type Readiness int

const (
	// ReadinessUnconfigured means the serial rate has not been negotiated.
	ReadinessUnconfigured Readiness = iota
	// ReadinessBaudNegotiating is set while the serial rate is negotiated.
	ReadinessBaudNegotiating
	// ReadinessIdle means the rate is known but the modem is not registered.
	ReadinessIdle
	// ReadinessRegistering is set while powering up and registering.
	ReadinessRegistering
	// ReadinessReady means the modem is registered and can bridge HTTP.
	ReadinessReady
	// ReadinessFaulted means the last activation failed.
	ReadinessFaulted
)

func (r Readiness) String() string {
	switch r {
	case ReadinessUnconfigured:
		return "Unconfigured"
	case ReadinessBaudNegotiating:
		return "BaudNegotiating"
	case ReadinessIdle:
		return "Idle"
	case ReadinessRegistering:
		return "Registering"
	case ReadinessReady:
		return "Ready"
	case ReadinessFaulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// ensureReady reuses a registered modem if it still answers, otherwise it
// runs a full activation.
func (m *Modem) ensureReady(ctx context.Context) bool {
	if m.Status().Readiness == ReadinessReady {
		if err := m.expectOk(ctx, at.CmdAt); err == nil {
			return true
		}
		m.logger.Warn("ready modem stopped answering, reactivating")
		m.setReadiness(ReadinessFaulted)
	}
	return m.activate(ctx)
}

// activate brings the modem from any state to ReadinessReady. Failures to
// start or to see the SIM are retried after interrupting the supply via
// the relay. Only the failure of the last attempt is recorded.
func (m *Modem) activate(ctx context.Context) bool {
	m.config.clock.Sleep(m.config.powerKeySettle)

	if !m.baudConfigured && !m.negotiateBaud(ctx) {
		return false
	}

	var token string
	for attempt := 1; attempt <= m.config.activationRetries; attempt++ {
		var retry bool
		token, retry = m.activateOnce(ctx)
		if token == "" {
			m.logger.Info("modem ready", "attempt", attempt)
			return true
		}
		if !retry || attempt == m.config.activationRetries || ctx.Err() != nil {
			break
		}
		m.logger.Warn("activation failed, interrupting power", "attempt", attempt, "token", token)
		pulse(m.config.relay, m.config.clock, m.config.relayPulse)
	}

	m.setReadiness(ReadinessFaulted)
	if ctx.Err() != nil {
		m.logger.Warn("activation cancelled", "error", ctx.Err())
		return false
	}
	m.logger.Warn("activation failed", "token", token)
	m.errors.Append(token)
	return false
}

// activateOnce runs power-up, SIM wait, echo-off and registration. It
// returns the failure token, if any, and whether a power interruption may
// help.
func (m *Modem) activateOnce(ctx context.Context) (string, bool) {
	m.setReadiness(ReadinessRegistering)
	m.lines.reset()

	if !m.powerUp(ctx) {
		return TokenDidNotStart, true
	}

	if m.awaitResponse(ctx, at.SimReady, m.config.simReadyTimeout) != Matched {
		return TokenSimNotReady, true
	}

	if err := m.expectOk(ctx, at.CmdEchoOff); err != nil {
		m.logger.Warn("echo off failed", "error", err)
		return TokenEchoOffFailed, false
	}

	if !m.register(ctx) {
		return TokenDidNotRegister, false
	}

	m.setReadiness(ReadinessReady)
	return "", false
}

// powerUp toggles the power key until the modem greets. A modem that was
// already on turns off at the first toggle and greets after the second.
func (m *Modem) powerUp(ctx context.Context) bool {
	for i := 0; i < m.config.greetingToggles; i++ {
		pulse(m.config.powerKey, m.config.clock, m.config.powerKeyPulse)
		if m.awaitResponse(ctx, at.Ready, m.config.greetingTimeout) == Matched {
			return true
		}
	}
	return false
}

// register polls the registration status until the modem reports a home
// or roaming registration. Two silent polls in a row mean the modem went
// down.
func (m *Modem) register(ctx context.Context) bool {
	const maxSilentPolls = 2

	dl := newDeadline(ctx, m.config.clock, m.config.registerTimeout)
	registered := at.RegisteredHome + candidateSeparator + at.RegisteredRoaming
	silent := 0

	for !dl.expired() {
		if err := m.send(at.CmdRegistration); err != nil {
			m.logger.Warn("registration query failed", "error", err)
			return false
		}

		outcome := m.awaitResponse(ctx, registered, dl.atMost(m.config.registerInterval))
		if outcome == Matched {
			if err := m.awaitOk(ctx, m.config.atTimeout); err == nil {
				return true
			}
		}

		if outcome == NoTraffic {
			silent++
			if silent >= maxSilentPolls {
				m.logger.Warn("modem silent during registration")
				return false
			}
		} else {
			silent = 0
		}

		m.config.clock.Sleep(dl.atMost(m.config.registerInterval))
	}
	return false
}
