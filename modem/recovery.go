package modem

import (
	"context"
	"net/http"

	"i4.energy/across/windsensor/at"
)

// afterSend applies the recovery policy: too many failed sends in a row,
// or a modem that has been ready for too long, get a full power cycle. A
// send cut short by ctx leaves the failure count alone.
func (m *Modem) afterSend(ctx context.Context, status int) {
	if status != http.StatusOK && ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	if status == http.StatusOK {
		m.failures = 0
	} else {
		m.failures++
	}
	failures := m.failures
	readiness, readySince := m.readiness, m.readySince
	m.mu.Unlock()

	switch {
	case failures >= m.config.maxFailures:
		m.powerCycle(ctx, "consecutive failures", "failures", failures)
	case readiness == ReadinessReady && m.config.clock.Now().Sub(readySince) >= m.config.maxReadyDuration:
		m.powerCycle(ctx, "preventive restart", "readySince", readySince)
	}
}

// powerCycle switches the modem off, interrupts its supply and forgets
// everything learned about it, so the next send renegotiates from scratch.
func (m *Modem) powerCycle(ctx context.Context, reason string, attrs ...any) {
	m.logger.Warn("power cycling modem", append([]any{"reason", reason}, attrs...)...)

	if !m.powerDown(ctx) {
		m.logger.Warn("modem did not confirm power down")
	}
	pulse(m.config.relay, m.config.clock, m.config.relayPowerDown)

	m.baudConfigured = false
	m.mu.Lock()
	m.failures = 0
	m.mu.Unlock()
	m.setReadiness(ReadinessUnconfigured)
}

// powerDown asks the modem to switch off, falling back to the power key.
func (m *Modem) powerDown(ctx context.Context) bool {
	if err := m.send(at.CmdPowerDown); err == nil {
		if m.awaitResponse(ctx, at.NormalPowerDown, m.config.powerDownTimeout) == Matched {
			return true
		}
	}
	pulse(m.config.powerKey, m.config.clock, m.config.powerKeyPulse)
	return m.awaitResponse(ctx, at.NormalPowerDown, m.config.powerDownPinWait) == Matched
}
