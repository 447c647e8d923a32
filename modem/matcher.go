package modem

import (
	"context"
	"errors"
	"strings"
	"time"

	"i4.energy/across/windsensor/at"
)

// Outcome is the result of waiting for a response.
type Outcome int

const (
	// Matched means an acceptable line arrived.
	Matched Outcome = iota
	// TimedOutWithTraffic means lines arrived but none was acceptable: the
	// modem is powered but not in the expected state.
	TimedOutWithTraffic
	// NoTraffic means not a single line arrived: the modem is likely off.
	NoTraffic
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case TimedOutWithTraffic:
		return "timed out with traffic"
	case NoTraffic:
		return "no traffic"
	default:
		return "unknown"
	}
}

// candidateSeparator splits alternatives in an expected-response string.
const candidateSeparator = "|"

// parseCandidates splits expected like "+CREG: 0,1|+CREG: 0,5" into its
// literal lines.
func parseCandidates(expected string) []string {
	if expected == "" {
		return nil
	}
	return strings.Split(expected, candidateSeparator)
}

// awaitResponse waits until a line equal to one of the candidates in expected
// arrives.
func (m *Modem) awaitResponse(ctx context.Context, expected string, timeout time.Duration) Outcome {
	candidates := parseCandidates(expected)
	outcome, _ := m.awaitLine(ctx, timeout, func(line string) bool {
		for _, c := range candidates {
			if line == c {
				return true
			}
		}
		return false
	})
	return outcome
}

// awaitLine reads lines until accept returns true for one of them or
// timeout elapses. Blank lines are not traffic.
func (m *Modem) awaitLine(ctx context.Context, timeout time.Duration, accept func(string) bool) (Outcome, string) {
	dl := newDeadline(ctx, m.config.clock, timeout)
	traffic := false

	for !dl.expired() {
		line, err := m.lines.readLine(ctx, dl.remaining())
		switch {
		case errors.Is(err, ErrReadTimeout):
			continue
		case errors.Is(err, ErrLineTooLong):
			m.logger.Warn("dropped overlong line", "capacity", m.lines.capacity)
			continue
		case err != nil:
			m.logger.Warn("transport failure", "error", err)
			m.config.clock.Sleep(dl.remaining())
			continue
		}
		if line == "" {
			continue
		}

		traffic = true
		m.logIn(line)
		if accept(line) {
			return Matched, line
		}
	}

	if traffic {
		return TimedOutWithTraffic, ""
	}
	return NoTraffic, ""
}

func (m *Modem) logIn(line string) {
	if t := at.Classify(line); t == at.TypeURC {
		m.logger.Info("in", "line", line, "type", t)
	} else {
		m.logger.Debug("in", "line", line, "type", t)
	}
}
