package modem

import (
	"context"
	"fmt"
	"time"

	"i4.energy/across/windsensor/at"
)

// send writes cmd followed by the command terminator.
func (m *Modem) send(cmd string) error {
	m.logger.Debug("out", "command", cmd)
	if _, err := m.transport.Write([]byte(cmd + at.CR)); err != nil {
		return fmt.Errorf("write command %q: %w", cmd, err)
	}
	return nil
}

// expectOk sends cmd and waits for its acknowledgement. A final error
// result fails immediately instead of waiting out the timeout.
func (m *Modem) expectOk(ctx context.Context, cmd string) error {
	if err := m.send(cmd); err != nil {
		return err
	}
	return m.awaitOk(ctx, m.config.atTimeout)
}

func (m *Modem) awaitOk(ctx context.Context, timeout time.Duration) error {
	failed := ""
	outcome, _ := m.awaitLine(ctx, timeout, func(line string) bool {
		if at.IsFailure(line) {
			failed = line
			return true
		}
		return line == at.OK
	})
	if failed != "" {
		return fmt.Errorf("command failed: %s", failed)
	}
	if outcome != Matched {
		return fmt.Errorf("no acknowledgement: %s", outcome)
	}
	return nil
}

// runAll executes cmds in order and stops at the first one that is not
// acknowledged. Retrying is left to the caller.
func (m *Modem) runAll(ctx context.Context, cmds ...string) error {
	for i, cmd := range cmds {
		if err := m.expectOk(ctx, cmd); err != nil {
			return fmt.Errorf("command %d of %d (%s): %w", i+1, len(cmds), cmd, err)
		}
	}
	return nil
}
