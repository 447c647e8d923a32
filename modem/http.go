package modem

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"i4.energy/across/windsensor/at"
	"i4.energy/across/windsensor/errlog"
)

// post runs one HTTP POST exchange through a ready modem and returns the
// status code, or 0 when none was obtained. The HTTP session and the
// bearer are torn down whatever happens.
func (m *Modem) post(ctx context.Context, url, body string) int {
	defer m.teardown(ctx)

	if err := m.runAll(ctx, at.CmdBearerContype, at.BearerApn(m.config.apn), at.CmdBearerOpen); err != nil {
		m.phaseFailed(ctx, TokenInitBearerFailed, err)
		return 0
	}

	if err := m.runAll(ctx, at.CmdQueryClock, at.CmdHttpInit); err != nil {
		m.phaseFailed(ctx, TokenInitHttpFailed, err)
		return 0
	}

	if err := m.runAll(ctx, at.CmdHttpCid, at.HttpUrl(url), at.HttpContent(m.config.contentType)); err != nil {
		m.phaseFailed(ctx, TokenConfigureHttpFailed, err)
		return 0
	}

	if err := m.transfer(ctx, body); err != nil {
		m.phaseFailed(ctx, TokenHttpDataFailed, err)
		return 0
	}

	if err := m.runAll(ctx, at.CmdHttpPost); err != nil {
		m.phaseFailed(ctx, TokenHttpPostFailed, err)
		return 0
	}

	status, ok := m.awaitAction(ctx)
	if !ok {
		m.phaseFailed(ctx, TokenHttpTimedOut, fmt.Errorf("no %s report within %s", at.UrcHttpAction, m.config.actionTimeout))
		return 0
	}
	m.logger.Info("http status received", "status", status)

	if isRedirect(status) {
		m.recordRedirect(ctx)
	}
	return status
}

// transfer hands body to the modem's HTTP data buffer.
func (m *Modem) transfer(ctx context.Context, body string) error {
	maxInput := int(m.config.maxInputTime / time.Millisecond)
	if err := m.send(at.HttpData(len(body), maxInput)); err != nil {
		return err
	}
	if outcome := m.awaitResponse(ctx, at.Download, m.config.downloadTimeout); outcome != Matched {
		return fmt.Errorf("no %s prompt: %s", at.Download, outcome)
	}
	if err := m.send(body); err != nil {
		return err
	}
	return m.awaitOk(ctx, m.config.maxInputTime)
}

// awaitAction waits for the asynchronous action report and returns its
// status code.
func (m *Modem) awaitAction(ctx context.Context) (int, bool) {
	status := 0
	outcome, _ := m.awaitLine(ctx, m.config.actionTimeout, func(line string) bool {
		code, ok := parseActionReport(line)
		if ok {
			status = code
		}
		return ok
	})
	return status, outcome == Matched
}

// parseActionReport extracts the status code from a line of the form
// "+HTTPACTION:<method>,<status>,<length>".
func parseActionReport(line string) (int, bool) {
	if !strings.HasPrefix(line, at.UrcHttpAction) {
		return 0, false
	}
	_, rest, found := strings.Cut(line, ":")
	if !found {
		return 0, false
	}
	fields := strings.Split(rest, ",")
	if len(fields) < 2 || strings.TrimSpace(fields[0]) == "" {
		return 0, false
	}
	status, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return 0, false
	}
	return status, true
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// recordRedirect issues a HEAD request and records the Location header in
// the error log so the collector operator learns about the new address.
// The redirect is not followed.
func (m *Modem) recordRedirect(ctx context.Context) {
	if err := m.runAll(ctx, at.CmdHttpHead); err != nil {
		m.logger.Warn("could not request headers", "error", err)
		return
	}
	if _, ok := m.awaitAction(ctx); !ok {
		m.logger.Warn("no report for header request")
		return
	}
	if err := m.send(at.CmdHttpReadHead); err != nil {
		m.logger.Warn("could not read headers", "error", err)
		return
	}

	restore := m.lines.widen(m.config.headerLineCapacity)
	defer restore()

	dropped := m.lines.dropped
	location := ""
	m.awaitLine(ctx, m.config.headerTimeout, func(line string) bool {
		if v, ok := cutLocation(line); ok && location == "" {
			location = v
		}
		return line == at.OK || at.IsFailure(line)
	})

	if location == "" {
		if m.lines.dropped > dropped {
			m.logger.Warn("redirect location lost, header longer than line capacity", "capacity", m.lines.capacity)
			return
		}
		m.logger.Warn("redirect without location header")
		return
	}
	m.logger.Warn("collector redirects", "location", location)
	m.errors.Append(escapeToken(location))
}

// escapeToken percent-encodes the error log separator so a value stays one
// token.
func escapeToken(v string) string {
	return strings.ReplaceAll(v, string(errlog.Separator), "%2C")
}

func cutLocation(line string) (string, bool) {
	for _, prefix := range []string{at.LocationLower, at.LocationUpper} {
		if v, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// teardown closes the HTTP session and the bearer. Failures are expected
// when the session never opened and are only logged.
func (m *Modem) teardown(ctx context.Context) {
	if err := m.runAll(ctx, at.CmdHttpTerm); err != nil {
		m.logger.Debug("http terminate failed", "error", err)
	}
	if err := m.runAll(ctx, at.CmdBearerClose); err != nil {
		m.logger.Debug("bearer close failed", "error", err)
	}
}

func (m *Modem) phaseFailed(ctx context.Context, token string, err error) {
	if ctx.Err() != nil {
		m.logger.Warn("http exchange cancelled", "token", token, "error", ctx.Err())
		return
	}
	m.logger.Warn("http exchange failed", "token", token, "error", err)
	m.errors.Append(token)
}
