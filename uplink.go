package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"i4.energy/across/windsensor/outbox"
)

// DefaultAttempts is how many times one envelope is offered to the
// collector per batch.
const DefaultAttempts = 2

// Sender delivers body to url as an HTTP POST and returns the status code,
// 0 when none was obtained. *modem.Modem satisfies it.
type Sender interface {
	Send(ctx context.Context, url, body string) int
}

// Delivery is the outcome of handing one batch to the uplink.
type Delivery struct {
	Status    int  `json:"status"`
	Delivered bool `json:"delivered"`
	Pending   int  `json:"pending"`
}

// UplinkStatus describes what is waiting for the collector.
type UplinkStatus struct {
	Pending        int      `json:"pending"`
	NextSequenceID int      `json:"nextSequenceId"`
	Errors         []string `json:"errors"`
}

// Uplink turns sample batches into envelopes and pushes them to the
// collector. Messages and errors stay queued until an envelope carrying
// them is acknowledged with 200. Deliveries are serialized; Status does not
// wait for one in flight.
type Uplink struct {
	logger   *slog.Logger
	sender   Sender
	outbox   *outbox.Outbox
	url      string
	store    StateFile
	attempts int
	backoff  *backoff.Backoff

	now   func() time.Time
	pause func(ctx context.Context, d time.Duration)

	// sending is held for a whole delivery, mu only while the outbox is
	// read or modified.
	sending   sync.Mutex
	mu        sync.Mutex
	lastBatch time.Time
}

func NewUplink(logger *slog.Logger, sender Sender, box *outbox.Outbox, url string, store StateFile) *Uplink {
	return &Uplink{
		logger:   logger,
		sender:   sender,
		outbox:   box,
		url:      url,
		store:    store,
		attempts: DefaultAttempts,
		backoff: &backoff.Backoff{
			Min:    2 * time.Second,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		},
		now:   time.Now,
		pause: sleepContext,
	}
}

// Restore loads undelivered messages and errors from the state file.
func (u *Uplink) Restore() error {
	u.sending.Lock()
	defer u.sending.Unlock()
	u.mu.Lock()
	defer u.mu.Unlock()

	s, err := u.store.Load()
	if err != nil {
		return err
	}
	u.outbox.Restore(s.Outbox)
	u.lastBatch = s.LastBatchAt
	u.logger.Info("state restored", "pending", u.outbox.Pending(), "errors", u.outbox.Errors().Snapshot())
	return nil
}

// Deliver queues batch and offers everything pending to the collector.
// An invalid batch is rejected before anything is queued.
func (u *Uplink) Deliver(ctx context.Context, batch outbox.Batch) (Delivery, error) {
	if err := batch.Validate(); err != nil {
		return Delivery{}, err
	}

	u.sending.Lock()
	defer u.sending.Unlock()

	envelope, err := u.queue(batch)
	if err != nil {
		return Delivery{}, err
	}

	status := u.offer(ctx, envelope)
	delivered := status == http.StatusOK

	u.mu.Lock()
	defer u.mu.Unlock()
	if delivered {
		u.outbox.ClearAll()
	}
	u.save()

	return Delivery{
		Status:    status,
		Delivered: delivered,
		Pending:   u.outbox.Pending(),
	}, nil
}

// queue adds batch to the outbox and returns the envelope to offer.
func (u *Uplink) queue(batch outbox.Batch) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	var since time.Duration
	if u.outbox.Pending() > 0 && !u.lastBatch.IsZero() {
		since = now.Sub(u.lastBatch)
	}

	message, err := outbox.Payload(batch, since)
	if err != nil {
		return "", err
	}
	u.lastBatch = now
	u.outbox.Enqueue(message)

	if pending := u.outbox.Errors().Snapshot(); pending != "" {
		u.logger.Warn("not yet delivered errors", "errors", pending)
	}
	envelope := u.outbox.BuildEnvelope()
	u.logger.Info("delivering envelope", "pending", u.outbox.Pending(), "bytes", len(envelope))
	return envelope, nil
}

// offer sends envelope up to u.attempts times and records every status
// other than 200 the collector answered with.
func (u *Uplink) offer(ctx context.Context, envelope string) int {
	u.backoff.Reset()

	status := 0
	for attempt := 1; attempt <= u.attempts; attempt++ {
		status = u.sender.Send(ctx, u.url, envelope)
		if status == http.StatusOK {
			break
		}
		u.logger.Warn("delivery failed", "attempt", attempt, "status", status)
		if status != 0 {
			u.outbox.Errors().Append(fmt.Sprintf("HTTP_RESPONSE_CODE_%d", status))
		}
		if attempt == u.attempts || ctx.Err() != nil {
			break
		}
		u.pause(ctx, u.backoff.Duration())
	}
	return status
}

// Status returns what is currently waiting for the collector.
func (u *Uplink) Status() UplinkStatus {
	u.mu.Lock()
	defer u.mu.Unlock()

	errs := u.outbox.Errors().Tokens()
	if errs == nil {
		errs = []string{}
	}
	return UplinkStatus{
		Pending:        u.outbox.Pending(),
		NextSequenceID: u.outbox.NextSequenceID(),
		Errors:         errs,
	}
}

func (u *Uplink) save() {
	s := SavedState{Outbox: u.outbox.Snapshot(), LastBatchAt: u.lastBatch}
	if err := u.store.Save(s); err != nil {
		u.logger.Error("failed to save state", "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
