// Package outbox queues serialized measurement messages until the
// collector acknowledges them and wraps them into outbound envelopes.
package outbox

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"i4.energy/across/windsensor/errlog"
)

const (
	// Version is the envelope format version.
	Version = "2.0.0"

	// MaxSequenceID is the last sequence id before wrapping to zero.
	MaxSequenceID = 999
)

// Outbox owns the pending message queue, the error log it reports with
// and the envelope sequence counter.
type Outbox struct {
	queue  *Queue
	errors *errlog.Log
	nextID int
}

// New returns an outbox over queue and errors.
func New(queue *Queue, errors *errlog.Log) *Outbox {
	return &Outbox{
		queue:  queue,
		errors: errors,
	}
}

// Enqueue adds a serialized message, evicting the oldest when full.
func (o *Outbox) Enqueue(message string) {
	o.queue.Enqueue(message)
}

// Pending returns the number of queued messages.
func (o *Outbox) Pending() int {
	return o.queue.Len()
}

// Errors returns the error log reported in every envelope.
func (o *Outbox) Errors() *errlog.Log {
	return o.errors
}

// NextSequenceID returns the id the next envelope will carry.
func (o *Outbox) NextSequenceID() int {
	return o.nextID
}

// BuildEnvelope renders all queued messages and logged errors into one
// document. Every call consumes a sequence id.
func (o *Outbox) BuildEnvelope() string {
	var b strings.Builder

	b.WriteString(`{"version":"`)
	b.WriteString(Version)
	b.WriteString(`","sequenceId":`)
	b.WriteString(strconv.Itoa(o.takeSequenceID()))

	b.WriteString(`,"messages":[`)
	for i, m := range o.queue.messages {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(m)
	}

	b.WriteString(`],"errors":[`)
	for i, token := range o.errors.Tokens() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quote(token))
	}
	b.WriteString("]}")

	return b.String()
}

// ClearAll drops queued messages and logged errors together. Call it only
// after the collector acknowledged the envelope holding them.
func (o *Outbox) ClearAll() {
	o.queue.Clear()
	o.errors.Clear()
}

func (o *Outbox) takeSequenceID() int {
	id := o.nextID
	o.nextID = (o.nextID + 1) % (MaxSequenceID + 1)
	return id
}

// quote renders s as a JSON string without HTML escaping.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
