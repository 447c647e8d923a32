package outbox

// State is the part of an outbox that must survive a power failure.
type State struct {
	SequenceID int      `json:"sequenceId"`
	Messages   []string `json:"messages"`
	Errors     []string `json:"errors"`
}

// Snapshot captures the current outbox content.
func (o *Outbox) Snapshot() State {
	return State{
		SequenceID: o.nextID,
		Messages:   o.queue.Messages(),
		Errors:     o.errors.Tokens(),
	}
}

// Restore replaces the outbox content with s. Capacity limits of the
// queue and error log apply, so an oversized state keeps its newest part.
func (o *Outbox) Restore(s State) {
	o.queue.Clear()
	o.errors.Clear()

	for _, m := range s.Messages {
		o.queue.Enqueue(m)
	}
	for _, token := range s.Errors {
		o.errors.Append(token)
	}

	o.nextID = 0
	if s.SequenceID > 0 && s.SequenceID <= MaxSequenceID {
		o.nextID = s.SequenceID
	}
}
