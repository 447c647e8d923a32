package outbox

// DefaultQueueCapacity is the number of undelivered messages kept.
const DefaultQueueCapacity = 5

// Queue is a bounded FIFO of serialized messages awaiting delivery.
type Queue struct {
	messages []string
	capacity int
}

// NewQueue returns an empty queue keeping at most capacity messages.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		messages: make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Enqueue appends message, evicting the oldest entry when full.
func (q *Queue) Enqueue(message string) {
	if len(q.messages) >= q.capacity {
		q.messages[0] = ""
		n := copy(q.messages, q.messages[1:])
		q.messages = q.messages[:n]
	}
	q.messages = append(q.messages, message)
}

// Messages returns a copy of the queued messages, oldest first.
func (q *Queue) Messages() []string {
	out := make([]string, len(q.messages))
	copy(out, q.messages)
	return out
}

func (q *Queue) Len() int {
	return len(q.messages)
}

func (q *Queue) Capacity() int {
	return q.capacity
}

// Clear drops all messages.
func (q *Queue) Clear() {
	clear(q.messages)
	q.messages = q.messages[:0]
}
