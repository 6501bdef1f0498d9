package queue

// Result is returned by every queue operation. Callers switch on it rather
// than on error values: a full or empty queue is an ordinary outcome, not
// a failure.
type Result int

const (
	// Success indicates the operation completed and advanced the queue.
	Success Result = iota
	// Discarded indicates a push overwrote an unread message, or a pop/flush
	// observed that the producer had already overwritten the message the
	// consumer was about to read.
	Discarded
	// NoMessage indicates the queue is empty; there is nothing to pop.
	NoMessage
	// NoUpdate indicates the consumer's current message is still the newest
	// one available; a repeated Pop would not advance.
	NoUpdate
	// Fail indicates TryPush could not enqueue because the queue is full
	// and no slot has been released by the consumer.
	Fail
	// Error indicates an invariant violation (out-of-range index, unexpected
	// CAS state) rather than an ordinary full/empty condition.
	Error
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Discarded:
		return "discarded"
	case NoMessage:
		return "no_message"
	case NoUpdate:
		return "no_update"
	case Fail:
		return "fail"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}
