package channel

import "github.com/rtipc/rtipc/queue"

// Consumer is the process-facing handle a reader uses to advance through
// one channel.
type Consumer struct {
	Endpoint
	c *queue.Consumer
}

// NewConsumer wraps q as a Consumer endpoint. efd and meta may be nil.
func NewConsumer(q *queue.Queue, efd EventFD, meta []byte) *Consumer {
	return &Consumer{
		Endpoint: Endpoint{q: q, efd: efd, meta: meta},
		c:        queue.NewConsumer(q),
	}
}

// Msg returns the most recently consumed message, or nil if nothing has
// been popped or flushed yet.
func (c *Consumer) Msg() []byte { return c.c.Msg() }

// Pop advances by one message. When an eventfd is attached it is drained
// first (non-blocking; a drain with nothing to read is not an error, it
// just means no new signal had arrived yet) so a caller blocked in
// epoll/poll on the eventfd wakes at most once per available message.
func (c *Consumer) Pop() (queue.Result, error) {
	if c.efd != nil {
		if _, err := c.efd.Drain(); err != nil {
			return queue.Error, err
		}
	}
	return c.c.Pop(), nil
}

// Flush jumps straight to the newest message. When an eventfd is attached
// it is drained once first, the same one-token, non-blocking discipline
// Pop uses; signals for the messages Flush skips stay pending, so a
// blocking caller may wake once more and find NoUpdate.
func (c *Consumer) Flush() (queue.Result, error) {
	if c.efd != nil {
		if _, err := c.efd.Drain(); err != nil {
			return queue.Error, err
		}
	}
	return c.c.Flush(), nil
}
