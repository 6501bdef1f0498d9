// Package session groups all the channels negotiated over one handshake
// connection into a single object that owns the backing shared-memory
// region and the notification eventfds.
package session

import (
	"fmt"
	"sync/atomic"

	"github.com/rtipc/rtipc/channel"
	"github.com/rtipc/rtipc/queue"
	"github.com/rtipc/rtipc/rtipcmetrics"
	"github.com/rtipc/rtipc/shm"
)

// regionRef is a refcounted handle to a mapped shm.Region. The region's
// mmap/fd are released exactly once, when the last Producer, Consumer, or
// Vector still referencing it is closed, so a taken endpoint stays usable
// after its vector is gone.
type regionRef struct {
	region *shm.Region
	refs   atomic.Int32
}

func newRegionRef(r *shm.Region, holders int32) *regionRef {
	ref := &regionRef{region: r}
	ref.refs.Store(holders)
	return ref
}

func (r *regionRef) release() error {
	if r.refs.Add(-1) == 0 {
		return r.region.Close()
	}
	return nil
}

// fdCloser is implemented by channel.EventFD backends that own a kernel
// descriptor (shm.LinuxEventFD does); closed once the endpoint holding it
// is closed.
type fdCloser interface {
	Close() error
}

// Producer is a session-owned producer endpoint: a *channel.Producer plus
// the bookkeeping needed to release its share of the region and its
// eventfd when the endpoint is closed.
type Producer struct {
	*channel.Producer
	efd channel.EventFD
	ref *regionRef
}

// Close releases this endpoint's eventfd (if any) and its share of the
// backing region. Safe to call exactly once.
func (p *Producer) Close() error {
	var err error
	if c, ok := p.efd.(fdCloser); ok && p.efd != nil {
		err = c.Close()
	}
	if rerr := p.ref.release(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// ForcePush publishes the current message and records it in
// rtipcmetrics: a Discarded result means the oldest unread message was
// overwritten.
func (p *Producer) ForcePush() (queue.Result, error) {
	res, err := p.Producer.ForcePush()
	if res == queue.Discarded {
		rtipcmetrics.IncChannelDiscarded("producer")
	}
	return res, err
}

// TryPush publishes the current message without discarding, recording a
// Fail result as a queue-full event in rtipcmetrics.
func (p *Producer) TryPush() (queue.Result, error) {
	res, err := p.Producer.TryPush()
	if res == queue.Fail {
		rtipcmetrics.IncChannelQueueFull("producer")
	}
	return res, err
}

// Consumer is a session-owned consumer endpoint, mirroring Producer.
type Consumer struct {
	*channel.Consumer
	efd channel.EventFD
	ref *regionRef
}

// Close releases this endpoint's eventfd (if any) and its share of the
// backing region. Safe to call exactly once.
func (c *Consumer) Close() error {
	var err error
	if cl, ok := c.efd.(fdCloser); ok && c.efd != nil {
		err = cl.Close()
	}
	if rerr := c.ref.release(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// Pop advances by one message, recording a Discarded result (the reader
// fell behind and skipped at least one message) in rtipcmetrics.
func (c *Consumer) Pop() (queue.Result, error) {
	res, err := c.Consumer.Pop()
	if res == queue.Discarded {
		rtipcmetrics.IncChannelDiscarded("consumer")
	}
	return res, err
}

// Flush jumps to the newest message, recording a Discarded result in
// rtipcmetrics under the same "consumer" role as Pop.
func (c *Consumer) Flush() (queue.Result, error) {
	res, err := c.Consumer.Flush()
	if res == queue.Discarded {
		rtipcmetrics.IncChannelDiscarded("consumer")
	}
	return res, err
}

// Vector owns one handshake's negotiated channels: the mapped region, the
// list of producer and consumer endpoints (in table order), and the
// peer-supplied session info blob.
type Vector struct {
	region *shm.Region
	ref    *regionRef

	producers []*Producer
	consumers []*Consumer

	info []byte
}

// Info returns the peer-supplied session-level info blob, or nil.
func (v *Vector) Info() []byte { return v.info }

// NumProducers and NumConsumers report the channel counts, matching the
// order channels appear in from this vector's own point of view (already
// mirrored for a mapper-side vector — see FromMapper).
func (v *Vector) NumProducers() int { return len(v.producers) }
func (v *Vector) NumConsumers() int { return len(v.consumers) }

// Producer returns the i'th producer endpoint, or nil if it has already
// been taken out with TakeProducer.
func (v *Vector) Producer(i int) *Producer { return v.producers[i] }

// Consumer returns the i'th consumer endpoint, or nil if it has already
// been taken out with TakeConsumer.
func (v *Vector) Consumer(i int) *Consumer { return v.consumers[i] }

// TakeProducer transfers ownership of the i'th producer endpoint out of
// the vector, nulling the slot. The returned endpoint keeps the backing
// region alive via its own reference even after the vector is closed.
func (v *Vector) TakeProducer(i int) (*Producer, error) {
	if i < 0 || i >= len(v.producers) {
		return nil, fmt.Errorf("session: producer index %d out of range", i)
	}
	p := v.producers[i]
	if p == nil {
		return nil, fmt.Errorf("session: producer %d already taken", i)
	}
	v.producers[i] = nil
	return p, nil
}

// TakeConsumer transfers ownership of the i'th consumer endpoint out of
// the vector, nulling the slot.
func (v *Vector) TakeConsumer(i int) (*Consumer, error) {
	if i < 0 || i >= len(v.consumers) {
		return nil, fmt.Errorf("session: consumer index %d out of range", i)
	}
	c := v.consumers[i]
	if c == nil {
		return nil, fmt.Errorf("session: consumer %d already taken", i)
	}
	v.consumers[i] = nil
	return c, nil
}

// Close releases every endpoint still held by the vector (endpoints
// already taken out via TakeProducer/TakeConsumer are the caller's
// responsibility) and drops the vector's own share of the region.
func (v *Vector) Close() error {
	var first error
	for _, p := range v.producers {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, c := range v.consumers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := v.ref.release(); err != nil && first == nil {
		first = err
	}
	return first
}
