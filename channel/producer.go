package channel

import "github.com/rtipc/rtipc/queue"

// Producer is the process-facing handle a writer uses to publish messages
// on one channel.
type Producer struct {
	Endpoint
	p     *queue.Producer
	cache []byte
}

// NewProducer wraps q as a Producer endpoint. efd and meta may be nil.
func NewProducer(q *queue.Queue, efd EventFD, meta []byte) *Producer {
	return &Producer{
		Endpoint: Endpoint{q: q, efd: efd, meta: meta},
		p:        queue.NewProducer(q),
	}
}

// Msg returns the buffer to fill in before ForcePush/TryPush. While the
// write-cache is enabled this returns the cache buffer instead of the live
// slot, so repeated reads see exactly what was last written regardless of
// whether a push has happened since.
func (p *Producer) Msg() []byte {
	if p.cache != nil {
		return p.cache
	}
	return p.p.Msg()
}

// CacheEnable allocates a write-cache the size of one message and seeds it
// with the current live slot's bytes, so Msg() keeps returning the same
// content across calls until the caller writes into it again.
func (p *Producer) CacheEnable() {
	if p.cache != nil {
		return
	}
	live := p.p.Msg()
	p.cache = make([]byte, len(live))
	copy(p.cache, live)
}

// CacheDisable copies the cache back into the live slot and releases it.
// Calling CacheEnable immediately followed by CacheDisable with no push in
// between leaves the live slot's bytes unchanged.
func (p *Producer) CacheDisable() {
	if p.cache == nil {
		return
	}
	copy(p.p.Msg(), p.cache)
	p.cache = nil
}

func (p *Producer) publishCache() {
	if p.cache != nil {
		copy(p.p.Msg(), p.cache)
	}
}

func (p *Producer) signal() error {
	if p.efd == nil {
		return nil
	}
	return p.efd.Signal()
}

// ForcePush publishes the current message and never fails, discarding the
// oldest unread message if the queue is full. The eventfd, if attached, is
// only signalled when res is Success, matching this implementation's
// chosen signalling contract.
func (p *Producer) ForcePush() (queue.Result, error) {
	p.publishCache()
	res := p.p.ForcePush()
	if res == queue.Success {
		if err := p.signal(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// TryPush publishes the current message only if room is available without
// discarding, returning queue.Fail otherwise.
func (p *Producer) TryPush() (queue.Result, error) {
	p.publishCache()
	res := p.p.TryPush()
	if res == queue.Success {
		if err := p.signal(); err != nil {
			return res, err
		}
	}
	return res, nil
}
