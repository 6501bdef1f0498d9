package queue

// Producer is the process-local cursor a single writer uses to publish
// messages into a Queue. Producer itself is never shared between
// goroutines or processes — only the Queue it wraps is.
type Producer struct {
	q *Queue

	current Index // slot the caller is about to fill; Msg() returns this slot
	head    Index // last published slot; chain[head] is always Invalid
	overrun Index // slot reserved from a prior overrun, pending consumer release
}

// NewProducer returns a Producer cursor over q, assuming q.InitEmpty has
// already been called by whichever side owns the arena.
func NewProducer(q *Queue) *Producer {
	return &Producer{q: q, current: 0, head: Invalid, overrun: Invalid}
}

// Msg returns the buffer the caller should fill in before calling ForcePush
// or TryPush.
func (p *Producer) Msg() []byte { return p.q.Msg(p.current) }

// enqueueMsg terminates the chain at the slot just filled in and links it
// onto the published chain, then announces the new head.
func (p *Producer) enqueueMsg() {
	p.q.chainStore(p.current, Invalid)

	if p.head == Invalid {
		p.q.tailStore(p.current)
	} else {
		p.q.chainStore(p.head, p.current)
	}

	p.head = p.current
	p.q.headStore(p.head)
}

func (p *Producer) moveTail(tail Index) bool {
	next := p.q.chainLoad(SlotIndex(tail))
	return p.q.tailCAS(tail, next)
}

// tryOverrun attempts to jump the shared tail two slots ahead of tail,
// taking the first hop as the new write slot and reserving tail's own slot
// (the one the consumer is reading) in p.overrun until the consumer
// releases it. If
// another goroutine (the consumer) moved the tail first, it adopts the
// slot the consumer just released instead.
func (p *Producer) tryOverrun(tail Index) bool {
	newCurrent := p.q.chainLoad(SlotIndex(tail))
	newTail := p.q.chainLoad(SlotIndex(newCurrent))

	if p.q.tailCAS(tail, newTail) {
		p.overrun = SlotIndex(tail)
		p.current = newCurrent
		return true
	}

	p.current = SlotIndex(p.q.tailLoad())
	return false
}

// ForcePush publishes the message in Msg() and never fails: if the queue is
// full it discards the oldest unread message to make room. The result is
// Success when nothing was lost, Discarded when an unread message was
// overwritten to make room for this one.
func (p *Producer) ForcePush() Result {
	next := p.q.chainLoad(p.current)

	p.enqueueMsg()

	tail := p.q.tailLoad()
	consumedBit := IsConsumed(tail)
	full := next == SlotIndex(tail)

	discarded := false

	switch {
	case p.overrun != Invalid:
		if consumedBit {
			p.q.chainStore(p.overrun, next)
			p.current = p.overrun
			p.overrun = Invalid
		} else if p.moveTail(tail) {
			p.current = SlotIndex(tail)
			discarded = true
		} else {
			p.q.chainStore(p.overrun, next)
			p.current = p.overrun
			p.overrun = Invalid
		}
	case !full:
		p.current = next
	case !consumedBit:
		if p.moveTail(tail) {
			p.current = next
			discarded = true
		} else {
			discarded = p.tryOverrun(tail | ConsumedFlag)
		}
	default:
		discarded = p.tryOverrun(tail)
	}

	if discarded {
		return Discarded
	}
	return Success
}

// TryPush publishes the message in Msg() only if a slot is available
// without discarding an unread message. It never discards; it returns Fail
// instead when the queue is full.
func (p *Producer) TryPush() Result {
	next := p.q.chainLoad(p.current)

	tail := p.q.tailLoad()
	consumedBit := IsConsumed(tail)
	full := next == SlotIndex(tail)

	switch {
	case p.overrun != Invalid:
		if consumedBit {
			p.enqueueMsg()
			p.q.chainStore(p.overrun, next)
			p.current = p.overrun
			p.overrun = Invalid
			return Success
		}
	case !full:
		p.enqueueMsg()
		p.current = next
		return Success
	}

	return Fail
}
