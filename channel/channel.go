// Package channel wraps a queue.Queue with the process-facing concerns of
// one endpoint: optional eventfd signalling so a consumer can block in
// poll/epoll instead of spinning, an optional producer write-cache for
// read-your-own-write semantics, and an opaque metadata blob carried
// through the handshake.
package channel

import "github.com/rtipc/rtipc/queue"

// EventFD is the minimal interface channel needs from an OS eventfd, kept
// abstract so this package has no direct OS dependency. shm.LinuxEventFD
// is the concrete implementation wired in by session.
type EventFD interface {
	// Signal increments the eventfd counter, waking a caller blocked in
	// poll/epoll on the descriptor.
	Signal() error
	// Drain attempts to consume one pending signal from the eventfd
	// counter, without blocking. ok is false when there was nothing to
	// read (EAGAIN on a non-blocking fd).
	Drain() (ok bool, err error)
}

// Endpoint is the data common to Producer and Consumer.
type Endpoint struct {
	q    *queue.Queue
	efd  EventFD
	meta []byte
}

// Meta returns the opaque metadata blob negotiated for this channel during
// the handshake, or nil if none was supplied.
func (e *Endpoint) Meta() []byte { return e.meta }

// EventFD returns the endpoint's notification eventfd, or nil if the
// channel was negotiated without one. Callers that want to block until a
// message arrives poll/epoll the underlying descriptor themselves; the
// endpoint only ever touches it non-blockingly.
func (e *Endpoint) EventFD() EventFD { return e.efd }

// NMsgs returns the total slot count of the underlying queue.
func (e *Endpoint) NMsgs() int { return e.q.NMsgs() }
