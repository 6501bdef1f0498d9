// Package handshake implements the one-shot AF_UNIX SOCK_SEQPACKET exchange
// that negotiates a session: a byte-level wire.Request plus the shared-memory
// fd and per-channel eventfds, carried as ancillary SCM_RIGHTS data.
package handshake

// Carrier abstracts the transport of one handshake message: a byte payload
// plus an ordered list of OS handles. The only implementation in this
// package is unixSeqpacketCarrier, but the handshake protocol itself never
// references net.UnixConn directly so a different fd-passing transport
// (e.g. a broker) could be substituted without touching wire.Request.
type Carrier interface {
	// Send writes payload and fds (in order) as one message.
	Send(payload []byte, fds []int) error
	// Receive reads one message, returning its payload and any fds it
	// carried, in the order the sender passed them to Send.
	Receive() (payload []byte, fds []int, err error)
	// Close closes the underlying transport.
	Close() error
}
