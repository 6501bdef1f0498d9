//go:build linux

package handshake

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// maxFDs bounds the number of descriptors carried in one SCM_RIGHTS
// ancillary message, matching the kernel's SCM_MAX_FD (net/scm.h); this
// package never needs anywhere near this many (one shm fd plus one
// eventfd per channel).
const maxFDs = 253

// unixSeqpacketCarrier is the Carrier backing every real handshake: an
// AF_UNIX SOCK_SEQPACKET connection, peeking the pending datagram's size
// before reading it in full.
type unixSeqpacketCarrier struct {
	conn *net.UnixConn
}

// NewUnixSeqpacketCarrier wraps an already-connected unixpacket conn.
func NewUnixSeqpacketCarrier(conn *net.UnixConn) Carrier {
	return &unixSeqpacketCarrier{conn: conn}
}

func (c *unixSeqpacketCarrier) Send(payload []byte, fds []int) error {
	if len(fds) > maxFDs {
		return fmt.Errorf("handshake: %d fds exceeds carrier limit %d", len(fds), maxFDs)
	}

	oob := unix.UnixRights(fds...)
	n, oobn, err := c.conn.WriteMsgUnix(payload, oob, nil)
	if err != nil {
		return fmt.Errorf("handshake: sendmsg: %w", err)
	}
	if n != len(payload) || oobn != len(oob) {
		return fmt.Errorf("handshake: short sendmsg (wrote %d/%d bytes, %d/%d oob)", n, len(payload), oobn, len(oob))
	}
	return nil
}

func (c *unixSeqpacketCarrier) Receive() ([]byte, []int, error) {
	rawConn, err := c.conn.SyscallConn()
	if err != nil {
		return nil, nil, fmt.Errorf("handshake: syscallconn: %w", err)
	}

	// Peek the pending message's size so the full read can allocate an
	// exact-size buffer, matching request.c's MSG_PEEK|MSG_TRUNC probe.
	var peekSize int
	var peekErr error
	ctrlErr := rawConn.Read(func(fd uintptr) bool {
		buf := make([]byte, 65536)
		n, _, _, _, err := unix.Recvmsg(int(fd), buf, nil, unix.MSG_PEEK|unix.MSG_TRUNC)
		if err == unix.EAGAIN {
			// Nothing pending yet: let the runtime poller wait for
			// read-readiness and call us again.
			return false
		}
		peekSize, peekErr = n, err
		return true
	})
	if ctrlErr != nil {
		return nil, nil, fmt.Errorf("handshake: peek: %w", ctrlErr)
	}
	if peekErr != nil {
		return nil, nil, fmt.Errorf("handshake: peek recvmsg: %w", peekErr)
	}
	if peekSize <= 0 {
		return nil, nil, fmt.Errorf("handshake: peer sent empty or truncated request")
	}

	payload := make([]byte, peekSize)
	oob := make([]byte, unix.CmsgSpace(maxFDs*4))

	n, oobn, _, _, err := c.conn.ReadMsgUnix(payload, oob)
	if err != nil {
		return nil, nil, fmt.Errorf("handshake: recvmsg: %w", err)
	}
	payload = payload[:n]
	oob = oob[:oobn]

	fds, err := parseRights(oob)
	if err != nil {
		return nil, nil, err
	}

	return payload, fds, nil
}

func parseRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("handshake: parse control message: %w", err)
	}

	var fds []int
	for _, m := range msgs {
		rights, err := unix.ParseUnixRights(&m)
		if err != nil {
			return nil, fmt.Errorf("handshake: parse unix rights: %w", err)
		}
		fds = append(fds, rights...)
	}
	return fds, nil
}

func (c *unixSeqpacketCarrier) Close() error { return c.conn.Close() }
