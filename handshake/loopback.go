//go:build linux

package handshake

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Loopback creates a connected pair of AF_UNIX SOCK_SEQPACKET carriers
// via socketpair(2), without touching the filesystem. Used by this
// module's own tests to exercise the handshake protocol without a real
// Listener/Dial pair.
func Loopback() (a, b Carrier, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("handshake: socketpair: %w", err)
	}

	connA, err := fdToUnixConn(fds[0])
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, err
	}
	connB, err := fdToUnixConn(fds[1])
	if err != nil {
		connA.Close()
		unix.Close(fds[1])
		return nil, nil, err
	}

	return NewUnixSeqpacketCarrier(connA), NewUnixSeqpacketCarrier(connB), nil
}

func fdToUnixConn(fd int) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), "rtipc-loopback")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("handshake: fileconn: %w", err)
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("handshake: unexpected conn type %T", conn)
	}
	return uc, nil
}
