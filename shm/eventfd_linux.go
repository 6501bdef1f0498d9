//go:build linux

package shm

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// LinuxEventFD is the concrete channel.EventFD backed by a Linux eventfd
// in semaphore mode: EFD_SEMAPHORE so each Drain consumes exactly one
// pending signal rather than coalescing them, EFD_NONBLOCK so Drain never
// blocks the caller.
type LinuxEventFD struct {
	fd int
}

// NewLinuxEventFD creates a fresh non-blocking, semaphore-mode eventfd.
func NewLinuxEventFD() (*LinuxEventFD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK|unix.EFD_SEMAPHORE)
	if err != nil {
		return nil, fmt.Errorf("shm: eventfd: %w", err)
	}
	return &LinuxEventFD{fd: fd}, nil
}

// WrapLinuxEventFD adopts an already-open eventfd descriptor, e.g. one
// received over a handshake.
func WrapLinuxEventFD(fd int) *LinuxEventFD { return &LinuxEventFD{fd: fd} }

// FD returns the raw descriptor, for passing over a handshake or for use
// in an epoll set.
func (e *LinuxEventFD) FD() int { return e.fd }

// Signal writes 1 to the eventfd, incrementing its counter by one. The
// kernel reads the value as a host-order uint64.
func (e *LinuxEventFD) Signal() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(e.fd, buf[:])
	return err
}

// Drain reads one unit from the eventfd's counter. ok is false when the
// counter was already zero (EAGAIN on this non-blocking fd), which is not
// an error: it just means no signal had arrived yet.
func (e *LinuxEventFD) Drain() (ok bool, err error) {
	var buf [8]byte
	_, err = unix.Read(e.fd, buf[:])
	if err == unix.EAGAIN {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the underlying descriptor.
func (e *LinuxEventFD) Close() error { return unix.Close(e.fd) }
