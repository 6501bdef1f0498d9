//go:build linux

package shm

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/rtipc/rtipc/queue"
)

var anonName uint64

// CreateOwner allocates an anonymous, sealed memfd-backed region sized for
// the given consumer and producer channel parameters, maps it, and
// initializes the header, descriptor table, and every queue within it.
// The fd is sealed against grow/shrink/re-seal so neither side can resize
// the segment out from under the other after the handshake.
func CreateOwner(consumers, producers []queue.Params) (*Region, error) {
	plan := NewPlan(consumers, producers)

	name := fmt.Sprintf("rtipc_%d", atomic.AddUint64(&anonName, 1))

	fd, err := unix.MemfdCreate(name, unix.MFD_ALLOW_SEALING|unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("shm: memfd_create: %w", err)
	}

	if err := unix.Ftruncate(fd, int64(plan.TotalSize)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: ftruncate: %w", err)
	}

	const seals = unix.F_SEAL_GROW | unix.F_SEAL_SHRINK | unix.F_SEAL_SEAL
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, seals); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: F_ADD_SEALS: %w", err)
	}

	mem, err := unix.Mmap(fd, 0, plan.TotalSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: mmap: %w", err)
	}

	if err := plan.WriteHeaderAndTable(mem); err != nil {
		unix.Munmap(mem)
		unix.Close(fd)
		return nil, err
	}

	r := &Region{mem: mem, fd: fd, plan: plan, owner: true}
	for i := range plan.QueueOffsets {
		r.Queue(i).InitEmpty()
	}

	return r, nil
}

// MapFD maps a region received over a handshake from its raw file
// descriptor and validates the header before returning it. The mapper's
// producer channels are the owner's consumer channels and vice versa;
// callers pick the right accessor (session.Vector handles this).
func MapFD(fd int) (*Region, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("shm: fstat: %w", err)
	}

	mem, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap: %w", err)
	}

	r, err := mapFromHeader(mem, fd, false)
	if err != nil {
		unix.Munmap(mem)
		return nil, err
	}
	return r, nil
}

// Close unmaps the region and closes its file descriptor.
func (r *Region) Close() error {
	if err := unix.Munmap(r.mem); err != nil {
		return err
	}
	return unix.Close(r.fd)
}
