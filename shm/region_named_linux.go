//go:build linux

package shm

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/rtipc/rtipc/queue"
)

// CreateOwnerNamed is CreateOwner's filesystem-backed counterpart: the
// region lives at a /dev/shm path (O_CREAT|O_EXCL on the path) instead of
// an anonymous memfd, so it survives an exec() in the owning process
// without fd-inheritance plumbing.
func CreateOwnerNamed(path string, consumers, producers []queue.Params) (*Region, error) {
	plan := NewPlan(consumers, producers)

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("shm: open named region %q: %w", path, err)
	}

	if err := unix.Ftruncate(fd, int64(plan.TotalSize)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: ftruncate: %w", err)
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

// MapOwnerNamed opens and maps an existing named region created by
// CreateOwnerNamed, validating its header.
func MapOwnerNamed(path string) (*Region, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open named region %q: %w", path, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: fstat: %w", err)
	}

	mem, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: mmap: %w", err)
	}

	r, err := mapFromHeader(mem, fd, false)
	if err != nil {
		unix.Munmap(mem)
		unix.Close(fd)
		return nil, err
	}
	return r, nil
}
