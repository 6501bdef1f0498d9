//go:build linux

package shm

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/rtipc/rtipc/queue"
)

func TestCreateOwnerMapFDRoundTrip(t *testing.T) {
	consumers := []queue.Params{{MsgSize: 16, AddMsgs: 1}}
	producers := []queue.Params{{MsgSize: 64, AddMsgs: 0}}

	owner, err := CreateOwner(consumers, producers)
	if err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	defer owner.Close()

	// A second mapping of the same fd sees the owner's header, table, and
	// live queue words, exactly as a peer process would after fd passing.
	fd, err := unix.Dup(owner.FD())
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	mapped, err := MapFD(fd)
	if err != nil {
		unix.Close(fd)
		t.Fatalf("MapFD: %v", err)
	}
	defer mapped.Close()

	if mapped.NumConsumers() != 1 || mapped.NumProducers() != 1 {
		t.Fatalf("mapped counts = %d/%d, want 1/1", mapped.NumConsumers(), mapped.NumProducers())
	}
	if mapped.Plan().TotalSize != owner.Plan().TotalSize {
		t.Fatalf("mapped TotalSize %d != owner %d", mapped.Plan().TotalSize, owner.Plan().TotalSize)
	}

	// Publish through the owner's mapping, consume through the second
	// mapping: both views address the same physical pages.
	p := queue.NewProducer(owner.Queue(0))
	c := queue.NewConsumer(mapped.Queue(0))

	copy(p.Msg(), []byte("cross-map"))
	if res := p.ForcePush(); res != queue.Success {
		t.Fatalf("ForcePush = %v, want Success", res)
	}
	if res := c.Pop(); res != queue.Discarded {
		t.Fatalf("Pop = %v, want Discarded", res)
	}
	if string(c.Msg()[:9]) != "cross-map" {
		t.Fatalf("consumed %q through second mapping", c.Msg()[:9])
	}
}

func TestCreateOwnerSealsRegion(t *testing.T) {
	owner, err := CreateOwner([]queue.Params{{MsgSize: 8}}, nil)
	if err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	defer owner.Close()

	seals, err := unix.FcntlInt(uintptr(owner.FD()), unix.F_GET_SEALS, 0)
	if err != nil {
		t.Fatalf("F_GET_SEALS: %v", err)
	}
	const want = unix.F_SEAL_GROW | unix.F_SEAL_SHRINK | unix.F_SEAL_SEAL
	if seals&want != want {
		t.Fatalf("seals = %#x, missing grow/shrink/seal (%#x)", seals, want)
	}

	if err := unix.Ftruncate(owner.FD(), int64(owner.Plan().TotalSize)*2); err == nil {
		t.Fatalf("Ftruncate on a sealed region succeeded, want EPERM")
	}
}

func TestMapFDRejectsForeignRegion(t *testing.T) {
	fd, err := unix.MemfdCreate("not-rtipc", unix.MFD_CLOEXEC)
	if err != nil {
		t.Fatalf("memfd_create: %v", err)
	}
	if err := unix.Ftruncate(fd, 4096); err != nil {
		unix.Close(fd)
		t.Fatalf("ftruncate: %v", err)
	}

	if _, err := MapFD(fd); err == nil {
		t.Fatalf("MapFD on a zeroed region = nil error, want header rejection")
	}
	unix.Close(fd)
}

func TestEventFDSignalPollDrain(t *testing.T) {
	efd, err := NewLinuxEventFD()
	if err != nil {
		t.Fatalf("NewLinuxEventFD: %v", err)
	}
	defer efd.Close()

	if err := efd.Signal(); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	fds := []unix.PollFd{{Fd: int32(efd.FD()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 1000)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if n != 1 || fds[0].Revents&unix.POLLIN == 0 {
		t.Fatalf("eventfd not readable after Signal (n=%d revents=%#x)", n, fds[0].Revents)
	}

	if ok, err := efd.Drain(); err != nil || !ok {
		t.Fatalf("Drain after Signal = (%v, %v), want (true, nil)", ok, err)
	}
	// Semaphore mode: one Signal yields exactly one token.
	if ok, err := efd.Drain(); err != nil || ok {
		t.Fatalf("second Drain = (%v, %v), want (false, nil)", ok, err)
	}
}
