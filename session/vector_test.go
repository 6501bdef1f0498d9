//go:build linux

package session

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/rtipc/rtipc/queue"
	"github.com/rtipc/rtipc/shm"
)

// newMirroredVectors builds the two sides of one session in-process: an
// owner vector over a fresh region and a mapper vector over a second
// mapping of the same fd, exactly the shape a completed handshake leaves
// both peers in.
func newMirroredVectors(t *testing.T) (owner, mapper *Vector) {
	t.Helper()

	consumers := []queue.Params{{MsgSize: 16, AddMsgs: 1}}
	producers := []queue.Params{{MsgSize: 32, AddMsgs: 2}}

	region, err := shm.CreateOwner(consumers, producers)
	if err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}

	fd, err := unix.Dup(region.FD())
	if err != nil {
		region.Close()
		t.Fatalf("dup: %v", err)
	}
	mapped, err := shm.MapFD(fd)
	if err != nil {
		unix.Close(fd)
		region.Close()
		t.Fatalf("MapFD: %v", err)
	}

	ownerConsumerMeta := []ChannelMeta{{Meta: []byte("c0")}}
	ownerProducerMeta := []ChannelMeta{{Meta: []byte("p0")}}

	owner = FromOwner(region, ownerConsumerMeta, ownerProducerMeta, []byte("info"))
	mapper = FromMapper(mapped, ownerConsumerMeta, ownerProducerMeta, []byte("info"))
	return owner, mapper
}

func TestVectorRolesMirrorAcrossMapping(t *testing.T) {
	owner, mapper := newMirroredVectors(t)
	defer owner.Close()
	defer mapper.Close()

	if owner.NumConsumers() != 1 || owner.NumProducers() != 1 {
		t.Fatalf("owner shape = %d/%d, want 1/1", owner.NumConsumers(), owner.NumProducers())
	}
	if mapper.NumConsumers() != 1 || mapper.NumProducers() != 1 {
		t.Fatalf("mapper shape = %d/%d, want 1/1", mapper.NumConsumers(), mapper.NumProducers())
	}

	// The owner's consumer channel is the mapper's producer channel: a
	// message pushed on one side must surface on the other.
	mp := mapper.Producer(0)
	copy(mp.Msg(), []byte("to-owner"))
	if res, err := mp.ForcePush(); err != nil || res != queue.Success {
		t.Fatalf("mapper ForcePush = (%v, %v)", res, err)
	}
	oc := owner.Consumer(0)
	if res, err := oc.Pop(); err != nil || (res != queue.Success && res != queue.Discarded) {
		t.Fatalf("owner Pop = (%v, %v)", res, err)
	}
	if string(oc.Msg()[:8]) != "to-owner" {
		t.Fatalf("owner consumed %q", oc.Msg()[:8])
	}

	op := owner.Producer(0)
	copy(op.Msg(), []byte("to-mapper"))
	if res, err := op.ForcePush(); err != nil || res != queue.Success {
		t.Fatalf("owner ForcePush = (%v, %v)", res, err)
	}
	mc := mapper.Consumer(0)
	if res, err := mc.Pop(); err != nil || (res != queue.Success && res != queue.Discarded) {
		t.Fatalf("mapper Pop = (%v, %v)", res, err)
	}
	if string(mc.Msg()[:9]) != "to-mapper" {
		t.Fatalf("mapper consumed %q", mc.Msg()[:9])
	}
}

func TestTakeProducerTransfersOwnership(t *testing.T) {
	owner, mapper := newMirroredVectors(t)
	defer mapper.Close()

	p, err := owner.TakeProducer(0)
	if err != nil {
		t.Fatalf("TakeProducer: %v", err)
	}
	if owner.Producer(0) != nil {
		t.Fatalf("slot not nulled after TakeProducer")
	}
	if _, err := owner.TakeProducer(0); err == nil {
		t.Fatalf("second TakeProducer = nil error, want already-taken error")
	}

	// Closing the vector must not tear down the region while a taken
	// endpoint still references it.
	if err := owner.Close(); err != nil {
		t.Fatalf("vector Close: %v", err)
	}

	copy(p.Msg(), []byte("after-close"))
	if res, err := p.ForcePush(); err != nil || res != queue.Success {
		t.Fatalf("ForcePush on taken endpoint after vector close = (%v, %v)", res, err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("endpoint Close: %v", err)
	}
}

func TestTakeConsumerOutOfRange(t *testing.T) {
	owner, mapper := newMirroredVectors(t)
	defer owner.Close()
	defer mapper.Close()

	if _, err := owner.TakeConsumer(5); err == nil {
		t.Fatalf("TakeConsumer(5) = nil error, want out-of-range error")
	}
	if _, err := owner.TakeConsumer(-1); err == nil {
		t.Fatalf("TakeConsumer(-1) = nil error, want out-of-range error")
	}
}

func TestVectorMetaAndInfoAccessors(t *testing.T) {
	owner, mapper := newMirroredVectors(t)
	defer owner.Close()
	defer mapper.Close()

	if string(owner.Info()) != "info" {
		t.Fatalf("owner Info = %q", owner.Info())
	}
	if string(owner.Consumer(0).Meta()) != "c0" {
		t.Fatalf("owner consumer meta = %q", owner.Consumer(0).Meta())
	}
	if string(owner.Producer(0).Meta()) != "p0" {
		t.Fatalf("owner producer meta = %q", owner.Producer(0).Meta())
	}
	// The mapper sees the same blobs on the mirrored endpoints.
	if string(mapper.Producer(0).Meta()) != "c0" {
		t.Fatalf("mapper producer meta = %q, want the owner-consumer blob", mapper.Producer(0).Meta())
	}
}
