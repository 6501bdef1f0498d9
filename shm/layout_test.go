package shm

import (
	"testing"

	"github.com/rtipc/rtipc/queue"
)

func TestPlanRoundTripsThroughHeaderAndTable(t *testing.T) {
	consumers := []queue.Params{{MsgSize: 16, AddMsgs: 1}, {MsgSize: 256, AddMsgs: 4}}
	producers := []queue.Params{{MsgSize: 64, AddMsgs: 0}}

	plan := NewPlan(consumers, producers)
	arena := make([]byte, plan.TotalSize)

	if err := plan.WriteHeaderAndTable(arena); err != nil {
		t.Fatalf("WriteHeaderAndTable: %v", err)
	}

	h, err := ReadHeader(arena)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Magic != Magic || h.Version != Version {
		t.Fatalf("header round-trip mismatch: %+v", h)
	}
	if int(h.NumConsumers) != len(consumers) || int(h.NumProducers) != len(producers) {
		t.Fatalf("channel counts mismatch: %+v", h)
	}

	gotConsumers, gotProducers, err := ReadDescriptorTable(arena, int(h.NumConsumers), int(h.NumProducers))
	if err != nil {
		t.Fatalf("ReadDescriptorTable: %v", err)
	}
	for i, want := range consumers {
		if gotConsumers[i] != want {
			t.Fatalf("consumer[%d] = %+v, want %+v", i, gotConsumers[i], want)
		}
	}
	for i, want := range producers {
		if gotProducers[i] != want {
			t.Fatalf("producer[%d] = %+v, want %+v", i, gotProducers[i], want)
		}
	}
}

func TestHeaderValidateRejectsBadMagic(t *testing.T) {
	h := NewHeader(1, 1)
	h.Magic = 0xDEAD
	if err := h.Validate(); err == nil {
		t.Fatalf("Validate() with bad magic = nil, want error")
	}
}

func TestHeaderValidateRejectsVersionMismatch(t *testing.T) {
	h := NewHeader(1, 1)
	h.Version = Version + 1
	if err := h.Validate(); err == nil {
		t.Fatalf("Validate() with future version = nil, want error")
	}
}

func TestPlanQueueRegionsDoNotOverlap(t *testing.T) {
	consumers := []queue.Params{{MsgSize: 8, AddMsgs: 0}, {MsgSize: 1024, AddMsgs: 10}}
	producers := []queue.Params{{MsgSize: 32, AddMsgs: 2}}
	plan := NewPlan(consumers, producers)

	for i := 1; i < len(plan.QueueOffsets); i++ {
		prevEnd := plan.QueueOffsets[i-1] + plan.QueueLayouts[i-1].Size()
		if plan.QueueOffsets[i] < prevEnd {
			t.Fatalf("queue %d starts at %d before queue %d ends at %d", i, plan.QueueOffsets[i], i-1, prevEnd)
		}
	}
	if plan.TotalSize < plan.QueueOffsets[len(plan.QueueOffsets)-1]+plan.QueueLayouts[len(plan.QueueLayouts)-1].Size() {
		t.Fatalf("TotalSize %d too small for last queue region", plan.TotalSize)
	}
}
