package channel

import (
	"errors"
	"testing"

	"github.com/rtipc/rtipc/queue"
)

type fakeEventFD struct {
	pending int
	signals int
	failNext bool
}

func (f *fakeEventFD) Signal() error {
	f.pending++
	f.signals++
	return nil
}

func (f *fakeEventFD) Drain() (bool, error) {
	if f.failNext {
		return false, errors.New("boom")
	}
	if f.pending == 0 {
		return false, nil
	}
	f.pending--
	return true, nil
}

func newTestPair(t *testing.T, addMsgs, msgSize int, efd EventFD) (*Producer, *Consumer) {
	t.Helper()
	l := queue.CalcLayout(queue.Params{MsgSize: msgSize, AddMsgs: addMsgs}, 64)
	arena := make([]byte, l.Size())
	q := queue.New(arena, l)
	q.InitEmpty()
	return NewProducer(q, efd, nil), NewConsumer(q, efd, nil)
}

func TestProducerSignalsOnForcePush(t *testing.T) {
	efd := &fakeEventFD{}
	p, _ := newTestPair(t, 2, 8, efd)

	copy(p.Msg(), []byte{1})
	if _, err := p.ForcePush(); err != nil {
		t.Fatalf("ForcePush: %v", err)
	}
	if efd.signals != 1 {
		t.Fatalf("signals = %d, want 1", efd.signals)
	}
}

func TestTryPushDoesNotSignalOnFail(t *testing.T) {
	efd := &fakeEventFD{}
	p, _ := newTestPair(t, 0, 8, efd)

	filled := 0
	for i := 0; i < 10; i++ {
		copy(p.Msg(), []byte{byte(i)})
		res, err := p.TryPush()
		if err != nil {
			t.Fatalf("TryPush: %v", err)
		}
		if res == queue.Fail {
			break
		}
		filled++
	}

	if efd.signals != filled {
		t.Fatalf("signals = %d, want %d (one per successful push)", efd.signals, filled)
	}
}

func TestConsumerDrainsEventFDBeforePop(t *testing.T) {
	efd := &fakeEventFD{}
	p, c := newTestPair(t, 2, 8, efd)

	copy(p.Msg(), []byte{9})
	p.ForcePush()

	if efd.pending != 1 {
		t.Fatalf("pending = %d, want 1 before Pop", efd.pending)
	}

	res, err := c.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if res != queue.Discarded {
		t.Fatalf("Pop() = %v, want Discarded", res)
	}
	if efd.pending != 0 {
		t.Fatalf("pending = %d, want 0 after Pop drained it", efd.pending)
	}
}

func TestConsumerFlushDrainsOneCounter(t *testing.T) {
	efd := &fakeEventFD{}
	p, c := newTestPair(t, 2, 8, efd)

	for i := 0; i < 3; i++ {
		copy(p.Msg(), []byte{byte(i)})
		p.ForcePush()
	}
	if efd.pending != 3 {
		t.Fatalf("pending = %d, want 3 before Flush", efd.pending)
	}

	res, err := c.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if res != queue.Discarded {
		t.Fatalf("Flush() = %v, want Discarded", res)
	}
	if efd.pending != 2 {
		t.Fatalf("pending = %d after Flush, want 2 (exactly one token drained)", efd.pending)
	}
}

func TestCacheEnableDisableRoundTrip(t *testing.T) {
	p, _ := newTestPair(t, 0, 8, nil)

	copy(p.Msg(), []byte{1, 2, 3})
	p.ForcePush()

	before := append([]byte(nil), p.p.Msg()...)

	p.CacheEnable()
	copy(p.Msg(), []byte{9, 9, 9})
	p.CacheDisable()

	after := p.p.Msg()
	for i := range before {
		if after[i] != before[i] {
			t.Fatalf("cache enable/disable with no push changed the live slot: %v != %v", after, before)
		}
	}
}

func TestCacheWriteVisibleAfterPush(t *testing.T) {
	p, c := newTestPair(t, 2, 8, nil)

	p.CacheEnable()
	copy(p.Msg(), []byte{5, 5, 5})
	p.ForcePush()

	c.Pop()
	if c.Msg()[0] != 5 {
		t.Fatalf("consumed %v, want cache content to have been published", c.Msg())
	}
}
