package shm

import (
	"encoding/binary"
	"fmt"

	"github.com/rtipc/rtipc/queue"
)

// Descriptor is one channel's entry in the region's descriptor table,
// immediately following the header. The table lists consumer channels
// first, then producer channels, matching the handshake wire format in
// package wire.
type Descriptor struct {
	MsgSize uint32
	AddMsgs uint32
}

const descriptorSize = 2 * 4

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// Plan is the fully resolved byte layout of one region: header, descriptor
// table, then one cacheline-aligned queue.Layout per channel (consumers
// first, then producers, mirroring Descriptor order).
type Plan struct {
	Header                Header
	ConsumerParams        []queue.Params
	ProducerParams        []queue.Params
	DescriptorTableOffset int
	QueueOffsets          []int // len == len(ConsumerParams)+len(ProducerParams)
	QueueLayouts          []queue.Layout
	TotalSize             int
}

// NewPlan computes the byte layout for a region hosting the given consumer
// and producer channel parameters, from the owner's point of view
// (consumers are channels the owner reads from, producers are channels
// the owner writes to).
func NewPlan(consumers, producers []queue.Params) Plan {
	h := NewHeader(len(consumers), len(producers))
	cacheline := int(h.CachelineSize)

	offset := alignUp(HeaderSize, 4)
	tableOffset := offset
	offset += (len(consumers) + len(producers)) * descriptorSize
	offset = alignUp(offset, cacheline)

	all := make([]queue.Params, 0, len(consumers)+len(producers))
	all = append(all, consumers...)
	all = append(all, producers...)

	offsets := make([]int, len(all))
	layouts := make([]queue.Layout, len(all))
	for i, p := range all {
		l := queue.CalcLayout(p, cacheline)
		offsets[i] = offset
		layouts[i] = l
		offset += l.Size()
		offset = alignUp(offset, cacheline)
	}

	return Plan{
		Header:                h,
		ConsumerParams:        consumers,
		ProducerParams:        producers,
		DescriptorTableOffset: tableOffset,
		QueueOffsets:          offsets,
		QueueLayouts:          layouts,
		TotalSize:             offset,
	}
}

// WriteHeaderAndTable encodes the header and descriptor table into the
// start of arena. arena must be at least p.TotalSize bytes.
func (p Plan) WriteHeaderAndTable(arena []byte) error {
	if len(arena) < p.TotalSize {
		return fmt.Errorf("shm: arena too small: have %d, need %d", len(arena), p.TotalSize)
	}

	binary.LittleEndian.PutUint32(arena[0:4], p.Header.Magic)
	binary.LittleEndian.PutUint32(arena[4:8], p.Header.Version)
	binary.LittleEndian.PutUint32(arena[8:12], p.Header.CachelineSize)
	binary.LittleEndian.PutUint32(arena[12:16], p.Header.AtomicSize)
	binary.LittleEndian.PutUint32(arena[16:20], p.Header.NumConsumers)
	binary.LittleEndian.PutUint32(arena[20:24], p.Header.NumProducers)

	off := p.DescriptorTableOffset
	all := make([]queue.Params, 0, len(p.ConsumerParams)+len(p.ProducerParams))
	all = append(all, p.ConsumerParams...)
	all = append(all, p.ProducerParams...)
	for _, d := range all {
		binary.LittleEndian.PutUint32(arena[off:off+4], uint32(d.MsgSize))
		binary.LittleEndian.PutUint32(arena[off+4:off+8], uint32(d.AddMsgs))
		off += descriptorSize
	}

	return nil
}

// ReadHeader decodes the header at the start of arena.
func ReadHeader(arena []byte) (Header, error) {
	if len(arena) < HeaderSize {
		return Header{}, fmt.Errorf("shm: region too small (%d bytes) for header", len(arena))
	}
	h := Header{
		Magic:         binary.LittleEndian.Uint32(arena[0:4]),
		Version:       binary.LittleEndian.Uint32(arena[4:8]),
		CachelineSize: binary.LittleEndian.Uint32(arena[8:12]),
		AtomicSize:    binary.LittleEndian.Uint32(arena[12:16]),
		NumConsumers:  binary.LittleEndian.Uint32(arena[16:20]),
		NumProducers:  binary.LittleEndian.Uint32(arena[20:24]),
	}
	return h, h.Validate()
}

// ReadDescriptorTable decodes the n consumer + producer descriptors
// following the header.
func ReadDescriptorTable(arena []byte, numConsumers, numProducers int) ([]queue.Params, []queue.Params, error) {
	off := alignUp(HeaderSize, 4)
	total := numConsumers + numProducers
	if len(arena) < off+total*descriptorSize {
		return nil, nil, fmt.Errorf("shm: region too small for descriptor table")
	}

	read := func(n int) []queue.Params {
		out := make([]queue.Params, n)
		for i := 0; i < n; i++ {
			msgSize := binary.LittleEndian.Uint32(arena[off : off+4])
			addMsgs := binary.LittleEndian.Uint32(arena[off+4 : off+8])
			out[i] = queue.Params{MsgSize: int(msgSize), AddMsgs: int(addMsgs)}
			off += descriptorSize
		}
		return out
	}

	consumers := read(numConsumers)
	producers := read(numProducers)
	return consumers, producers, nil
}
