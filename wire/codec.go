package wire

import (
	"encoding/binary"
	"fmt"
)

// ChannelRequest describes one channel the dialer is asking the listener
// to create as part of a session.
type ChannelRequest struct {
	MsgSize int
	AddMsgs int
	EventFD bool
	Info    []byte
}

const entrySize = 4 + 4 + 4 + 4 // AddMsgs, MsgSize, EventFD, InfoSize

// Request is one full handshake request: a session-level info blob plus
// the consumer and producer channels the dialer wants created. Consumers
// are encoded before producers in both the count fields and the channel
// table.
type Request struct {
	Info      []byte
	Consumers []ChannelRequest
	Producers []ChannelRequest
}

// Encode serializes req into the fixed layout: header, then
// {infoSize, nConsumers, nProducers} uint32 fields, then the channel
// table (consumers then producers), then the info blobs in the same
// order (session info first, then each channel's info in table order).
func Encode(req *Request, cachelineSize uint16) ([]byte, error) {
	size := HeaderSize + 3*4
	size += (len(req.Consumers) + len(req.Producers)) * entrySize
	size += len(req.Info)
	for _, c := range req.Consumers {
		size += len(c.Info)
	}
	for _, p := range req.Producers {
		size += len(p.Info)
	}

	buf := make([]byte, size)

	h := NewHeader(cachelineSize)
	h.encode(buf[0:HeaderSize])

	off := HeaderSize
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(req.Info)))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(req.Consumers)))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(req.Producers)))
	off += 4

	offInfo := off + (len(req.Consumers)+len(req.Producers))*entrySize

	writeEntry := func(c ChannelRequest) {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(c.AddMsgs))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(c.MsgSize))
		ef := uint32(0)
		if c.EventFD {
			ef = 1
		}
		binary.LittleEndian.PutUint32(buf[off+8:off+12], ef)
		binary.LittleEndian.PutUint32(buf[off+12:off+16], uint32(len(c.Info)))
		off += entrySize
	}
	for _, c := range req.Consumers {
		writeEntry(c)
	}
	for _, p := range req.Producers {
		writeEntry(p)
	}

	writeInfo := func(info []byte) {
		if len(info) == 0 {
			return
		}
		copy(buf[offInfo:offInfo+len(info)], info)
		offInfo += len(info)
	}
	writeInfo(req.Info)
	for _, c := range req.Consumers {
		writeInfo(c.Info)
	}
	for _, p := range req.Producers {
		writeInfo(p.Info)
	}

	return buf, nil
}

// Decode parses a byte slice produced by Encode (or received from a peer
// claiming to speak this protocol) back into a Request.
func Decode(b []byte) (*Request, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("wire: request too small (%d bytes) for header", len(b))
	}
	h := decodeHeader(b[0:HeaderSize])
	if err := h.Validate(); err != nil {
		return nil, err
	}

	off := HeaderSize
	if len(b) < off+12 {
		return nil, fmt.Errorf("wire: request too small (%d bytes) for counts", len(b))
	}
	infoSize := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	nConsumers := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	nProducers := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4

	// Counts come from the peer; bound them by what the buffer can
	// actually hold before sizing any allocation off them.
	maxEntries := uint32((len(b) - off) / entrySize)
	if nConsumers > maxEntries || nProducers > maxEntries-nConsumers {
		return nil, fmt.Errorf("wire: request too small for %d+%d channel entries",
			nConsumers, nProducers)
	}

	offInfo := off + int(nConsumers+nProducers)*entrySize

	readInfo := func(size uint32) ([]byte, error) {
		if size == 0 {
			return nil, nil
		}
		if offInfo+int(size) > len(b) {
			return nil, fmt.Errorf("wire: request too small for info blob of size %d", size)
		}
		data := b[offInfo : offInfo+int(size)]
		offInfo += int(size)
		return data, nil
	}

	readEntry := func() (ChannelRequest, uint32, error) {
		if off+entrySize > len(b) {
			return ChannelRequest{}, 0, fmt.Errorf("wire: request too small for channel entry")
		}
		addMsgs := binary.LittleEndian.Uint32(b[off : off+4])
		msgSize := binary.LittleEndian.Uint32(b[off+4 : off+8])
		ef := binary.LittleEndian.Uint32(b[off+8 : off+12])
		infoSize := binary.LittleEndian.Uint32(b[off+12 : off+16])
		off += entrySize
		return ChannelRequest{
			AddMsgs: int(addMsgs),
			MsgSize: int(msgSize),
			EventFD: ef != 0,
		}, infoSize, nil
	}

	consumers := make([]ChannelRequest, nConsumers)
	consumerInfoSizes := make([]uint32, nConsumers)
	for i := range consumers {
		c, size, err := readEntry()
		if err != nil {
			return nil, err
		}
		consumers[i] = c
		consumerInfoSizes[i] = size
	}

	producers := make([]ChannelRequest, nProducers)
	producerInfoSizes := make([]uint32, nProducers)
	for i := range producers {
		p, size, err := readEntry()
		if err != nil {
			return nil, err
		}
		producers[i] = p
		producerInfoSizes[i] = size
	}

	info, err := readInfo(infoSize)
	if err != nil {
		return nil, err
	}

	for i := range consumers {
		blob, err := readInfo(consumerInfoSizes[i])
		if err != nil {
			return nil, err
		}
		consumers[i].Info = blob
	}
	for i := range producers {
		blob, err := readInfo(producerInfoSizes[i])
		if err != nil {
			return nil, err
		}
		producers[i].Info = blob
	}

	return &Request{Info: info, Consumers: consumers, Producers: producers}, nil
}
