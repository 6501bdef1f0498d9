//go:build linux

package handshake

import (
	"encoding/binary"
	"fmt"

	"github.com/rtipc/rtipc/queue"
	"github.com/rtipc/rtipc/session"
	"github.com/rtipc/rtipc/shm"
	"github.com/rtipc/rtipc/wire"
)

// allocChannels builds the wire.ChannelRequest table entries and resolves
// an eventfd for every spec that asked for one, in order. On any eventfd
// creation failure it closes everything it already created.
func allocChannels(specs []ChannelSpec) ([]wire.ChannelRequest, []session.ChannelMeta, error) {
	reqs := make([]wire.ChannelRequest, len(specs))
	metas := make([]session.ChannelMeta, len(specs))

	for i, s := range specs {
		reqs[i] = wire.ChannelRequest{
			MsgSize: s.MsgSize,
			AddMsgs: s.AddMsgs,
			EventFD: s.EventFD,
			Info:    s.Info,
		}
		metas[i] = session.ChannelMeta{Meta: s.Info}

		if s.EventFD {
			efd, err := shm.NewLinuxEventFD()
			if err != nil {
				closeMeta(metas[:i])
				return nil, nil, fmt.Errorf("handshake: create eventfd for channel %d: %w", i, err)
			}
			metas[i].EFD = efd
		}
	}

	return reqs, metas, nil
}

func toQueueParams(specs []ChannelSpec) []queue.Params {
	out := make([]queue.Params, len(specs))
	for i, s := range specs {
		out[i] = queue.Params{MsgSize: s.MsgSize, AddMsgs: s.AddMsgs}
	}
	return out
}

func closeMeta(metas []session.ChannelMeta) {
	for _, m := range metas {
		if c, ok := m.EFD.(interface{ Close() error }); ok && m.EFD != nil {
			c.Close()
		}
	}
}

func eventFDsOf(metas []session.ChannelMeta) []int {
	var fds []int
	for _, m := range metas {
		if fd, ok := m.EFD.(interface{ FD() int }); ok && m.EFD != nil {
			fds = append(fds, fd.FD())
		}
	}
	return fds
}

func decodeReply(b []byte) (int32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("handshake: reply is %d bytes, want 4", len(b))
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func encodeReply(code int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(code))
	return b
}
