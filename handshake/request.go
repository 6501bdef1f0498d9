package handshake

import "github.com/rtipc/rtipc/wire"

// ChannelSpec describes one channel a dialer wants to create, reusing
// wire.ChannelRequest's field set as the public API: callers never build
// the wire encoding by hand.
type ChannelSpec = wire.ChannelRequest

// Session describes the full set of channels a dialer wants negotiated
// in one connection, plus an optional opaque session-level info blob.
type Session struct {
	Info      []byte
	Consumers []ChannelSpec
	Producers []ChannelSpec
}
