//go:build linux

package handshake

import (
	"fmt"
	"net"

	"github.com/rtipc/rtipc/session"
	"github.com/rtipc/rtipc/shm"
	"github.com/rtipc/rtipc/wire"
)

// Dial connects to the listener at path, allocates a shared-memory region
// sized for sess's channels, and sends it over the handshake socket. The
// dialer is the side that creates the region; the listener only maps it.
func Dial(path string, sess Session) (*session.Vector, error) {
	addr := &net.UnixAddr{Name: path, Net: "unixpacket"}
	conn, err := net.DialUnix("unixpacket", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("handshake: dial %s: %w", path, err)
	}
	carrier := NewUnixSeqpacketCarrier(conn)

	vec, err := dialOver(carrier, sess)
	if err != nil {
		carrier.Close()
		return nil, err
	}
	return vec, nil
}

func dialOver(carrier Carrier, sess Session) (*session.Vector, error) {
	consumerParams, consumerMeta, err := allocChannels(sess.Consumers)
	if err != nil {
		return nil, err
	}
	producerParams, producerMeta, err := allocChannels(sess.Producers)
	if err != nil {
		closeMeta(consumerMeta)
		return nil, err
	}

	region, err := shm.CreateOwner(toQueueParams(sess.Consumers), toQueueParams(sess.Producers))
	if err != nil {
		closeMeta(consumerMeta)
		closeMeta(producerMeta)
		return nil, fmt.Errorf("handshake: create region: %w", err)
	}

	req := &wire.Request{Info: sess.Info, Consumers: consumerParams, Producers: producerParams}
	payload, err := wire.Encode(req, uint16(region.Plan().Header.CachelineSize))
	if err != nil {
		region.Close()
		closeMeta(consumerMeta)
		closeMeta(producerMeta)
		return nil, fmt.Errorf("handshake: encode request: %w", err)
	}

	fds := []int{region.FD()}
	fds = append(fds, eventFDsOf(consumerMeta)...)
	fds = append(fds, eventFDsOf(producerMeta)...)

	if err := carrier.Send(payload, fds); err != nil {
		region.Close()
		closeMeta(consumerMeta)
		closeMeta(producerMeta)
		return nil, err
	}

	reply, _, err := carrier.Receive()
	if err != nil {
		region.Close()
		closeMeta(consumerMeta)
		closeMeta(producerMeta)
		return nil, fmt.Errorf("handshake: receive reply: %w", err)
	}
	code, err := decodeReply(reply)
	if err != nil {
		region.Close()
		closeMeta(consumerMeta)
		closeMeta(producerMeta)
		return nil, err
	}
	if code != 0 {
		region.Close()
		closeMeta(consumerMeta)
		closeMeta(producerMeta)
		return nil, fmt.Errorf("handshake: server rejected session")
	}

	return session.FromOwner(region, consumerMeta, producerMeta, sess.Info), nil
}
