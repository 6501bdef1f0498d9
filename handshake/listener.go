//go:build linux

package handshake

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/rtipc/rtipc/session"
	"github.com/rtipc/rtipc/shm"
	"github.com/rtipc/rtipc/wire"
)

// Filter evaluates a parsed, but not-yet-accepted, handshake request and
// decides whether the listener should build a session from it. Returning
// false rejects the connection with reply code -1.
type Filter func(req *wire.Request) bool

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Path is the filesystem path for the AF_UNIX SOCK_SEQPACKET socket.
	Path string
	// Backlog is the listen() backlog.
	Backlog int
	// Filter, if set, is consulted before a session is accepted.
	Filter Filter
	// Limiter optionally rate-limits accepted connections per remote
	// credential (SO_PEERCRED uid) plus a global bucket. Nil disables
	// rate limiting (the default).
	Limiter *AcceptRateLimiter
	// OnReject, if set, is invoked by Serve for every connection that
	// failed to negotiate a session (malformed request, filter rejection,
	// rate limit). Accounting only; the connection is already closed.
	OnReject func(err error)
	Logger   zerolog.Logger
}

// Listener accepts handshake connections and hands back negotiated
// session.Vectors.
type Listener struct {
	cfg ListenerConfig
	ln  *net.UnixListener

	mu     sync.Mutex
	closed bool
}

// Listen binds a handshake socket at cfg.Path, removing any stale socket
// file left behind by a previous, uncleanly-terminated owner. The socket
// is created by hand rather than through net.ListenUnix so cfg.Backlog
// actually reaches listen(2) — the net package hardcodes somaxconn.
func Listen(cfg ListenerConfig) (*Listener, error) {
	if cfg.Backlog <= 0 {
		cfg.Backlog = 16
	}
	_ = os.Remove(cfg.Path)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("handshake: socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: cfg.Path}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("handshake: bind %s: %w", cfg.Path, err)
	}
	if err := unix.Listen(fd, cfg.Backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("handshake: listen %s: %w", cfg.Path, err)
	}

	f := os.NewFile(uintptr(fd), cfg.Path)
	fln, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("handshake: file listener: %w", err)
	}
	ln, ok := fln.(*net.UnixListener)
	if !ok {
		fln.Close()
		return nil, fmt.Errorf("handshake: unexpected listener type %T", fln)
	}

	return &Listener{cfg: cfg, ln: ln}, nil
}

// Close stops accepting new connections and removes the socket file.
func (l *Listener) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	err := l.ln.Close()
	_ = os.Remove(l.cfg.Path)
	return err
}

// Accept blocks for one incoming handshake and returns the negotiated
// session, or an error if the connection failed, was malformed, or was
// rejected by cfg.Filter. A malformed or rejected request always gets a
// reply and a closed socket before Accept returns; no partial vector is
// ever handed back.
func (l *Listener) Accept() (*session.Vector, error) {
	conn, err := l.ln.AcceptUnix()
	if err != nil {
		return nil, fmt.Errorf("handshake: accept: %w", err)
	}

	if l.cfg.Limiter != nil {
		cred, err := peerCred(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("handshake: read peer credentials: %w", err)
		}
		if !l.cfg.Limiter.Allowed(cred.Uid) {
			conn.Close()
			return nil, fmt.Errorf("handshake: accept rate limit exceeded for uid %d", cred.Uid)
		}
	}

	carrier := NewUnixSeqpacketCarrier(conn)
	vec, err := acceptOver(carrier, l.cfg.Filter)
	carrier.Close()
	return vec, err
}

// Serve runs Accept in a loop, invoking onSession for each successfully
// negotiated vector and logging (but not propagating) per-connection
// errors. One call, runs until the listener is closed.
func (l *Listener) Serve(onSession func(*session.Vector)) error {
	for {
		vec, err := l.Accept()
		if err != nil {
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()
			if closed {
				return nil
			}
			if l.cfg.OnReject != nil {
				l.cfg.OnReject(err)
			}
			l.cfg.Logger.Warn().Err(err).Msg("handshake: rejected connection")
			continue
		}
		onSession(vec)
	}
}

func acceptOver(carrier Carrier, filter Filter) (*session.Vector, error) {
	payload, fds, err := carrier.Receive()
	if err != nil {
		return nil, fmt.Errorf("handshake: receive request: %w", err)
	}

	req, err := wire.Decode(payload)
	if err != nil {
		carrier.Send(encodeReply(-1), nil)
		return nil, fmt.Errorf("handshake: decode request: %w", err)
	}

	if len(fds) == 0 {
		carrier.Send(encodeReply(-1), nil)
		return nil, fmt.Errorf("handshake: request carried no file descriptors")
	}

	shmFD := fds[0]
	remaining := fds[1:]

	region, err := shm.MapFD(shmFD)
	if err != nil {
		carrier.Send(encodeReply(-1), nil)
		return nil, fmt.Errorf("handshake: map shm fd: %w", err)
	}

	consumerMeta, remaining, err := resolveMeta(req.Consumers, remaining)
	if err != nil {
		region.Close()
		carrier.Send(encodeReply(-1), nil)
		return nil, err
	}
	producerMeta, _, err := resolveMeta(req.Producers, remaining)
	if err != nil {
		region.Close()
		closeMeta(consumerMeta)
		carrier.Send(encodeReply(-1), nil)
		return nil, err
	}

	if filter != nil && !filter(req) {
		region.Close()
		closeMeta(consumerMeta)
		closeMeta(producerMeta)
		carrier.Send(encodeReply(-1), nil)
		return nil, fmt.Errorf("handshake: rejected by filter")
	}

	if err := carrier.Send(encodeReply(0), nil); err != nil {
		region.Close()
		closeMeta(consumerMeta)
		closeMeta(producerMeta)
		return nil, fmt.Errorf("handshake: send accept reply: %w", err)
	}

	return session.FromMapper(region, consumerMeta, producerMeta, req.Info), nil
}

// peerCred reads the connected peer's credentials off the socket via
// SO_PEERCRED.
func peerCred(conn *net.UnixConn) (*unix.Ucred, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}
	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return nil, err
	}
	return cred, credErr
}

// resolveMeta consumes one fd per channel that set EventFD, in table
// order, wrapping it as a shm.LinuxEventFD. Returns the remaining fds for
// the next channel-kind group (consumers, then producers).
func resolveMeta(entries []wire.ChannelRequest, fds []int) ([]session.ChannelMeta, []int, error) {
	metas := make([]session.ChannelMeta, len(entries))
	for i, e := range entries {
		metas[i] = session.ChannelMeta{Meta: e.Info}
		if e.EventFD {
			if len(fds) == 0 {
				return nil, nil, fmt.Errorf("handshake: missing eventfd for channel %d", i)
			}
			metas[i].EFD = shm.WrapLinuxEventFD(fds[0])
			fds = fds[1:]
		}
	}
	return metas, fds, nil
}
