// Command rtipcping dials a running rtipcd, negotiates one channel pair,
// and measures round trips through the daemon's echo loop: each ping is a
// sequence number pushed on the producer channel, each pong is the echoed
// copy popped off the consumer channel after its eventfd signals.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/rtipc/rtipc/handshake"
	"github.com/rtipc/rtipc/queue"
	"github.com/rtipc/rtipc/rtipclog"
	"github.com/rtipc/rtipc/session"
)

func main() {
	socketPath := flag.String("socket", "/run/rtipc/handshake.sock", "rtipcd handshake socket path")
	count := flag.Int("count", 10, "number of pings to send (0 = forever)")
	msgSize := flag.Int("size", 64, "message size in bytes (min 8)")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between pings")
	timeout := flag.Duration("timeout", time.Second, "per-pong wait timeout")
	flag.Parse()

	logger := rtipclog.New(rtipclog.Config{Level: rtipclog.LevelInfo, Format: rtipclog.FormatPretty})

	if *msgSize < 8 {
		logger.Fatal().Int("size", *msgSize).Msg("message size must hold a sequence number")
	}

	vec, err := handshake.Dial(*socketPath, handshake.Session{
		Info: []byte("rtipcping"),
		// The daemon's echo loop pairs its consumer i with its producer i,
		// so one producer plus one consumer here makes one loop.
		Consumers: []handshake.ChannelSpec{{MsgSize: *msgSize, AddMsgs: 2, EventFD: true}},
		Producers: []handshake.ChannelSpec{{MsgSize: *msgSize, AddMsgs: 2}},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("handshake failed")
	}
	defer vec.Close()

	prod := vec.Producer(0)
	cons := vec.Consumer(0)

	pollFD := -1
	if fdHolder, ok := cons.EventFD().(interface{ FD() int }); ok {
		pollFD = fdHolder.FD()
	}

	// The producer's write-cache holds the outgoing payload: Msg() keeps
	// returning the cache across pushes, and each push copies it into the
	// live slot. The echo is logged next to seq; it is not compared.
	prod.CacheEnable()
	defer prod.CacheDisable()

	sent, received := 0, 0
	for seq := uint64(1); *count == 0 || int(seq) <= *count; seq++ {
		binary.LittleEndian.PutUint64(prod.Msg(), seq)
		start := time.Now()
		if _, err := prod.ForcePush(); err != nil {
			logger.Fatal().Err(err).Msg("push failed")
		}
		sent++

		if echo, ok := awaitPong(logger, cons, pollFD, *timeout); ok {
			received++
			logger.Info().
				Uint64("seq", seq).
				Uint64("echo", echo).
				Dur("rtt", time.Since(start)).
				Msg("pong")
		} else {
			logger.Warn().Uint64("seq", seq).Msg("pong timeout")
		}

		time.Sleep(*interval)
	}

	fmt.Fprintf(os.Stdout, "%d sent, %d received, %.0f%% loss\n",
		sent, received, 100*float64(sent-received)/float64(sent))
}

// awaitPong blocks on the consumer's eventfd until a message arrives or
// the timeout expires, then pops the echoed payload.
func awaitPong(logger zerolog.Logger, cons *session.Consumer, pollFD int, timeout time.Duration) (uint64, bool) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, false
		}

		if pollFD >= 0 {
			fds := []unix.PollFd{{Fd: int32(pollFD), Events: unix.POLLIN}}
			if _, err := unix.Poll(fds, int(remaining.Milliseconds())+1); err != nil && err != unix.EINTR {
				logger.Warn().Err(err).Msg("poll failed")
				return 0, false
			}
		} else {
			time.Sleep(time.Millisecond)
		}

		res, err := cons.Pop()
		if err != nil {
			logger.Warn().Err(err).Msg("pop failed")
			return 0, false
		}
		switch res {
		case queue.Success, queue.Discarded:
			return binary.LittleEndian.Uint64(cons.Msg()), true
		case queue.Error:
			logger.Warn().Msg("channel corrupted")
			return 0, false
		}
	}
}
