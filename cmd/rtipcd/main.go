// Command rtipcd runs the listening side of the handshake: it accepts
// dialer connections, echoes traffic on each negotiated session, and
// serves Prometheus metrics plus periodic resource diagnostics.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/rs/zerolog"

	"github.com/rtipc/rtipc/diag"
	"github.com/rtipc/rtipc/handshake"
	"github.com/rtipc/rtipc/queue"
	"github.com/rtipc/rtipc/rtipcconfig"
	"github.com/rtipc/rtipc/rtipclog"
	"github.com/rtipc/rtipc/rtipcmetrics"
	"github.com/rtipc/rtipc/session"
)

// echoSession pairs each consumer channel with the producer channel at the
// same index and reflects every received message back, the daemon-side
// half of the cmd/rtipcping round trip. Exits when ctx is cancelled; the
// vector is closed by main afterwards.
func echoSession(ctx context.Context, logger zerolog.Logger, vec *session.Vector) {
	defer rtipclog.RecoverPanic(logger, "session.echo")

	pairs := vec.NumConsumers()
	if vec.NumProducers() < pairs {
		pairs = vec.NumProducers()
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for i := 0; i < pairs; i++ {
			cons, prod := vec.Consumer(i), vec.Producer(i)
			if cons == nil || prod == nil {
				continue
			}
			res, err := cons.Pop()
			if err != nil {
				logger.Error().Err(err).Int("channel", i).Msg("echo pop failed")
				return
			}
			switch res {
			case queue.Success, queue.Discarded:
				copy(prod.Msg(), cons.Msg())
				if _, err := prod.ForcePush(); err != nil {
					logger.Error().Err(err).Int("channel", i).Msg("echo push failed")
					return
				}
			case queue.Error:
				logger.Error().Int("channel", i).Msg("echo channel corrupted")
				return
			}
		}
	}
}

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides RTIPC_LOG_LEVEL)")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	flag.Parse()

	maxProcs := runtime.GOMAXPROCS(0)

	cfg, err := rtipcconfig.Load(nil)
	if err != nil {
		os.Stderr.WriteString("rtipcd: failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := rtipclog.New(cfg.LoggerConfig())
	logger.Info().Int("gomaxprocs", maxProcs).Msg("starting")
	cfg.LogConfig(logger)

	var limiter *handshake.AcceptRateLimiter
	if cfg.AcceptRateBurst > 0 && cfg.AcceptRate > 0 {
		limiter = handshake.NewAcceptRateLimiter(handshake.AcceptRateLimiterConfig{
			PeerBurst:   cfg.AcceptRateBurst,
			PeerRate:    cfg.AcceptRate,
			GlobalBurst: cfg.AcceptGlobalRateBurst,
			GlobalRate:  cfg.AcceptGlobalRate,
			Logger:      logger,
		})
		defer limiter.Stop()
	}

	ln, err := handshake.Listen(handshake.ListenerConfig{
		Path:    cfg.SocketPath,
		Backlog: cfg.Backlog,
		Limiter: limiter,
		OnReject: func(err error) {
			rtipcmetrics.IncHandshakeRejected("negotiation_failed")
		},
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to bind handshake listener")
	}

	var (
		mu       sync.Mutex
		sessions []*session.Vector
	)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var echoWG sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer rtipclog.RecoverPanic(logger, "handshake.Serve")
		err := ln.Serve(func(vec *session.Vector) {
			mu.Lock()
			sessions = append(sessions, vec)
			active := len(sessions)
			mu.Unlock()
			rtipcmetrics.IncHandshakeAccepted()
			rtipcmetrics.SetSessionsActive(active)
			logger.Info().
				Int("num_consumers", vec.NumConsumers()).
				Int("num_producers", vec.NumProducers()).
				Msg("session negotiated")
			echoWG.Add(1)
			go func() {
				defer echoWG.Done()
				echoSession(ctx, logger, vec)
			}()
		})
		if err != nil {
			logger.Error().Err(err).Msg("handshake accept loop exited")
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", rtipcmetrics.Handler())
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: mux}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	if sampler, err := diag.NewSampler(); err != nil {
		logger.Warn().Err(err).Msg("diagnostics sampler unavailable")
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer rtipclog.RecoverPanic(logger, "diag.Sample")
			ticker := time.NewTicker(cfg.DiagInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s, err := sampler.Sample()
					if err != nil {
						continue
					}
					logger.Debug().
						Uint64("rss_bytes", s.RSSBytes).
						Uint64("system_used_bytes", s.SystemUsedBytes).
						Msg("resource sample")
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	ln.Close()
	metricsServer.Shutdown(context.Background())
	cancel()
	echoWG.Wait()

	mu.Lock()
	for _, vec := range sessions {
		if err := vec.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing session")
		}
	}
	mu.Unlock()

	wg.Wait()
	logger.Info().Msg("shutdown complete")
}
