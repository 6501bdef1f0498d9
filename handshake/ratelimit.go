package handshake

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// AcceptRateLimiter bounds how fast handshake connections are accepted.
//
// Two-level rate limiting:
//   - Per-peer: one token bucket per remote credential (SO_PEERCRED uid),
//     so a single misbehaving dialer retrying rejected handshakes cannot
//     starve other local users of the socket.
//   - Global: one system-wide bucket protecting the listener as a whole.
//
// Uses the token bucket algorithm (golang.org/x/time/rate).
type AcceptRateLimiter struct {
	peerLimiters map[uint32]*peerLimiterEntry
	peerMu       sync.RWMutex
	peerBurst    int
	peerRate     float64
	peerTTL      time.Duration

	globalLimiter *rate.Limiter

	logger zerolog.Logger

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// peerLimiterEntry holds a rate limiter and last access time for one uid.
type peerLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// AcceptRateLimiterConfig configures NewAcceptRateLimiter. Zero values
// fall back to the defaults noted per field.
type AcceptRateLimiterConfig struct {
	// Per-peer limits.
	PeerBurst int           // max burst of accepts per uid (default 10)
	PeerRate  float64       // sustained accepts/sec per uid (default 1.0)
	PeerTTL   time.Duration // drop idle uid entries after this (default 5m)

	// Global limits.
	GlobalBurst int     // max burst of accepts system-wide (default 300)
	GlobalRate  float64 // sustained accepts/sec system-wide (default 50.0)

	Logger zerolog.Logger
}

// NewAcceptRateLimiter creates an accept-rate limiter and starts its
// background cleanup of idle per-peer entries. Call Stop on shutdown.
func NewAcceptRateLimiter(config AcceptRateLimiterConfig) *AcceptRateLimiter {
	if config.PeerBurst == 0 {
		config.PeerBurst = 10
	}
	if config.PeerRate == 0 {
		config.PeerRate = 1.0
	}
	if config.PeerTTL == 0 {
		config.PeerTTL = 5 * time.Minute
	}
	if config.GlobalBurst == 0 {
		config.GlobalBurst = 300
	}
	if config.GlobalRate == 0 {
		config.GlobalRate = 50.0
	}

	l := &AcceptRateLimiter{
		peerLimiters:  make(map[uint32]*peerLimiterEntry),
		peerBurst:     config.PeerBurst,
		peerRate:      config.PeerRate,
		peerTTL:       config.PeerTTL,
		globalLimiter: rate.NewLimiter(rate.Limit(config.GlobalRate), config.GlobalBurst),
		logger:        config.Logger.With().Str("component", "accept_rate_limiter").Logger(),
		stopCleanup:   make(chan struct{}),
	}

	l.cleanupTicker = time.NewTicker(time.Minute)
	go l.cleanupLoop()

	return l
}

// Allowed reports whether an accept from the peer with the given
// credential uid may proceed. The global bucket is checked first, then
// the per-peer bucket.
func (l *AcceptRateLimiter) Allowed(uid uint32) bool {
	if !l.globalLimiter.Allow() {
		l.logger.Debug().
			Uint32("uid", uid).
			Msg("connection rejected: global accept rate exceeded")
		return false
	}

	if !l.getPeerLimiter(uid).Allow() {
		l.logger.Debug().
			Uint32("uid", uid).
			Float64("peer_rate", l.peerRate).
			Int("peer_burst", l.peerBurst).
			Msg("connection rejected: per-peer accept rate exceeded")
		return false
	}

	return true
}

// getPeerLimiter retrieves or creates the rate limiter for one uid.
func (l *AcceptRateLimiter) getPeerLimiter(uid uint32) *rate.Limiter {
	l.peerMu.RLock()
	entry, exists := l.peerLimiters[uid]
	l.peerMu.RUnlock()

	if exists {
		l.peerMu.Lock()
		entry.lastAccess = time.Now()
		l.peerMu.Unlock()
		return entry.limiter
	}

	l.peerMu.Lock()
	defer l.peerMu.Unlock()

	// Re-check after acquiring the write lock.
	if entry, exists = l.peerLimiters[uid]; exists {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(l.peerRate), l.peerBurst)
	l.peerLimiters[uid] = &peerLimiterEntry{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

// cleanupLoop periodically drops per-peer entries that have been idle
// longer than PeerTTL, bounding the map's growth.
func (l *AcceptRateLimiter) cleanupLoop() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanup()
		case <-l.stopCleanup:
			l.cleanupTicker.Stop()
			return
		}
	}
}

func (l *AcceptRateLimiter) cleanup() {
	l.peerMu.Lock()
	defer l.peerMu.Unlock()

	now := time.Now()
	for uid, entry := range l.peerLimiters {
		if now.Sub(entry.lastAccess) > l.peerTTL {
			delete(l.peerLimiters, uid)
		}
	}
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (l *AcceptRateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}
