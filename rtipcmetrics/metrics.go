// Package rtipcmetrics exposes Prometheus counters/gauges for the
// handshake listener and negotiated channels.
package rtipcmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	handshakesAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtipc_handshakes_accepted_total",
		Help: "Total number of handshake requests accepted into a session",
	})

	handshakesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtipc_handshakes_rejected_total",
		Help: "Total number of handshake requests rejected, by reason",
	}, []string{"reason"})

	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rtipc_sessions_active",
		Help: "Current number of negotiated sessions with at least one open endpoint",
	})

	channelsDiscardedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtipc_channel_discarded_messages_total",
		Help: "Total number of messages discarded by an overwrite push or overrun pop, by channel role",
	}, []string{"role"})

	channelQueueFullTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtipc_channel_queue_full_total",
		Help: "Total number of TryPush calls that failed because the queue was full",
	}, []string{"role"})
)

func init() {
	prometheus.MustRegister(
		handshakesAccepted,
		handshakesRejected,
		sessionsActive,
		channelsDiscardedTotal,
		channelQueueFullTotal,
	)
}

// IncHandshakeAccepted records one accepted handshake.
func IncHandshakeAccepted() { handshakesAccepted.Inc() }

// IncHandshakeRejected records one rejected handshake, tagged with why.
func IncHandshakeRejected(reason string) { handshakesRejected.WithLabelValues(reason).Inc() }

// SetSessionsActive sets the current active-session gauge.
func SetSessionsActive(n int) { sessionsActive.Set(float64(n)) }

// IncChannelDiscarded records one discarded message on a producer or
// consumer channel.
func IncChannelDiscarded(role string) { channelsDiscardedTotal.WithLabelValues(role).Inc() }

// IncChannelQueueFull records one TryPush failure on a producer channel.
func IncChannelQueueFull(role string) { channelQueueFullTotal.WithLabelValues(role).Inc() }

// Handler returns the promhttp handler serving /metrics.
func Handler() http.Handler { return promhttp.Handler() }
