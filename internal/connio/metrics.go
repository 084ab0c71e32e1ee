// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package connio

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder mirrors rediscoro.MetricsRecorder, duplicated here to
// keep internal/connio free of a dependency on the root package.
type MetricsRecorder interface {
	RequestSent()
	ReplyReceived()
	ReconnectAttempted()
	ProtocolErrorObserved()
	ObserveRTT(time.Duration)
}

// PrometheusMetrics is the default MetricsRecorder, registering counters
// for request/reply/reconnect/protocol-error volume and a histogram for
// observed round-trip time (enqueue to delivery of the last expected reply).
type PrometheusMetrics struct {
	requestsSent     prometheus.Counter
	repliesReceived  prometheus.Counter
	reconnectCount   prometheus.Counter
	protocolErrors   prometheus.Counter
	rttSeconds       prometheus.Histogram
}

// NewPrometheusMetrics registers its collectors against reg and returns a
// ready-to-use MetricsRecorder. Pass prometheus.DefaultRegisterer to use
// the global registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		requestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rediscoro",
			Name:      "requests_sent_total",
			Help:      "Number of RESP3 commands written to the server.",
		}),
		repliesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rediscoro",
			Name:      "replies_received_total",
			Help:      "Number of RESP3 replies read from the server.",
		}),
		reconnectCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rediscoro",
			Name:      "reconnect_attempts_total",
			Help:      "Number of reconnection attempts made by the control loop.",
		}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rediscoro",
			Name:      "protocol_errors_total",
			Help:      "Number of malformed RESP3 replies observed.",
		}),
		rttSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rediscoro",
			Name:      "request_rtt_seconds",
			Help:      "Observed round-trip time from request enqueue to delivery of its last expected reply.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.requestsSent, m.repliesReceived, m.reconnectCount, m.protocolErrors, m.rttSeconds)
	return m
}

func (m *PrometheusMetrics) RequestSent()            { m.requestsSent.Inc() }
func (m *PrometheusMetrics) ReplyReceived()           { m.repliesReceived.Inc() }
func (m *PrometheusMetrics) ReconnectAttempted()      { m.reconnectCount.Inc() }
func (m *PrometheusMetrics) ProtocolErrorObserved()   { m.protocolErrors.Inc() }
func (m *PrometheusMetrics) ObserveRTT(d time.Duration) { m.rttSeconds.Observe(d.Seconds()) }
