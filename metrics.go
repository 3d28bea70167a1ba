// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects the counters and gauges a process embedding pktconn may
// want to export. A nil *Metrics (the default) is valid everywhere: every
// method is a no-op guarded by a nil receiver check, so instrumenting a
// Connection or Listener is opt-in and costs nothing when skipped.
type Metrics struct {
	messagesReceived prometheus.Counter
	messagesSent     prometheus.Counter
	bytesReceived    prometheus.Counter
	bytesSent        prometheus.Counter
	connectionsOpen  prometheus.Gauge
	disconnects      *prometheus.CounterVec
	poolDropped      prometheus.Counter
}

// NewMetrics constructs a Metrics registered under reg with the given
// namespace (e.g. "pktconn"). Pass a fresh prometheus.NewRegistry() in
// tests to avoid collisions with the default global registry.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_received_total",
			Help: "Total number of fully-assembled messages delivered to a handler.",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_sent_total",
			Help: "Total number of messages handed to the transport via Send.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_received_total",
			Help: "Total number of raw bytes read from the transport.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_sent_total",
			Help: "Total number of raw bytes written to the transport.",
		}),
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections_open",
			Help: "Current number of live connections.",
		}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "disconnects_total",
			Help: "Total disconnects, labeled by reason class.",
		}, []string{"reason"}),
		poolDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "pool_dropped_total",
			Help: "Total messages dropped by a Pool at capacity instead of being retained.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.messagesReceived, m.messagesSent, m.bytesReceived,
			m.bytesSent, m.connectionsOpen, m.disconnects, m.poolDropped)
	}
	return m
}

func (m *Metrics) messageReceived() {
	if m != nil {
		m.messagesReceived.Inc()
	}
}

func (m *Metrics) messageSent() {
	if m != nil {
		m.messagesSent.Inc()
	}
}

func (m *Metrics) bytesIn(n int) {
	if m != nil {
		m.bytesReceived.Add(float64(n))
	}
}

func (m *Metrics) bytesOut(n int) {
	if m != nil {
		m.bytesSent.Add(float64(n))
	}
}

func (m *Metrics) connectionOpened() {
	if m != nil {
		m.connectionsOpen.Inc()
	}
}

func (m *Metrics) connectionClosed(reason string) {
	if m != nil {
		m.connectionsOpen.Dec()
		m.disconnects.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) poolDrop() {
	if m != nil {
		m.poolDropped.Inc()
	}
}
