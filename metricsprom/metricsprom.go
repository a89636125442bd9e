// Package metricsprom implements bcknd.Metrics on top of
// github.com/prometheus/client_golang, the same promauto-registration
// style as the teacher's companion pack's pkg/metrics/prometheus (the
// teacher itself only counts in-process atomics; this package is how an
// operator wires those same events into a scrape endpoint).
package metricsprom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ujwal-p/mgmtbcknd"
)

// Metrics is the Prometheus-backed bcknd.Metrics implementation. The zero
// value is not usable; build one with New.
type Metrics struct {
	msgTx          prometheus.Counter
	msgRx          prometheus.Counter
	framesSent     prometheus.Counter
	framesReceived prometheus.Counter
	bytesSent      prometheus.Counter
	bytesReceived  prometheus.Counter
	disconnects    prometheus.Counter

	// Get* on a counter-backed metric reads the in-process running total
	// via a plain atomic counter kept alongside the prometheus.Counter,
	// since prometheus.Counter exposes no portable read-back API.
	mirror bcknd.DefaultMetrics
}

// New registers the mgmtbcknd_* counter family against reg and returns a
// Metrics that satisfies bcknd.Metrics.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		msgTx: f.NewCounter(prometheus.CounterOpts{
			Name: "mgmtbcknd_messages_sent_total",
			Help: "Total number of protocol messages enqueued for send across all adapters.",
		}),
		msgRx: f.NewCounter(prometheus.CounterOpts{
			Name: "mgmtbcknd_messages_received_total",
			Help: "Total number of wire frames successfully scanned off the wire across all adapters.",
		}),
		framesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "mgmtbcknd_frames_sent_total",
			Help: "Total number of framed payloads fully written to a socket.",
		}),
		framesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "mgmtbcknd_frames_received_total",
			Help: "Total number of framed payloads decoded from an inbound stream.",
		}),
		bytesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "mgmtbcknd_bytes_sent_total",
			Help: "Total bytes written to adapter sockets.",
		}),
		bytesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "mgmtbcknd_bytes_received_total",
			Help: "Total bytes read from adapter sockets.",
		}),
		disconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "mgmtbcknd_disconnects_total",
			Help: "Total number of adapter disconnects, for any reason.",
		}),
	}
}

func (m *Metrics) IncrementMsgTx() { m.msgTx.Inc(); m.mirror.IncrementMsgTx() }
func (m *Metrics) IncrementMsgRx() { m.msgRx.Inc(); m.mirror.IncrementMsgRx() }
func (m *Metrics) IncrementFramesSent() {
	m.framesSent.Inc()
	m.mirror.IncrementFramesSent()
}
func (m *Metrics) IncrementFramesReceived() {
	m.framesReceived.Inc()
	m.mirror.IncrementFramesReceived()
}
func (m *Metrics) IncrementBytesSent(n int64) {
	m.bytesSent.Add(float64(n))
	m.mirror.IncrementBytesSent(n)
}
func (m *Metrics) IncrementBytesReceived(n int64) {
	m.bytesReceived.Add(float64(n))
	m.mirror.IncrementBytesReceived(n)
}
func (m *Metrics) IncrementDisconnects() { m.disconnects.Inc(); m.mirror.IncrementDisconnects() }

func (m *Metrics) GetMsgTxCount() int64          { return m.mirror.GetMsgTxCount() }
func (m *Metrics) GetMsgRxCount() int64          { return m.mirror.GetMsgRxCount() }
func (m *Metrics) GetFramesSentCount() int64     { return m.mirror.GetFramesSentCount() }
func (m *Metrics) GetFramesReceivedCount() int64 { return m.mirror.GetFramesReceivedCount() }
func (m *Metrics) GetBytesSent() int64           { return m.mirror.GetBytesSent() }
func (m *Metrics) GetBytesReceived() int64       { return m.mirror.GetBytesReceived() }
func (m *Metrics) GetDisconnectCount() int64     { return m.mirror.GetDisconnectCount() }

var _ bcknd.Metrics = (*Metrics)(nil)
