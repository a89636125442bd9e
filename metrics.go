package bcknd

import "sync/atomic"

// Metrics tracks per-process adapter statistics. Adapters call Increment*;
// status/diagnostic sinks read via Get*. Same Increment/Get split as the
// teacher's Metrics interface in metrics.go, with storage-transaction
// counters renamed to adapter message/frame counters.
type Metrics interface {
	IncrementMsgTx()
	IncrementMsgRx()
	IncrementFramesSent()
	IncrementFramesReceived()
	IncrementBytesSent(n int64)
	IncrementBytesReceived(n int64)
	IncrementDisconnects()

	GetMsgTxCount() int64
	GetMsgRxCount() int64
	GetFramesSentCount() int64
	GetFramesReceivedCount() int64
	GetBytesSent() int64
	GetBytesReceived() int64
	GetDisconnectCount() int64
}

// DefaultMetrics implements Metrics with atomic counters, the same
// technique as the teacher's DefaultMetrics.
type DefaultMetrics struct {
	msgTx          int64
	msgRx          int64
	framesSent     int64
	framesReceived int64
	bytesSent      int64
	bytesReceived  int64
	disconnects    int64
}

// NewDefaultMetrics creates a zeroed DefaultMetrics.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementMsgTx()             { atomic.AddInt64(&m.msgTx, 1) }
func (m *DefaultMetrics) IncrementMsgRx()             { atomic.AddInt64(&m.msgRx, 1) }
func (m *DefaultMetrics) IncrementFramesSent()        { atomic.AddInt64(&m.framesSent, 1) }
func (m *DefaultMetrics) IncrementFramesReceived()    { atomic.AddInt64(&m.framesReceived, 1) }
func (m *DefaultMetrics) IncrementBytesSent(n int64)  { atomic.AddInt64(&m.bytesSent, n) }
func (m *DefaultMetrics) IncrementBytesReceived(n int64) {
	atomic.AddInt64(&m.bytesReceived, n)
}
func (m *DefaultMetrics) IncrementDisconnects() { atomic.AddInt64(&m.disconnects, 1) }

func (m *DefaultMetrics) GetMsgTxCount() int64          { return atomic.LoadInt64(&m.msgTx) }
func (m *DefaultMetrics) GetMsgRxCount() int64          { return atomic.LoadInt64(&m.msgRx) }
func (m *DefaultMetrics) GetFramesSentCount() int64     { return atomic.LoadInt64(&m.framesSent) }
func (m *DefaultMetrics) GetFramesReceivedCount() int64 { return atomic.LoadInt64(&m.framesReceived) }
func (m *DefaultMetrics) GetBytesSent() int64           { return atomic.LoadInt64(&m.bytesSent) }
func (m *DefaultMetrics) GetBytesReceived() int64       { return atomic.LoadInt64(&m.bytesReceived) }
func (m *DefaultMetrics) GetDisconnectCount() int64     { return atomic.LoadInt64(&m.disconnects) }
