package bcknd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujwal-p/mgmtbcknd/wire"
)

// recordingTrxn is a minimal TransactionModule recording every notify call,
// local to this file so dispatch_test.go (needing dispatchFrame, unexported)
// can stay in package bcknd without importing internal/bckndtest, which
// itself imports this package.
type recordingTrxn struct {
	connUp       []bool
	trxnReplies  []wire.TrxnReply
	dataReplies  []wire.CfgDataReply
	validReplies []wire.CfgValidateReply
	applyReplies []wire.CfgApplyReply
}

func (r *recordingTrxn) NotifyConn(a *Adapter, up bool) bool { r.connUp = append(r.connUp, up); return true }
func (r *recordingTrxn) NotifyTrxnReply(a *Adapter, trxnID uint64, create, success bool) {
	r.trxnReplies = append(r.trxnReplies, wire.TrxnReply{TrxnID: trxnID, Create: create, Success: success})
}
func (r *recordingTrxn) NotifyCfgDataReply(a *Adapter, trxnID, batchID uint64, success bool, errText string) {
	r.dataReplies = append(r.dataReplies, wire.CfgDataReply{TrxnID: trxnID, BatchID: batchID, Success: success, ErrorText: errText})
}
func (r *recordingTrxn) NotifyValidateReply(a *Adapter, trxnID uint64, batchIDs []uint64, success bool, errText string) {
	r.validReplies = append(r.validReplies, wire.CfgValidateReply{TrxnID: trxnID, BatchIDs: batchIDs, Success: success, ErrorText: errText})
}
func (r *recordingTrxn) NotifyApplyReply(a *Adapter, trxnID uint64, batchIDs []uint64, success bool, errText string) {
	r.applyReplies = append(r.applyReplies, wire.CfgApplyReply{TrxnID: trxnID, BatchIDs: batchIDs, Success: success, ErrorText: errText})
}
func (r *recordingTrxn) ConfigTrxnInProgress() (uint64, bool) { return 0, false }
func (r *recordingTrxn) CreateTrxn(a *Adapter) error          { return nil }

// noopIterator is a ConfigIterator that yields nothing, for dispatch tests
// that never exercise the snapshot driver.
type noopIterator struct{}

func (noopIterator) Iterate(basePath string, visit func(path string, node []byte)) error { return nil }

// recordingScheduler is a Scheduler that only needs to exist, not assert
// anything, for dispatch tests.
type recordingScheduler struct{}

func (recordingScheduler) ArmConnInit(a *Adapter, after time.Duration) {}
func (recordingScheduler) ArmRead(a *Adapter)                          {}
func (recordingScheduler) ArmWrite(a *Adapter)                         {}
func (recordingScheduler) ArmWritesOn(a *Adapter, after time.Duration) {}
func (recordingScheduler) ArmProcMsg(a *Adapter, after time.Duration)  {}
func (recordingScheduler) CancelAll(a *Adapter)                        {}

// memConn is a minimal RawConn that dispatch tests never actually read from
// or write to directly (EnqueueOut is exercised via sendEncoded, not a live
// wire), so its I/O methods just need to exist and not error.
type memConn struct {
	fd  int
	out [][]byte
}

func (m *memConn) ReadNonBlock(p []byte) (int, error)  { return 0, ErrWouldBlock }
func (m *memConn) WriteNonBlock(p []byte) (int, error) { m.out = append(m.out, append([]byte{}, p...)); return len(p), nil }
func (m *memConn) Close() error                        { return nil }
func (m *memConn) Fd() int                             { return m.fd }

func newDispatchTestAdapter(t *testing.T) (*Adapter, *recordingTrxn) {
	t.Helper()
	cfg := NewConfig()
	subs := NewSubscriptionRegistry([]PatternTableEntry{
		{Pattern: "/", Clients: []ClientID{ClientStatic, ClientBGP}},
	})
	trxn := &recordingTrxn{}
	reg := NewRegistry(cfg, subs, noopIterator{}, trxn, recordingScheduler{})
	conn := &memConn{fd: 4242}
	a := reg.CreateAdapter(conn.fd, conn, "peer")
	return a, trxn
}

func dispatchEncoded(t *testing.T, a *Adapter, msg wire.Message) {
	t.Helper()
	payload, err := wire.Encode(msg)
	require.NoError(t, err)
	dispatchFrame(a, payload)
}

func TestDispatchSubscrReqIdentifies(t *testing.T) {
	a, trxn := newDispatchTestAdapter(t)
	dispatchEncoded(t, a, wire.SubscrReq{ClientName: "bgpd"})
	assert.Equal(t, ClientBGP, a.ID)
	require.Len(t, trxn.connUp, 1)
	assert.True(t, trxn.connUp[0])
}

func TestDispatchTrxnReplyNotifies(t *testing.T) {
	a, trxn := newDispatchTestAdapter(t)
	dispatchEncoded(t, a, wire.TrxnReply{TrxnID: 7, Create: true, Success: true})
	require.Len(t, trxn.trxnReplies, 1)
	assert.Equal(t, uint64(7), trxn.trxnReplies[0].TrxnID)
}

func TestDispatchCfgDataReplyNotifies(t *testing.T) {
	a, trxn := newDispatchTestAdapter(t)
	dispatchEncoded(t, a, wire.CfgDataReply{TrxnID: 1, BatchID: 2, Success: false, ErrorText: "bad"})
	require.Len(t, trxn.dataReplies, 1)
	assert.Equal(t, "bad", trxn.dataReplies[0].ErrorText)
}

func TestDispatchCfgValidateReplyNotifies(t *testing.T) {
	a, trxn := newDispatchTestAdapter(t)
	dispatchEncoded(t, a, wire.CfgValidateReply{TrxnID: 3, BatchIDs: []uint64{1, 2}, Success: true})
	require.Len(t, trxn.validReplies, 1)
	assert.Equal(t, []uint64{1, 2}, trxn.validReplies[0].BatchIDs)
}

func TestDispatchCfgApplyReplyNotifies(t *testing.T) {
	a, trxn := newDispatchTestAdapter(t)
	dispatchEncoded(t, a, wire.CfgApplyReply{TrxnID: 9, BatchIDs: []uint64{9}, Success: true})
	require.Len(t, trxn.applyReplies, 1)
	assert.Equal(t, uint64(9), trxn.applyReplies[0].TrxnID)
}

// TestDispatchReservedVariantsAreSilentNoOps covers GetReply, CfgCmdReply,
// ShowCmdReply, and NotifyData: accepted, currently dropped, no disconnect
// or notification.
func TestDispatchReservedVariantsAreSilentNoOps(t *testing.T) {
	cases := []wire.Message{
		wire.GetReply{Opaque: []byte("x")},
		wire.CfgCmdReply{Opaque: []byte("y")},
		wire.ShowCmdReply{Opaque: nil},
		wire.NotifyData{Opaque: []byte{1}},
	}
	for _, c := range cases {
		a, trxn := newDispatchTestAdapter(t)
		dispatchEncoded(t, a, c)
		assert.False(t, a.Disconnected())
		assert.Empty(t, trxn.trxnReplies)
		assert.Empty(t, trxn.dataReplies)
	}
}

// TestDispatchRequestDirectionVariantsAreIgnoredNotDisconnected covers a
// request-direction message (meant for the other end of the wire) arriving
// inbound: logged and dropped, never a disconnect.
func TestDispatchRequestDirectionVariantsAreIgnoredNotDisconnected(t *testing.T) {
	cases := []wire.Message{
		wire.TrxnReq{TrxnID: 1, Create: true},
		wire.CfgDataReq{TrxnID: 1, BatchID: 1},
		wire.CfgValidateReq{TrxnID: 1, BatchIDs: []uint64{1}},
		wire.CfgApplyReq{TrxnID: 1},
	}
	for _, c := range cases {
		a, _ := newDispatchTestAdapter(t)
		dispatchEncoded(t, a, c)
		assert.False(t, a.Disconnected())
	}
}

func TestDispatchUndecodableFrameIsDroppedNotFatal(t *testing.T) {
	a, _ := newDispatchTestAdapter(t)
	dispatchFrame(a, []byte{0xFF, 0xFF, 0xFF})
	assert.False(t, a.Disconnected())
}

func TestSendTrxnReqEnqueuesEncodedFrame(t *testing.T) {
	a, _ := newDispatchTestAdapter(t)
	require.NoError(t, SendTrxnReq(a, 5, true))
	assert.Equal(t, int64(1), a.NumMsgTx())
}

func TestSendCfgDataReqEnqueuesEncodedFrame(t *testing.T) {
	a, _ := newDispatchTestAdapter(t)
	require.NoError(t, SendCfgDataReq(a, 1, 2, []wire.DataReqItem{{Path: "/x", Data: []byte{1}}}, true))
	assert.Equal(t, int64(1), a.NumMsgTx())
}

func TestSendCfgValidateReqEnqueuesEncodedFrame(t *testing.T) {
	a, _ := newDispatchTestAdapter(t)
	require.NoError(t, SendCfgValidateReq(a, 1, []uint64{1, 2}))
	assert.Equal(t, int64(1), a.NumMsgTx())
}

func TestSendCfgApplyReqEnqueuesEncodedFrame(t *testing.T) {
	a, _ := newDispatchTestAdapter(t)
	require.NoError(t, SendCfgApplyReq(a, 1))
	assert.Equal(t, int64(1), a.NumMsgTx())
}
