package bcknd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujwal-p/mgmtbcknd"
	"github.com/ujwal-p/mgmtbcknd/internal/bckndtest"
	"github.com/ujwal-p/mgmtbcknd/wire"
)

func newTestRegistry(t *testing.T) (*bcknd.Registry, *bckndtest.StubScheduler, *bckndtest.FakeTransactionModule, *bckndtest.FakeConfigDB) {
	t.Helper()
	cfg := bcknd.NewConfig()
	subs := bcknd.NewSubscriptionRegistry([]bcknd.PatternTableEntry{
		{Pattern: "/", Clients: []bcknd.ClientID{bcknd.ClientStatic, bcknd.ClientBGP}},
	})
	cfgDB := bckndtest.NewFakeConfigDB()
	trxn := bckndtest.NewFakeTransactionModule()
	sched := bckndtest.NewStubScheduler()
	return bcknd.NewRegistry(cfg, subs, cfgDB, trxn, sched), sched, trxn, cfgDB
}

func createTestAdapter(t *testing.T, reg *bcknd.Registry) (*bcknd.Adapter, *bckndtest.StubRawConn) {
	t.Helper()
	fd := bckndtest.NextStubFd()
	conn := bckndtest.NewStubRawConn(fd)
	a := reg.CreateAdapter(fd, conn, "127.0.0.1:9999")
	return a, conn
}

func TestCreateAdapterIsIdempotentByFd(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	fd := bckndtest.NextStubFd()
	conn := bckndtest.NewStubRawConn(fd)
	a1 := reg.CreateAdapter(fd, conn, "peer")
	a2 := reg.CreateAdapter(fd, conn, "peer")
	assert.Same(t, a1, a2)
}

func TestCreateAdapterArmsReadAndConnInit(t *testing.T) {
	reg, sched, _, _ := newTestRegistry(t)
	a, _ := createTestAdapter(t, reg)
	assert.Equal(t, 1, sched.ReadArmed[a])
	assert.Equal(t, 1, sched.ConnInitArmed[a])
}

func TestOnReadableAssemblesCompleteFrame(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	a, conn := createTestAdapter(t, reg)

	payload, err := wire.Encode(wire.SubscrReq{ClientName: "staticd", Subscribe: true})
	require.NoError(t, err)
	framed, err := bcknd.EncodeFrame(payload)
	require.NoError(t, err)

	conn.Feed(framed)
	a.OnReadable()

	assert.Equal(t, int64(1), a.NumMsgRx())
}

// TestOnReadableDisconnectsOnPeerClose reproduces the read=0 -> disconnect
// rule: an empty, closed read side disconnects the adapter.
func TestOnReadableDisconnectsOnPeerClose(t *testing.T) {
	reg, sched, trxn, _ := newTestRegistry(t)
	a, conn := createTestAdapter(t, reg)
	conn.CloseRead()

	a.OnReadable()

	assert.True(t, a.Disconnected())
	assert.True(t, conn.Closed())
	assert.Equal(t, 1, sched.Cancelled[a])
	require.Len(t, trxn.ConnEvents, 1)
	assert.False(t, trxn.ConnEvents[0].Up)
}

// TestOnReadableCorruptFrameDisconnectsAfterGoodFrame reproduces spec.md
// scenario S3: a well-formed frame is processed, then a corrupt marker
// forces disconnect; num_msg_rx must count only the good frame.
func TestOnReadableCorruptFrameDisconnectsAfterGoodFrame(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	a, conn := createTestAdapter(t, reg)

	good, err := bcknd.EncodeFrame([]byte{0xAA, 0xBB})
	require.NoError(t, err)
	bad := []byte{0xCA, 0xFE, 0x00, 0x06, 0x00, 0x00}
	conn.Feed(append(append([]byte{}, good...), bad...))

	a.OnReadable()

	assert.Equal(t, int64(1), a.NumMsgRx())
	assert.True(t, a.Disconnected())
}

func TestEnqueueOutRejectsOversizePayload(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	a, _ := createTestAdapter(t, reg)

	err := a.EnqueueOut(make([]byte, bcknd.MaxFrame))
	assert.ErrorIs(t, err, bcknd.ErrOversizeFrame)
	assert.False(t, a.Disconnected())
}

func TestEnqueueOutCountsAtEnqueueNotSend(t *testing.T) {
	reg, sched, _, _ := newTestRegistry(t)
	a, conn := createTestAdapter(t, reg)
	conn.MaxWrite = 0 // unlimited; OnWritable is never called in this test, so nothing drains

	require.NoError(t, a.EnqueueOut([]byte("hello")))
	assert.Equal(t, int64(1), a.NumMsgTx())
	assert.Equal(t, 1, sched.WriteArmed[a])
}

// TestOnWritablePartialWriteReArmsExactlyOnce reproduces spec.md scenario
// S6: a stub socket accepting a bounded number of bytes per write forces a
// partial write, which must re-arm CONN_WRITE exactly once per call rather
// than spinning.
func TestOnWritablePartialWriteReArmsExactlyOnce(t *testing.T) {
	reg, sched, _, _ := newTestRegistry(t)
	a, conn := createTestAdapter(t, reg)
	conn.MaxWrite = 4

	require.NoError(t, a.EnqueueOut([]byte("this payload is longer than four bytes")))
	baseline := sched.WriteArmCount(a)

	a.OnWritable()

	assert.Equal(t, baseline+1, sched.WriteArmCount(a))
	assert.NotEmpty(t, conn.Written())
}

func TestOnWritableUnconditionalPauseAfterBurst(t *testing.T) {
	reg, sched, _, _ := newTestRegistry(t)
	cfg := bcknd.NewConfig(bcknd.WithWriteBurst(1))
	subs := bcknd.NewSubscriptionRegistry(nil)
	cfgDB := bckndtest.NewFakeConfigDB()
	trxn := bckndtest.NewFakeTransactionModule()
	reg = bcknd.NewRegistry(cfg, subs, cfgDB, trxn, sched)

	a, conn := createTestAdapter(t, reg)
	conn.MaxWrite = 0 // unlimited: each frame fully drains in one WriteNonBlock
	require.NoError(t, a.EnqueueOut([]byte("tiny")))

	a.OnWritable()

	assert.Equal(t, 1, sched.WritesOnArmed[a])
}

func TestDisconnectIsIdempotent(t *testing.T) {
	reg, sched, _, _ := newTestRegistry(t)
	a, conn := createTestAdapter(t, reg)

	a.Disconnect()
	a.Disconnect()

	assert.Equal(t, 1, sched.Cancelled[a])
	assert.True(t, conn.Closed())
	assert.Equal(t, int32(0), a.Refcount())
}

func TestDisconnectRemovesFromRegistryByFd(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	fd := bckndtest.NextStubFd()
	conn := bckndtest.NewStubRawConn(fd)
	a := reg.CreateAdapter(fd, conn, "peer")

	a.Disconnect()

	again := reg.CreateAdapter(fd, bckndtest.NewStubRawConn(fd), "peer")
	assert.NotSame(t, a, again, "a fresh accept on a reused fd should not be shadowed by the disconnected adapter")
}
