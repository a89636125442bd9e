package bcknd_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujwal-p/mgmtbcknd"
	"github.com/ujwal-p/mgmtbcknd/internal/bckndtest"
	"github.com/ujwal-p/mgmtbcknd/wire"
)

func feedAndProcess(t *testing.T, a *bcknd.Adapter, conn *bckndtest.StubRawConn, msg wire.Message) {
	t.Helper()
	payload, err := wire.Encode(msg)
	require.NoError(t, err)
	framed, err := bcknd.EncodeFrame(payload)
	require.NoError(t, err)
	conn.Feed(framed)
	a.OnReadable()
	a.ProcessMessages()
}

func TestIdentifyBindsKnownClientAndNotifiesUp(t *testing.T) {
	reg, _, trxn, _ := newTestRegistry(t)
	a, conn := createTestAdapter(t, reg)

	feedAndProcess(t, a, conn, wire.SubscrReq{ClientName: "staticd", Subscribe: false})

	assert.Equal(t, "staticd", a.Name)
	assert.Equal(t, bcknd.ClientStatic, a.ID)
	found, ok := reg.FindByID(bcknd.ClientStatic)
	assert.True(t, ok)
	assert.Same(t, a, found)
	require.Len(t, trxn.ConnEvents, 1)
	assert.True(t, trxn.ConnEvents[0].Up)
}

func TestIdentifyUnknownNameDisconnects(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	a, conn := createTestAdapter(t, reg)

	feedAndProcess(t, a, conn, wire.SubscrReq{ClientName: "no-such-daemon"})

	assert.True(t, a.Disconnected())
}

// TestIdentifyEvictsPriorSameIdentity reproduces spec.md scenario S5: a
// second adapter registering under a name already bound to a live adapter
// forcibly disconnects the prior one and takes over the identity.
func TestIdentifyEvictsPriorSameIdentity(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	first, firstConn := createTestAdapter(t, reg)
	feedAndProcess(t, first, firstConn, wire.SubscrReq{ClientName: "bgpd"})
	require.False(t, first.Disconnected())

	second, secondConn := createTestAdapter(t, reg)
	feedAndProcess(t, second, secondConn, wire.SubscrReq{ClientName: "bgpd"})

	assert.True(t, first.Disconnected())
	assert.False(t, second.Disconnected())
	found, ok := reg.FindByID(bcknd.ClientBGP)
	assert.True(t, ok)
	assert.Same(t, second, found)
}

func TestFindByNameLinearScan(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	a, conn := createTestAdapter(t, reg)
	feedAndProcess(t, a, conn, wire.SubscrReq{ClientName: "staticd"})

	found, ok := reg.FindByName("staticd")
	assert.True(t, ok)
	assert.Same(t, a, found)

	_, ok = reg.FindByName("nope")
	assert.False(t, ok)
}

func TestStatusDumpIncludesSessionAndCounters(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	a, conn := createTestAdapter(t, reg)
	feedAndProcess(t, a, conn, wire.SubscrReq{ClientName: "staticd"})
	require.NoError(t, a.EnqueueOut([]byte("x")))

	var sink strings.Builder
	reg.StatusDump(&sink)

	out := sink.String()
	assert.Contains(t, out, "staticd")
	assert.Contains(t, out, a.SessionID)
	assert.Contains(t, out, "tx=1")
}

func TestShutdownDisconnectsEveryAdapterAndIsIdempotent(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	a1, _ := createTestAdapter(t, reg)
	a2, _ := createTestAdapter(t, reg)

	reg.Shutdown()
	reg.Shutdown()

	assert.True(t, a1.Disconnected())
	assert.True(t, a2.Disconnected())
}

// TestConnInitReschedulesWhenTransactionInProgress reproduces the CONN_INIT
// reschedule branch of spec.md §4.7.
func TestConnInitReschedulesWhenTransactionInProgress(t *testing.T) {
	reg, sched, trxn, _ := newTestRegistry(t)
	trxn.SetInProgress(true)
	a, _ := createTestAdapter(t, reg)

	before := sched.ConnInitArmed[a]
	a.OnConnInit()

	assert.Equal(t, before+1, sched.ConnInitArmed[a])
	assert.False(t, a.Disconnected())
}

func TestConnInitDisconnectsOnTransactionCreateFailure(t *testing.T) {
	reg, _, trxn, _ := newTestRegistry(t)
	trxn.FailCreate = true
	a, _ := createTestAdapter(t, reg)

	a.OnConnInit()

	assert.True(t, a.Disconnected())
}

// TestSubscribeStagesOnlySubscribedPaths reproduces spec.md §4.7's snapshot
// driver: only nodes the subscription table actually grants to the newly
// identified adapter's ClientId are staged.
func TestSubscribeStagesOnlySubscribedPaths(t *testing.T) {
	cfg := bcknd.NewConfig()
	subs := bcknd.NewSubscriptionRegistry([]bcknd.PatternTableEntry{
		{Pattern: "/routing/*", Clients: []bcknd.ClientID{bcknd.ClientBGP}},
	})
	cfgDB := bckndtest.NewFakeConfigDB()
	cfgDB.Put("/routing/bgp/neighbor[addr='10.0.0.1']", []byte("neighbor-data"))
	cfgDB.Put("/interfaces/interface[name='eth0']", []byte("iface-data"))
	trxn := bckndtest.NewFakeTransactionModule()
	sched := bckndtest.NewStubScheduler()
	reg := bcknd.NewRegistry(cfg, subs, cfgDB, trxn, sched)

	fd := bckndtest.NextStubFd()
	conn := bckndtest.NewStubRawConn(fd)
	a := reg.CreateAdapter(fd, conn, "peer")

	feedAndProcess(t, a, conn, wire.SubscrReq{ClientName: "bgpd", Subscribe: true})

	require.Len(t, a.PendingCfgChanges, 1)
	assert.Equal(t, "/routing/bgp/neighbor[addr='10.0.0.1']", a.PendingCfgChanges[0].Path)
	assert.True(t, a.PendingCfgChanges[0].Created)
}

// TestIdentifySnapshotsRegardlessOfSubscribeFlag reproduces spec.md §2's
// unconditional rule: binding identity always triggers the config snapshot,
// even when the registering SubscrReq carries Subscribe=false.
func TestIdentifySnapshotsRegardlessOfSubscribeFlag(t *testing.T) {
	cfg := bcknd.NewConfig()
	subs := bcknd.NewSubscriptionRegistry([]bcknd.PatternTableEntry{
		{Pattern: "/routing/*", Clients: []bcknd.ClientID{bcknd.ClientBGP}},
	})
	cfgDB := bckndtest.NewFakeConfigDB()
	cfgDB.Put("/routing/bgp/neighbor[addr='10.0.0.1']", []byte("neighbor-data"))
	trxn := bckndtest.NewFakeTransactionModule()
	sched := bckndtest.NewStubScheduler()
	reg := bcknd.NewRegistry(cfg, subs, cfgDB, trxn, sched)

	fd := bckndtest.NextStubFd()
	conn := bckndtest.NewStubRawConn(fd)
	a := reg.CreateAdapter(fd, conn, "peer")

	feedAndProcess(t, a, conn, wire.SubscrReq{ClientName: "bgpd", Subscribe: false})

	require.Len(t, a.PendingCfgChanges, 1)
	assert.Equal(t, "/routing/bgp/neighbor[addr='10.0.0.1']", a.PendingCfgChanges[0].Path)
}

func TestSubscribeWithNoXPathDefaultsToRoot(t *testing.T) {
	cfg := bcknd.NewConfig()
	subs := bcknd.NewSubscriptionRegistry([]bcknd.PatternTableEntry{
		{Pattern: "/*", Clients: []bcknd.ClientID{bcknd.ClientStatic}},
	})
	cfgDB := bckndtest.NewFakeConfigDB()
	cfgDB.Put("/anything", []byte("data"))
	trxn := bckndtest.NewFakeTransactionModule()
	sched := bckndtest.NewStubScheduler()
	reg := bcknd.NewRegistry(cfg, subs, cfgDB, trxn, sched)

	fd := bckndtest.NextStubFd()
	conn := bckndtest.NewStubRawConn(fd)
	a := reg.CreateAdapter(fd, conn, "peer")

	feedAndProcess(t, a, conn, wire.SubscrReq{ClientName: "staticd", Subscribe: true})

	require.Len(t, a.PendingCfgChanges, 1)
	assert.Equal(t, "/anything", a.PendingCfgChanges[0].Path)
}
