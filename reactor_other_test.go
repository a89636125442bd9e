//go:build !linux

package bcknd_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujwal-p/mgmtbcknd"
	"github.com/ujwal-p/mgmtbcknd/internal/bckndtest"
	"github.com/ujwal-p/mgmtbcknd/wire"
)

// TestPortableReactorDrivesRealConnEndToEnd exercises the sweep-based
// fallback Reactor (reactor_other.go) against a real net.Conn pipe rather
// than the StubRawConn used elsewhere: a SubscrReq frame written on one end
// of a net.Pipe must be read, scanned, and dispatched all the way through to
// the registry binding the adapter's identity.
func TestPortableReactorDrivesRealConnEndToEnd(t *testing.T) {
	cfg := bcknd.NewConfig()
	subs := bcknd.NewSubscriptionRegistry([]bcknd.PatternTableEntry{
		{Pattern: "/", Clients: []bcknd.ClientID{bcknd.ClientStatic}},
	})
	cfgDB := bckndtest.NewFakeConfigDB()
	trxn := bckndtest.NewFakeTransactionModule()

	re, err := bcknd.NewReactor()
	require.NoError(t, err)
	reg := bcknd.NewRegistry(cfg, subs, cfgDB, trxn, re)

	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	raw, id := re.Accept(serverSide, cfg)
	reg.CreateAdapter(id, raw, "pipe-peer")

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- re.Run(stop) }()
	defer func() {
		close(stop)
		<-done
	}()

	payload, err := wire.Encode(wire.SubscrReq{ClientName: "staticd", Subscribe: false})
	require.NoError(t, err)
	framed, err := bcknd.EncodeFrame(payload)
	require.NoError(t, err)

	writeDone := make(chan error, 1)
	go func() {
		_, werr := clientSide.Write(framed)
		writeDone <- werr
	}()
	require.NoError(t, <-writeDone)

	assert.Eventually(t, func() bool {
		_, ok := reg.FindByName("staticd")
		return ok
	}, 2*time.Second, 5*time.Millisecond, "reactor should have scanned, dispatched, and identified the adapter")
}
