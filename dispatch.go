package bcknd

import (
	"log/slog"

	"github.com/ujwal-p/mgmtbcknd/wire"
)

// dispatchFrame is C5's inbound half: decode one frame payload into its
// protocol message and route it. A decode failure is logged and the frame
// is simply dropped; per spec.md §7 this does not disconnect the adapter
// ("Decode failure on a single frame | dispatch | log, continue with next
// frame").
func dispatchFrame(a *Adapter, payload []byte) {
	msg, err := wire.Decode(payload)
	if err != nil {
		slog.Warn("bcknd: dropping undecodable frame",
			slog.String("adapter", a.Name), slog.Int("fd", a.fd), slog.Any("error", err))
		return
	}

	switch m := msg.(type) {
	case wire.SubscrReq:
		a.registry.identify(a, m.ClientName, m.Subscribe, m.XPathReg)

	case wire.TrxnReply:
		a.trxn.NotifyTrxnReply(a, m.TrxnID, m.Create, m.Success)

	case wire.CfgDataReply:
		a.trxn.NotifyCfgDataReply(a, m.TrxnID, m.BatchID, m.Success, m.ErrorText)

	case wire.CfgValidateReply:
		a.trxn.NotifyValidateReply(a, m.TrxnID, m.BatchIDs, m.Success, m.ErrorText)

	case wire.CfgApplyReply:
		a.trxn.NotifyApplyReply(a, m.TrxnID, m.BatchIDs, m.Success, m.ErrorText)

	case wire.GetReply, wire.CfgCmdReply, wire.ShowCmdReply, wire.NotifyData:
		// Accepted, currently dropped (spec.md §4.5: reserved for future
		// behavior). The case is present for exhaustiveness even though it
		// does nothing, per spec.md §9's tagged-union design note.

	default:
		// Any request-direction variant (TrxnReq, CfgDataReq, ...) arriving
		// inbound is protocol misuse, not corruption: ignore, do not close
		// (spec.md §4.5).
		slog.Debug("bcknd: ignoring request-direction message received inbound",
			slog.String("adapter", a.Name), slog.Any("tag", msg.Tag()))
	}
}

// sendEncoded is the shared outbound path: encode msg via the wire codec
// and enqueue it through C3.
func sendEncoded(a *Adapter, msg wire.Message) error {
	payload, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	return a.EnqueueOut(payload)
}

// SendTrxnReq builds and enqueues a TrxnReq (spec.md §4.5/§6.3).
func SendTrxnReq(a *Adapter, trxnID uint64, create bool) error {
	return sendEncoded(a, wire.TrxnReq{TrxnID: trxnID, Create: create})
}

// SendCfgDataReq builds and enqueues a CfgDataReq carrying one batch.
func SendCfgDataReq(a *Adapter, trxnID, batchID uint64, items []wire.DataReqItem, endOfData bool) error {
	return sendEncoded(a, wire.CfgDataReq{
		TrxnID:    trxnID,
		BatchID:   batchID,
		DataReq:   items,
		EndOfData: endOfData,
	})
}

// SendCfgValidateReq builds and enqueues a CfgValidateReq over one or more
// batches.
func SendCfgValidateReq(a *Adapter, trxnID uint64, batchIDs []uint64) error {
	return sendEncoded(a, wire.CfgValidateReq{TrxnID: trxnID, BatchIDs: batchIDs})
}

// SendCfgApplyReq builds and enqueues a CfgApplyReq.
func SendCfgApplyReq(a *Adapter, trxnID uint64) error {
	return sendEncoded(a, wire.CfgApplyReq{TrxnID: trxnID})
}
