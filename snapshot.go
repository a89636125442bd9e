package bcknd

import "log/slog"

// handleConnInit is C7's CONN_INIT handler (spec.md §4.7): if a config
// transaction is already in flight, reschedule the same event rather than
// starting a second one; otherwise request creation of a config
// transaction, whose eventual materialization drives outbound CfgDataReqs
// through C5. Failure to create the transaction disconnects the adapter.
func (r *Registry) handleConnInit(a *Adapter) {
	if _, inProgress := r.trxn.ConfigTrxnInProgress(); inProgress {
		slog.Debug("bcknd: rescheduling CONN_INIT",
			slog.String("adapter", a.Name), slog.Any("error", ErrTrxnInProgress))
		r.sched.ArmConnInit(a, r.cfg.ConnInitDelay)
		return
	}
	if err := r.trxn.CreateTrxn(a); err != nil {
		slog.Error("bcknd: failed to create config transaction, disconnecting",
			slog.String("adapter", a.Name), slog.Any("error", err))
		a.Disconnect()
	}
}

// snapshotAdapter is C7's per-node walk: for each data node the config DB
// iterator yields under one of bases, consult C2 and, if the newly
// identified adapter's ClientId is subscribed for that path, stage a
// created change record in the adapter's pending change set. Traversal
// order follows the iterator's natural order; batching that sequence into
// CfgDataReqs is the transaction module's concern (spec.md §4.7).
//
// bases defaults to the tree root when the registration carried no
// explicit xpath_reg entries, which spec.md leaves implicit: a backend that
// registers without naming any subtrees is read as "interested in
// everything it is entitled to by the subscription table", not "interested
// in nothing".
func (r *Registry) snapshotAdapter(a *Adapter, xpaths []string) {
	bases := xpaths
	if len(bases) == 0 {
		bases = []string{"/"}
	}

	visit := func(path string, node []byte) {
		caps := r.subs.SubscribersFor(path)
		if caps[a.ID].Subscribed() {
			a.PendingCfgChanges = append(a.PendingCfgChanges, ChangeRecord{
				Path:    path,
				Created: true,
				Data:    node,
			})
		}
	}

	for _, base := range bases {
		if err := r.cfgIter.Iterate(base, visit); err != nil {
			slog.Warn("bcknd: config snapshot iteration failed",
				slog.String("adapter", a.Name), slog.String("base", base), slog.Any("error", err))
		}
	}
}
