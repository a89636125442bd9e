package bcknd

// This package treats the accept loop, the config database, and the
// configuration-transaction module as external collaborators (spec.md §6.2,
// §6.3): it consumes a small interface from each rather than owning their
// implementations, the same boundary the teacher drew around Driver/Factory
// in aznet.go for its storage backends.

// ConfigIterator walks the configuration database's tree, yielding every
// data node under basePath to visit in the iterator's natural order. The
// config snapshot driver (C7) is the only consumer.
type ConfigIterator interface {
	Iterate(basePath string, visit func(path string, node []byte)) error
}

// TransactionModule is the consumer-provided config-transaction machinery
// that message dispatch (C5) and the snapshot driver (C7) report into and
// request work from. Nothing in this package persists transaction state;
// correlation across calls is by trxn_id/batch_id and is the module's
// concern (spec.md §4.5).
type TransactionModule interface {
	// NotifyConn reports a connection transitioning up (identified) or down
	// (disconnected). The return value is advisory; dispatch does not act on
	// a false result differently than a true one (spec.md provides no
	// disposition for a refused connection notice).
	NotifyConn(a *Adapter, up bool) bool

	NotifyTrxnReply(a *Adapter, trxnID uint64, create, success bool)
	NotifyCfgDataReply(a *Adapter, trxnID, batchID uint64, success bool, errText string)
	NotifyValidateReply(a *Adapter, trxnID uint64, batchIDs []uint64, success bool, errText string)
	NotifyApplyReply(a *Adapter, trxnID uint64, batchIDs []uint64, success bool, errText string)

	// ConfigTrxnInProgress reports an in-flight config transaction's session
	// id, if any. CONN_INIT reschedules itself rather than creating a
	// second transaction when one is already running (spec.md §4.7).
	ConfigTrxnInProgress() (sessionID uint64, inProgress bool)

	// CreateTrxn requests a new config transaction for a newly identified
	// adapter. Failure disconnects the adapter (spec.md §7).
	CreateTrxn(a *Adapter) error
}
