package bcknd

import (
	"fmt"
	"io"
	"log/slog"
)

// Registry is the registry façade of spec.md §4.6 (C6): lifecycle entry
// points for adapters, plus diagnostic sinks over the subscription
// registry. It owns the adapter list and by-id/by-fd indices; per spec.md
// §5 these are only ever touched from the single reactor thread, so no
// lock guards them (the same single-writer assumption the teacher's
// Listener.conns sync.Map relaxes only because aznet's accept loop runs on
// its own goroutine — this subsystem has exactly one).
type Registry struct {
	cfg     *Config
	subs    *SubscriptionRegistry
	cfgIter ConfigIterator
	trxn    TransactionModule
	sched   Scheduler

	byFd   map[int]*Adapter
	byID   [MaxClients]*Adapter
	list   []*Adapter
	closed bool
}

// NewRegistry builds an empty registry bound to its collaborators. subs,
// cfgIter, trxn, and sched must all be non-nil; cfgIter may be a no-op
// implementation if a deployment has no snapshot data to stage.
func NewRegistry(cfg *Config, subs *SubscriptionRegistry, cfgIter ConfigIterator, trxn TransactionModule, sched Scheduler) *Registry {
	return &Registry{
		cfg:     cfg,
		subs:    subs,
		cfgIter: cfgIter,
		trxn:    trxn,
		sched:   sched,
		byFd:    make(map[int]*Adapter),
	}
}

// CreateAdapter is C6's create_adapter: if an adapter already exists for
// fd, return it; otherwise construct one, arm CONN_READ, schedule
// CONN_INIT, and append it to the list (spec.md §4.6).
func (r *Registry) CreateAdapter(fd int, conn RawConn, peerAddr string) *Adapter {
	if existing, ok := r.byFd[fd]; ok {
		return existing
	}
	a := newAdapter(fd, conn, peerAddr, r.cfg, r.sched, r.trxn, r)
	r.byFd[fd] = a
	r.list = append(r.list, a)

	r.sched.ArmRead(a)
	r.sched.ArmConnInit(a, r.cfg.ConnInitDelay)

	slog.Info("bcknd: adapter accepted",
		slog.String("peer", peerAddr), slog.Int("fd", fd), slog.String("session", a.SessionID))
	return a
}

// FindByID is C6's find_by_id.
func (r *Registry) FindByID(id ClientID) (*Adapter, bool) {
	if id < 0 || int(id) >= MaxClients {
		return nil, false
	}
	a := r.byID[id]
	return a, a != nil
}

// FindByName is C6's find_by_name: a linear scan of the live list, mirroring
// spec.md's "by exact name match" resolution without assuming names are
// indexed (only ClientId is).
func (r *Registry) FindByName(name string) (*Adapter, bool) {
	for _, a := range r.list {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// StatusDump is C6's status_dump: one line per adapter with
// {name, fd, id, session, refcount, tx, rx}.
func (r *Registry) StatusDump(sink io.Writer) {
	for _, a := range r.list {
		fmt.Fprintf(sink, "%s fd=%d id=%s session=%s refcount=%d tx=%d rx=%d\n",
			a.Name, a.Fd(), a.ID, a.SessionID, a.Refcount(), a.NumMsgTx(), a.NumMsgRx())
	}
}

// DumpRegistry is C6's dump_registry, delegating to C2.
func (r *Registry) DumpRegistry(sink io.Writer) { r.subs.DumpRegistry(sink) }

// DumpSubscribers is C6's dump_subscribers, delegating to C2.
func (r *Registry) DumpSubscribers(sink io.Writer, path string) { r.subs.DumpSubscribers(sink, path) }

// Shutdown is C6's shutdown: disconnect every adapter, which cancels their
// scheduler handles and drops the registry's reference on each (spec.md
// §4.6: "unlock ... which, combined with cancellations, tears the world
// down"). Safe to call more than once.
func (r *Registry) Shutdown() {
	if r.closed {
		return
	}
	r.closed = true
	victims := make([]*Adapter, len(r.list))
	copy(victims, r.list)
	for _, a := range victims {
		a.Disconnect()
	}
}

// removeAdapter drops a from the by-id index, the by-fd index, and the
// list. Called once, from Adapter.Disconnect, never directly.
func (r *Registry) removeAdapter(a *Adapter) {
	delete(r.byFd, a.Fd())
	if a.ID >= 0 && int(a.ID) < MaxClients && r.byID[a.ID] == a {
		r.byID[a.ID] = nil
	}
	for i, cur := range r.list {
		if cur == a {
			r.list = append(r.list[:i], r.list[i+1:]...)
			break
		}
	}
}

// identify is C5's SubscrReq handling, delegated here because it mutates
// registry-owned indices (spec.md §4.5): resolve client_name against the
// compile-time table; on success, forcibly disconnect any existing adapter
// bearing the same ClientId (spec.md §3 invariant 1, scenario S5), bind the
// new adapter's identity, register it, notify the transaction module it is
// up, and trigger the config snapshot driver (C7). On an unresolved name,
// disconnect the registering adapter instead.
func (r *Registry) identify(a *Adapter, name string, subscribe bool, xpaths []string) {
	id, ok := ClientIDFromName(name)
	if !ok {
		slog.Warn("bcknd: registration names unknown client, disconnecting",
			slog.String("name", name), slog.Int("fd", a.Fd()), slog.Any("error", ErrUnknownClient))
		a.Disconnect()
		return
	}

	if prior := r.byID[id]; prior != nil && prior != a {
		slog.Info("bcknd: re-registration, evicting prior adapter",
			slog.String("name", name), slog.Int("old_fd", prior.Fd()), slog.Int("new_fd", a.Fd()))
		prior.Disconnect()
	}

	a.Name = name
	a.ID = id
	r.byID[id] = a

	r.trxn.NotifyConn(a, true)

	label := "register"
	if !subscribe {
		label = "deregister"
	}
	slog.Debug("bcknd: bound identity, snapshotting config", slog.String("name", name), slog.String("mode", label))

	// Binding identity always triggers the config snapshot walk (spec.md §2:
	// "A registration message causes C3 to bind its identity, which triggers
	// C7 to snapshot..."); subscribe only selects the debug label above, the
	// same as the original's register/deregister log line — it never gates
	// whether the snapshot runs.
	r.snapshotAdapter(a, xpaths)
}
