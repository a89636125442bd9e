package bcknd

import "time"

// timerKind identifies which of C4's three timer-driven event classes a
// timerEvent belongs to (spec.md §4.4; CONN_READ/CONN_WRITE are socket
// readiness events, not timers, and so have no timerKind).
type timerKind int

const (
	timerConnInit timerKind = iota
	timerWritesOn
	timerProcMsg
)

// timerEvent is one armed timer. gen is checked against the owning
// adapter's current generation counter for its kind at fire time: a
// mismatch means the timer was superseded by a later re-arm or cancelled
// by disconnect, and the stale event is simply dropped (spec.md §4.4: "only
// one handle of each class is live per adapter at any time; re-arming
// replaces the previous"). Both reactor implementations (reactor_linux.go,
// reactor_other.go) share this type and the generation-counter scheme;
// only how they learn "time has passed" and "the socket is ready" differs.
type timerEvent struct {
	deadline time.Time
	gen      uint64
	kind     timerKind
	adapter  *Adapter
}

// timerHeap is a container/heap min-heap over timerEvent.deadline.
type timerHeap []*timerEvent

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(*timerEvent)) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// adapterGen tracks, per adapter, the current generation of each timer
// class (bumped on every arm and on cancellation) plus whether CONN_WRITE
// readiness is currently of interest. Both reactors key a map on *Adapter
// by this type.
type adapterGen struct {
	connInit, writesOn, procMsg uint64
	writeInterest               bool
}

func (g *adapterGen) bump(kind timerKind) uint64 {
	switch kind {
	case timerConnInit:
		g.connInit++
		return g.connInit
	case timerWritesOn:
		g.writesOn++
		return g.writesOn
	default:
		g.procMsg++
		return g.procMsg
	}
}

func (g *adapterGen) current(kind timerKind) uint64 {
	switch kind {
	case timerConnInit:
		return g.connInit
	case timerWritesOn:
		return g.writesOn
	default:
		return g.procMsg
	}
}

func (g *adapterGen) cancelAll() {
	g.connInit++
	g.writesOn++
	g.procMsg++
}
