//go:build !linux

package bcknd

import (
	"container/heap"
	"net"
	"sync"
	"time"
)

// netRawConn is the portable RawConn fallback: a net.Conn driven with
// very short read/write deadlines to approximate non-blocking EAGAIN
// semantics, since Go's net package has no portable non-blocking mode.
// A deadline timeout maps to ErrWouldBlock; any other error passes
// through unchanged.
type netRawConn struct {
	conn net.Conn
}

func (c *netRawConn) ReadNonBlock(p []byte) (int, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Millisecond))
	n, err := c.conn.Read(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

func (c *netRawConn) WriteNonBlock(p []byte) (int, error) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Millisecond))
	n, err := c.conn.Write(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

func (c *netRawConn) Close() error { return c.conn.Close() }

// Fd has no portable meaning for an arbitrary net.Conn; callers index
// adapters by the synthetic id Accept assigns instead.
func (c *netRawConn) Fd() int { return -1 }

// Reactor is the portable fallback binding for C4 on platforms without
// epoll: a single goroutine sweeps every registered adapter each tick in
// place of true readiness notification, backing off between sweeps with
// the adaptive-poll idiom ported from the teacher (pollbackoff.go) when a
// sweep finds nothing to do. It implements the same Scheduler contract and
// the same single-threaded cooperative semantics as the Linux epoll
// reactor (spec.md §5); the host reactor is named an external collaborator
// in spec.md §1, so trading syscall efficiency for portability here does
// not change any core semantics.
type Reactor struct {
	mu       sync.Mutex
	nextID   int
	adapters map[int]*Adapter
	gens     map[*Adapter]*adapterGen
	timers   timerHeap
}

// NewReactor creates the portable fallback Reactor.
func NewReactor() (*Reactor, error) {
	return &Reactor{adapters: make(map[int]*Adapter), gens: make(map[*Adapter]*adapterGen)}, nil
}

// Close is a no-op; the fallback reactor owns no kernel resource of its own.
func (re *Reactor) Close() error { return nil }

// Accept wraps conn as a RawConn and mints a synthetic id standing in for
// a socket fd, since there is no portable way to extract and directly
// multiplex a real kernel descriptor from an arbitrary net.Conn.
func (re *Reactor) Accept(conn net.Conn, cfg *Config) (RawConn, int) {
	re.mu.Lock()
	defer re.mu.Unlock()
	re.nextID++
	return &netRawConn{conn: conn}, re.nextID
}

func (re *Reactor) genFor(a *Adapter) *adapterGen {
	g, ok := re.gens[a]
	if !ok {
		g = &adapterGen{}
		re.gens[a] = g
	}
	return g
}

func (re *Reactor) ArmRead(a *Adapter) {
	re.mu.Lock()
	defer re.mu.Unlock()
	re.adapters[a.Fd()] = a
}

func (re *Reactor) ArmWrite(a *Adapter) {
	re.mu.Lock()
	defer re.mu.Unlock()
	re.genFor(a).writeInterest = true
}

func (re *Reactor) ArmConnInit(a *Adapter, after time.Duration) {
	re.mu.Lock()
	defer re.mu.Unlock()
	g := re.genFor(a)
	heap.Push(&re.timers, &timerEvent{deadline: time.Now().Add(after), gen: g.bump(timerConnInit), kind: timerConnInit, adapter: a})
}

func (re *Reactor) ArmWritesOn(a *Adapter, after time.Duration) {
	re.mu.Lock()
	defer re.mu.Unlock()
	g := re.genFor(a)
	heap.Push(&re.timers, &timerEvent{deadline: time.Now().Add(after), gen: g.bump(timerWritesOn), kind: timerWritesOn, adapter: a})
}

func (re *Reactor) ArmProcMsg(a *Adapter, after time.Duration) {
	re.mu.Lock()
	defer re.mu.Unlock()
	g := re.genFor(a)
	heap.Push(&re.timers, &timerEvent{deadline: time.Now().Add(after), gen: g.bump(timerProcMsg), kind: timerProcMsg, adapter: a})
}

func (re *Reactor) CancelAll(a *Adapter) {
	re.mu.Lock()
	defer re.mu.Unlock()
	if g, ok := re.gens[a]; ok {
		g.cancelAll()
		delete(re.gens, a)
	}
	delete(re.adapters, a.Fd())
}

// fireExpiredTimers pops and runs every timer whose deadline has passed,
// skipping stale (superseded or cancelled) events via the generation
// check. Returns whether anything fired.
func (re *Reactor) fireExpiredTimers() bool {
	fired := false
	for {
		re.mu.Lock()
		if re.timers.Len() == 0 || re.timers[0].deadline.After(time.Now()) {
			re.mu.Unlock()
			return fired
		}
		ev := heap.Pop(&re.timers).(*timerEvent)
		g, ok := re.gens[ev.adapter]
		stale := !ok || g.current(ev.kind) != ev.gen
		re.mu.Unlock()
		if stale {
			continue
		}
		fired = true
		switch ev.kind {
		case timerConnInit:
			ev.adapter.OnConnInit()
		case timerWritesOn:
			ev.adapter.OnWritesOn()
		case timerProcMsg:
			ev.adapter.ProcessMessages()
		}
	}
}

// Run sweeps every registered adapter once per tick: fire due timers,
// poll each live adapter for read progress, then write progress if it has
// outstanding CONN_WRITE interest, backing off when a full sweep is idle.
func (re *Reactor) Run(stop <-chan struct{}) error {
	poll := newAdaptivePoll(time.Millisecond, 20*time.Millisecond)
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		active := re.fireExpiredTimers()

		re.mu.Lock()
		snapshot := make([]*Adapter, 0, len(re.adapters))
		for _, a := range re.adapters {
			snapshot = append(snapshot, a)
		}
		re.mu.Unlock()

		for _, a := range snapshot {
			if a.Disconnected() {
				continue
			}
			a.OnReadable()
			if a.Disconnected() {
				continue
			}

			re.mu.Lock()
			wantWrite := re.genFor(a).writeInterest && len(a.outbox) > 0
			re.mu.Unlock()
			if !wantWrite {
				continue
			}

			active = true
			a.OnWritable()

			re.mu.Lock()
			if len(a.outbox) == 0 {
				re.genFor(a).writeInterest = false
			}
			re.mu.Unlock()
		}

		if active {
			poll.reset()
		} else {
			poll.sleep()
		}
	}
}
