//go:build linux

package bcknd

import (
	"container/heap"
	"time"

	"golang.org/x/sys/unix"
)

// fdRawConn is the Linux RawConn: direct non-blocking read/write syscalls
// on a socket file descriptor, the same EAGAIN-sentinel convention the
// teacher's aznet.Conn expects from its Transport.ReadRaw (there mapped to
// ErrNoData; here to ErrWouldBlock).
type fdRawConn struct {
	fd int
}

func (c *fdRawConn) ReadNonBlock(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func (c *fdRawConn) WriteNonBlock(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func (c *fdRawConn) Close() error { return unix.Close(c.fd) }
func (c *fdRawConn) Fd() int      { return c.fd }

// Reactor is C4's binding to epoll: one epoll instance, level-triggered
// EPOLLIN registered for the adapter's lifetime, EPOLLOUT toggled on and
// off as CONN_WRITE interest changes, and a generation-tagged timer
// min-heap standing in for CONN_INIT / WRITES_ON / PROC_MSG. It implements
// Scheduler. Every method is only ever called from the goroutine running
// Run, matching spec.md §5's single reactor thread with no locks on core
// state.
type Reactor struct {
	epfd   int
	fds    map[int]*Adapter
	gens   map[*Adapter]*adapterGen
	timers timerHeap
}

// NewReactor creates a Linux epoll-backed Reactor.
func NewReactor() (*Reactor, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Reactor{epfd: fd, fds: make(map[int]*Adapter), gens: make(map[*Adapter]*adapterGen)}, nil
}

// Close releases the epoll instance.
func (re *Reactor) Close() error { return unix.Close(re.epfd) }

// Accept applies non-blocking mode and the configured socket buffer sizes
// to fd and returns the RawConn C3 reads/writes through (spec.md §4.6:
// "set sockopts and non-blocking mode"). EPOLLIN registration happens on
// the first ArmRead, once the caller has built the owning Adapter.
func (re *Reactor) Accept(fd int, cfg *Config) (RawConn, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBufSize)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBufSize)
	return &fdRawConn{fd: fd}, nil
}

func (re *Reactor) genFor(a *Adapter) *adapterGen {
	g, ok := re.gens[a]
	if !ok {
		g = &adapterGen{}
		re.gens[a] = g
	}
	return g
}

// ArmRead registers EPOLLIN for a's fd on first call; level-triggered
// readiness means every later call is a no-op (spec.md §4.4: "only one
// handle of each class is live ... at any time").
func (re *Reactor) ArmRead(a *Adapter) {
	if _, already := re.fds[a.Fd()]; already {
		return
	}
	re.fds[a.Fd()] = a
	_ = unix.EpollCtl(re.epfd, unix.EPOLL_CTL_ADD, a.Fd(), &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(a.Fd())})
}

// ArmWrite adds EPOLLOUT to a's interest set if not already present.
func (re *Reactor) ArmWrite(a *Adapter) {
	g := re.genFor(a)
	if g.writeInterest {
		return
	}
	g.writeInterest = true
	_ = unix.EpollCtl(re.epfd, unix.EPOLL_CTL_MOD, a.Fd(), &unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLOUT, Fd: int32(a.Fd())})
}

// disarmWrite drops EPOLLOUT interest once the outbox has drained, so a
// level-triggered "always writable" socket does not spin the loop.
func (re *Reactor) disarmWrite(a *Adapter) {
	g := re.genFor(a)
	if !g.writeInterest {
		return
	}
	g.writeInterest = false
	_ = unix.EpollCtl(re.epfd, unix.EPOLL_CTL_MOD, a.Fd(), &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(a.Fd())})
}

func (re *Reactor) ArmConnInit(a *Adapter, after time.Duration) {
	g := re.genFor(a)
	heap.Push(&re.timers, &timerEvent{deadline: time.Now().Add(after), gen: g.bump(timerConnInit), kind: timerConnInit, adapter: a})
}

func (re *Reactor) ArmWritesOn(a *Adapter, after time.Duration) {
	g := re.genFor(a)
	heap.Push(&re.timers, &timerEvent{deadline: time.Now().Add(after), gen: g.bump(timerWritesOn), kind: timerWritesOn, adapter: a})
}

func (re *Reactor) ArmProcMsg(a *Adapter, after time.Duration) {
	g := re.genFor(a)
	heap.Push(&re.timers, &timerEvent{deadline: time.Now().Add(after), gen: g.bump(timerProcMsg), kind: timerProcMsg, adapter: a})
}

// CancelAll bumps every generation counter (invalidating any timer still
// in the heap) and removes a's fd from epoll (spec.md §4.4: "handles are
// cancelled synchronously in disconnect").
func (re *Reactor) CancelAll(a *Adapter) {
	if g, ok := re.gens[a]; ok {
		g.cancelAll()
		delete(re.gens, a)
	}
	delete(re.fds, a.Fd())
	_ = unix.EpollCtl(re.epfd, unix.EPOLL_CTL_DEL, a.Fd(), nil)
}

func (re *Reactor) fireExpiredTimers() {
	now := time.Now()
	for re.timers.Len() > 0 {
		top := re.timers[0]
		if top.deadline.After(now) {
			return
		}
		ev := heap.Pop(&re.timers).(*timerEvent)
		g, ok := re.gens[ev.adapter]
		if !ok || g.current(ev.kind) != ev.gen {
			continue
		}
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

func (re *Reactor) nextTimeoutMS() int {
	const idleMS = 1000
	if re.timers.Len() == 0 {
		return idleMS
	}
	d := time.Until(re.timers[0].deadline)
	if d <= 0 {
		return 0
	}
	ms := int(d.Milliseconds())
	if ms > idleMS {
		return idleMS
	}
	if ms < 1 {
		return 1
	}
	return ms
}

// Run drives the reactor until stop is closed: fire due timers, wait for
// socket readiness bounded by the next timer deadline, dispatch, repeat.
func (re *Reactor) Run(stop <-chan struct{}) error {
	events := make([]unix.EpollEvent, 64)
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		re.fireExpiredTimers()

		n, err := unix.EpollWait(re.epfd, events, re.nextTimeoutMS())
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			a := re.fds[int(ev.Fd)]
			if a == nil {
				continue
			}
			if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				a.Disconnect()
				continue
			}
			if ev.Events&unix.EPOLLIN != 0 {
				a.OnReadable()
			}
			if a.Disconnected() {
				continue
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				a.OnWritable()
				if len(a.outbox) == 0 && !a.writesPaused {
					re.disarmWrite(a)
				}
			}
		}

		re.fireExpiredTimers()
	}
}
