package bcknd

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrWouldBlock is the portable stand-in for EAGAIN/EWOULDBLOCK: C4's
// RawConn implementations return it from ReadNonBlock/WriteNonBlock to mean
// "no progress possible right now, rearm and wait", matching the teacher's
// ErrNoData sentinel for its own non-blocking transport loop in aznet.go.
var ErrWouldBlock = errors.New("bcknd: operation would block")

// RawConn is C4's non-blocking socket primitive, the boundary C3 calls
// through rather than touching file descriptors or epoll directly. The
// Linux reactor backs it with raw syscalls on the fd; the portable fallback
// backs it with a net.Conn (see reactor_linux.go / reactor_other.go).
type RawConn interface {
	ReadNonBlock(p []byte) (n int, err error)
	WriteNonBlock(p []byte) (n int, err error)
	Close() error
	Fd() int
}

// Scheduler is C3's view of C4: arm or cancel one of the five per-adapter
// event classes (spec.md §4.4). Only one handle of a given class is live at
// a time; re-arming replaces the previous handle.
type Scheduler interface {
	ArmConnInit(a *Adapter, after time.Duration)
	ArmRead(a *Adapter)
	ArmWrite(a *Adapter)
	ArmWritesOn(a *Adapter, after time.Duration)
	ArmProcMsg(a *Adapter, after time.Duration)
	CancelAll(a *Adapter)
}

type outFrame struct {
	buf []byte
	off int
}

// Adapter is the per-connection record of spec.md §3/§4.3 (C3): identity,
// socket, buffered inbound/outbound queues, scheduler handles, and lifecycle
// refcount. All methods run on the single reactor thread (spec.md §5); none
// take locks on their own fields.
type Adapter struct {
	Name      string
	ID        ClientID
	PeerAddr  string
	SessionID string

	fd   int
	conn RawConn

	scratch []byte
	inbox   [][]byte

	outbox       []*outFrame
	writesPaused bool

	refcount int32 // atomic

	PendingCfgChanges []ChangeRecord

	numMsgTx int64 // atomic
	numMsgRx int64 // atomic

	disconnectOnce sync.Once
	disconnected   bool

	scheduler Scheduler
	trxn      TransactionModule
	cfg       *Config
	registry  *Registry

	readChunk []byte
}

// newAdapter builds an Adapter in the unidentified state (id=MAX,
// refcount=1), per spec.md §3 Lifecycle. Only Registry.CreateAdapter calls
// this; everything else goes through the registry façade.
func newAdapter(fd int, conn RawConn, peerAddr string, cfg *Config, sched Scheduler, trxn TransactionModule, reg *Registry) *Adapter {
	a := &Adapter{
		Name:      unknownName(fd),
		ID:        ClientMax,
		PeerAddr:  peerAddr,
		SessionID: uuid.New().String(),
		fd:        fd,
		conn:      conn,
		refcount:  1,
		cfg:       cfg,
		scheduler: sched,
		trxn:      trxn,
		registry:  reg,
		readChunk: make([]byte, cfg.RecvBufSize),
	}
	return a
}

func unknownName(fd int) string {
	return "Unknown-FD-" + itoa(fd)
}

// Fd returns the adapter's socket descriptor.
func (a *Adapter) Fd() int { return a.fd }

// Refcount returns the adapter's current reference count.
func (a *Adapter) Refcount() int32 { return atomic.LoadInt32(&a.refcount) }

// NumMsgTx returns the number of payloads enqueued for send.
func (a *Adapter) NumMsgTx() int64 { return atomic.LoadInt64(&a.numMsgTx) }

// NumMsgRx returns the number of frames successfully scanned off the wire.
func (a *Adapter) NumMsgRx() int64 { return atomic.LoadInt64(&a.numMsgRx) }

// Disconnected reports whether Disconnect has already run.
func (a *Adapter) Disconnected() bool { return a.disconnected }

// OnReadable is C3's on-readable handler (spec.md §4.3): fill the scratch
// buffer via a non-blocking read loop bounded by READ_BURST iterations,
// then rescan it for complete frames via C1.
func (a *Adapter) OnReadable() {
	if a.disconnected {
		return
	}
	for i := 0; i < a.cfg.ReadBurst; i++ {
		n, err := a.conn.ReadNonBlock(a.readChunk)
		if n > 0 {
			a.scratch = append(a.scratch, a.readChunk[:n]...)
			if a.cfg.Metrics != nil {
				a.cfg.Metrics.IncrementBytesReceived(int64(n))
			}
		}
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				break
			}
			a.Disconnect()
			return
		}
		if n == 0 {
			// Peer closed (spec.md §7: read=0 -> disconnect).
			a.Disconnect()
			return
		}
		if n < len(a.readChunk) {
			// Short read: the socket is very likely drained for now: avoid
			// spending the rest of the burst on calls that will just EAGAIN.
			break
		}
	}

	got := 0
	consumed, ferr := ScanFrames(a.scratch, func(payload []byte) {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		a.inbox = append(a.inbox, cp)
		atomic.AddInt64(&a.numMsgRx, 1)
		if a.cfg.Metrics != nil {
			a.cfg.Metrics.IncrementFramesReceived()
			a.cfg.Metrics.IncrementMsgRx()
		}
		got++
	})
	a.scratch = append(a.scratch[:0], a.scratch[consumed:]...)

	if ferr != nil {
		var fe *FrameError
		if errors.As(ferr, &fe) && fe.Fatal {
			// Frames completed ahead of the corrupt marker are still
			// dispatched, in arrival order, before the adapter disconnects.
			for len(a.inbox) > 0 && !a.disconnected {
				payload := a.inbox[0]
				a.inbox = a.inbox[1:]
				dispatchFrame(a, payload)
			}
			a.Disconnect()
			return
		}
	}

	if got > 0 {
		a.scheduler.ArmProcMsg(a, a.cfg.ProcDelay)
	}
}

// OnWritable is C3's on-writable handler (spec.md §4.3): drain the outbox
// in order, up to WRITE_BURST frames, then pause and schedule a resume
// timer regardless of whether the outbox emptied exactly on the last frame
// of the burst (spec.md §9 Open Question, preserved as-is).
func (a *Adapter) OnWritable() {
	if a.disconnected {
		return
	}
	for i := 0; i < a.cfg.WriteBurst; i++ {
		if len(a.outbox) == 0 {
			return
		}
		f := a.outbox[0]
		n, err := a.conn.WriteNonBlock(f.buf[f.off:])
		if n > 0 {
			f.off += n
			if a.cfg.Metrics != nil {
				a.cfg.Metrics.IncrementBytesSent(int64(n))
			}
		}
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				a.scheduler.ArmWrite(a)
				return
			}
			a.Disconnect()
			return
		}
		if f.off >= len(f.buf) {
			a.outbox = a.outbox[1:]
			if a.cfg.Metrics != nil {
				a.cfg.Metrics.IncrementFramesSent()
			}
			continue
		}
		// Partial write: resume from the residual offset on the next tick.
		a.scheduler.ArmWrite(a)
		return
	}
	a.writesPaused = true
	a.scheduler.ArmWritesOn(a, a.cfg.WriteResumeDelay)
}

// OnWritesOn is the WRITES_ON timer handler: clear the pause flag and, if
// work remains, re-arm writable (spec.md §4.3 "Writes-paused flip").
func (a *Adapter) OnWritesOn() {
	if a.disconnected {
		return
	}
	a.writesPaused = false
	if len(a.outbox) > 0 {
		a.scheduler.ArmWrite(a)
	}
}

// ProcessMessages is the PROC_MSG timer handler: pop up to PROC_BURST
// frames from inbox, decode and dispatch each via C5, and re-arm if frames
// remain (spec.md §4.3).
func (a *Adapter) ProcessMessages() {
	if a.disconnected {
		return
	}
	n := 0
	for n < a.cfg.ProcBurst && len(a.inbox) > 0 {
		payload := a.inbox[0]
		a.inbox = a.inbox[1:]
		n++
		dispatchFrame(a, payload)
	}
	if len(a.inbox) > 0 {
		a.scheduler.ArmProcMsg(a, a.cfg.ProcDelay)
	}
}

// EnqueueOut is C3's enqueue-out operation: frame the payload via C1,
// append it to outbox, and arm writable unless writes are currently
// paused. num_msg_tx is incremented here, at enqueue, not at successful
// send (spec.md §9 Open Question, preserved as-is).
func (a *Adapter) EnqueueOut(payload []byte) error {
	if a.disconnected {
		return ErrAdapterClosed
	}
	framed, err := EncodeFrame(payload)
	if err != nil {
		// Oversize outbound payload: drop-with-error, do not disconnect.
		return err
	}
	a.outbox = append(a.outbox, &outFrame{buf: framed})
	atomic.AddInt64(&a.numMsgTx, 1)
	if a.cfg.Metrics != nil {
		a.cfg.Metrics.IncrementMsgTx()
	}
	if !a.writesPaused {
		a.scheduler.ArmWrite(a)
	}
	return nil
}

// Disconnect is C3's disconnect operation (spec.md §4.3, §7): idempotent,
// closes the socket best-effort, cancels every scheduler handle, notifies
// the transaction module of down, removes the adapter from the registry's
// indices, and drops the registry's reference.
func (a *Adapter) Disconnect() {
	a.disconnectOnce.Do(func() {
		a.disconnected = true
		_ = a.conn.Close()
		if a.scheduler != nil {
			a.scheduler.CancelAll(a)
		}
		if a.trxn != nil {
			a.trxn.NotifyConn(a, false)
		}
		if a.registry != nil {
			a.registry.removeAdapter(a)
		}
		if a.cfg != nil && a.cfg.Metrics != nil {
			a.cfg.Metrics.IncrementDisconnects()
		}
		atomic.StoreInt32(&a.refcount, 0)
	})
}

// OnConnInit is the CONN_INIT timer handler, delegated to the registry's
// config snapshot driver (C7); see snapshot.go.
func (a *Adapter) OnConnInit() {
	if a.disconnected {
		return
	}
	a.registry.handleConnInit(a)
}

func itoa(n int) string { return strconv.Itoa(n) }
