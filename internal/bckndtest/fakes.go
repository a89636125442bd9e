// Package bckndtest provides in-memory stand-ins for the configuration
// database and the configuration-transaction module: the two collaborators
// spec.md §1 names as external to this subsystem. Tests, and the demo
// daemon's default wiring, use these instead of a real mgmtd transaction
// engine.
package bckndtest

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ujwal-p/mgmtbcknd"
)

// FakeConfigDB is a ConfigIterator backed by an in-memory path->data map,
// grounded on the same in-memory-map-as-datastore shape the teacher uses
// for its buffersPool scratch space, generalized here to a whole tree
// rather than a byte scratchpad.
type FakeConfigDB struct {
	mu    sync.Mutex
	nodes map[string][]byte
}

// NewFakeConfigDB builds an empty database.
func NewFakeConfigDB() *FakeConfigDB {
	return &FakeConfigDB{nodes: make(map[string][]byte)}
}

// Put stages a data node at path, visible to subsequent Iterate calls.
func (db *FakeConfigDB) Put(path string, data []byte) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nodes[path] = data
}

// Iterate implements bcknd.ConfigIterator: visit every stored node whose
// path has basePath as a prefix (or every node, if basePath is "/" or
// empty), in lexical path order for determinism.
func (db *FakeConfigDB) Iterate(basePath string, visit func(path string, node []byte)) error {
	db.mu.Lock()
	paths := make([]string, 0, len(db.nodes))
	for p := range db.nodes {
		if matchesBase(basePath, p) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	snapshot := make(map[string][]byte, len(paths))
	for _, p := range paths {
		snapshot[p] = db.nodes[p]
	}
	db.mu.Unlock()

	for _, p := range paths {
		visit(p, snapshot[p])
	}
	return nil
}

func matchesBase(base, path string) bool {
	if base == "" || base == "/" {
		return true
	}
	if len(path) < len(base) {
		return false
	}
	return path[:len(base)] == base
}

// FakeTransactionModule is a TransactionModule that records every
// notification it receives and answers CreateTrxn/ConfigTrxnInProgress
// deterministically, for use by tests exercising C5/C7 without a real
// transaction engine.
type FakeTransactionModule struct {
	mu sync.Mutex

	nextTrxnID uint64
	inProgress bool

	ConnEvents      []ConnEvent
	TrxnReplies     []TrxnReplyEvent
	CfgDataReplies  []CfgDataReplyEvent
	ValidateReplies []ValidateReplyEvent
	ApplyReplies    []ApplyReplyEvent

	// FailCreate, if set, makes CreateTrxn return an error instead of
	// succeeding; used to exercise the CONN_INIT failure disconnect path.
	FailCreate bool
}

type ConnEvent struct {
	Adapter *bcknd.Adapter
	Up      bool
}

type TrxnReplyEvent struct {
	Adapter        *bcknd.Adapter
	TrxnID         uint64
	Create, Success bool
}

type CfgDataReplyEvent struct {
	Adapter            *bcknd.Adapter
	TrxnID, BatchID    uint64
	Success            bool
	ErrorText          string
}

type ValidateReplyEvent struct {
	Adapter   *bcknd.Adapter
	TrxnID    uint64
	BatchIDs  []uint64
	Success   bool
	ErrorText string
}

type ApplyReplyEvent struct {
	Adapter   *bcknd.Adapter
	TrxnID    uint64
	BatchIDs  []uint64
	Success   bool
	ErrorText string
}

// NewFakeTransactionModule builds an idle fake with no transaction in
// progress.
func NewFakeTransactionModule() *FakeTransactionModule {
	return &FakeTransactionModule{}
}

func (f *FakeTransactionModule) NotifyConn(a *bcknd.Adapter, up bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConnEvents = append(f.ConnEvents, ConnEvent{Adapter: a, Up: up})
	return true
}

func (f *FakeTransactionModule) NotifyTrxnReply(a *bcknd.Adapter, trxnID uint64, create, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TrxnReplies = append(f.TrxnReplies, TrxnReplyEvent{Adapter: a, TrxnID: trxnID, Create: create, Success: success})
}

func (f *FakeTransactionModule) NotifyCfgDataReply(a *bcknd.Adapter, trxnID, batchID uint64, success bool, errText string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CfgDataReplies = append(f.CfgDataReplies, CfgDataReplyEvent{Adapter: a, TrxnID: trxnID, BatchID: batchID, Success: success, ErrorText: errText})
}

func (f *FakeTransactionModule) NotifyValidateReply(a *bcknd.Adapter, trxnID uint64, batchIDs []uint64, success bool, errText string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ValidateReplies = append(f.ValidateReplies, ValidateReplyEvent{Adapter: a, TrxnID: trxnID, BatchIDs: batchIDs, Success: success, ErrorText: errText})
}

func (f *FakeTransactionModule) NotifyApplyReply(a *bcknd.Adapter, trxnID uint64, batchIDs []uint64, success bool, errText string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ApplyReplies = append(f.ApplyReplies, ApplyReplyEvent{Adapter: a, TrxnID: trxnID, BatchIDs: batchIDs, Success: success, ErrorText: errText})
}

func (f *FakeTransactionModule) ConfigTrxnInProgress() (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inProgress {
		return f.nextTrxnID, true
	}
	return 0, false
}

func (f *FakeTransactionModule) CreateTrxn(a *bcknd.Adapter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate {
		return fmt.Errorf("bckndtest: transaction creation refused")
	}
	f.nextTrxnID++
	return nil
}

// SetInProgress forces ConfigTrxnInProgress to report an in-flight
// transaction, for exercising the CONN_INIT reschedule path.
func (f *FakeTransactionModule) SetInProgress(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inProgress = v
}

// stubConnCounter is kept for tests that need unique synthetic fds without
// a real listener; not used by FakeConfigDB/FakeTransactionModule directly.
var stubConnCounter int64

// NextStubFd returns a fresh, process-unique synthetic file descriptor
// number for tests constructing adapters without a real socket.
func NextStubFd() int { return int(atomic.AddInt64(&stubConnCounter, 1)) + 1000 }

// StubRawConn is an in-memory bcknd.RawConn for tests. ReadNonBlock serves
// bytes queued via Feed; WriteNonBlock appends to an internal buffer,
// capped at MaxWrite bytes per call when MaxWrite > 0 so tests can
// reproduce partial-write backpressure (spec.md scenario S6: "stub socket
// accepts 4 KiB per write").
type StubRawConn struct {
	mu       sync.Mutex
	in       []byte
	inClosed bool
	out      []byte
	MaxWrite int
	fd       int
	closed   bool
}

// NewStubRawConn builds a StubRawConn carrying the given synthetic fd.
func NewStubRawConn(fd int) *StubRawConn { return &StubRawConn{fd: fd} }

// Feed appends bytes to the stub's inbound queue, as if received off the wire.
func (s *StubRawConn) Feed(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.in = append(s.in, b...)
}

// CloseRead marks the inbound side as peer-closed: the next ReadNonBlock
// with an empty queue returns (0, nil), the stub's EOF signal.
func (s *StubRawConn) CloseRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inClosed = true
}

func (s *StubRawConn) ReadNonBlock(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.in) == 0 {
		if s.inClosed {
			return 0, nil
		}
		return 0, bcknd.ErrWouldBlock
	}
	n := copy(p, s.in)
	s.in = s.in[n:]
	return n, nil
}

func (s *StubRawConn) WriteNonBlock(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(p)
	if s.MaxWrite > 0 && s.MaxWrite < n {
		n = s.MaxWrite
	}
	s.out = append(s.out, p[:n]...)
	return n, nil
}

func (s *StubRawConn) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *StubRawConn) Fd() int { return s.fd }

// Written returns a copy of every byte accepted by WriteNonBlock so far,
// in the order it was written.
func (s *StubRawConn) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.out))
	copy(out, s.out)
	return out
}

// Closed reports whether Close has been called.
func (s *StubRawConn) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// StubScheduler is a bcknd.Scheduler that only records arm/cancel calls,
// for tests that drive an Adapter's handlers directly instead of running a
// real reactor loop.
type StubScheduler struct {
	mu            sync.Mutex
	ReadArmed     map[*bcknd.Adapter]int
	WriteArmed    map[*bcknd.Adapter]int
	WritesOnArmed map[*bcknd.Adapter]int
	ProcMsgArmed  map[*bcknd.Adapter]int
	ConnInitArmed map[*bcknd.Adapter]int
	Cancelled     map[*bcknd.Adapter]int
}

// NewStubScheduler builds an empty StubScheduler.
func NewStubScheduler() *StubScheduler {
	return &StubScheduler{
		ReadArmed:     make(map[*bcknd.Adapter]int),
		WriteArmed:    make(map[*bcknd.Adapter]int),
		WritesOnArmed: make(map[*bcknd.Adapter]int),
		ProcMsgArmed:  make(map[*bcknd.Adapter]int),
		ConnInitArmed: make(map[*bcknd.Adapter]int),
		Cancelled:     make(map[*bcknd.Adapter]int),
	}
}

func (s *StubScheduler) ArmConnInit(a *bcknd.Adapter, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConnInitArmed[a]++
}

func (s *StubScheduler) ArmRead(a *bcknd.Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReadArmed[a]++
}

func (s *StubScheduler) ArmWrite(a *bcknd.Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WriteArmed[a]++
}

func (s *StubScheduler) ArmWritesOn(a *bcknd.Adapter, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WritesOnArmed[a]++
}

func (s *StubScheduler) ArmProcMsg(a *bcknd.Adapter, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProcMsgArmed[a]++
}

func (s *StubScheduler) CancelAll(a *bcknd.Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cancelled[a]++
}

// WriteArmCount returns how many times ArmWrite has been called for a.
func (s *StubScheduler) WriteArmCount(a *bcknd.Adapter) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.WriteArmed[a]
}
