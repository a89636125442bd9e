// Package wire implements the tagged-union protocol messages exchanged
// between the daemon and a backend client (spec.md §4.5, §6.1). spec.md
// treats the wire codec as an external, pre-generated packer/unpacker for a
// well-defined schema; this package is the hand-rolled stand-in for that
// artifact, written in the same manual encoding/binary style as the
// teacher's frame.go BuildFrame rather than reaching for a schema compiler,
// since there is no actual external schema to generate from (see
// SPEC_FULL.md §6.5).
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Tag identifies which union variant a payload carries.
type Tag byte

const (
	TagSubscrReq Tag = iota + 1
	TagTrxnReply
	TagCfgDataReply
	TagCfgValidateReply
	TagCfgApplyReply
	TagGetReply
	TagCfgCmdReply
	TagShowCmdReply
	TagNotifyData
	TagTrxnReq
	TagCfgDataReq
	TagCfgValidateReq
	TagCfgApplyReq
)

// ErrTruncated is returned when a payload ends before a field it promised
// (via a length prefix) can be fully read.
var ErrTruncated = errors.New("wire: truncated message")

// ErrUnknownTag is returned by Decode for a tag outside the known union.
var ErrUnknownTag = errors.New("wire: unknown message tag")

// Message is the tagged union of protocol messages. Every variant below
// implements it.
type Message interface {
	Tag() Tag
}

// --- inbound (backend -> daemon) --------------------------------------

// SubscrReq is a backend's self-identifying registration.
type SubscrReq struct {
	ClientName string
	Subscribe  bool
	XPathReg   []string
}

func (SubscrReq) Tag() Tag { return TagSubscrReq }

// TrxnReply acknowledges create/destroy of a config transaction.
type TrxnReply struct {
	TrxnID  uint64
	Create  bool
	Success bool
}

func (TrxnReply) Tag() Tag { return TagTrxnReply }

// CfgDataReply acknowledges one batch of a CfgDataReq.
type CfgDataReply struct {
	TrxnID    uint64
	BatchID   uint64
	Success   bool
	ErrorText string // empty if Success
}

func (CfgDataReply) Tag() Tag { return TagCfgDataReply }

// CfgValidateReply acknowledges a validate request over one or more batches.
type CfgValidateReply struct {
	TrxnID    uint64
	BatchIDs  []uint64
	Success   bool
	ErrorText string
}

func (CfgValidateReply) Tag() Tag { return TagCfgValidateReply }

// CfgApplyReply acknowledges an apply request over one or more batches.
type CfgApplyReply struct {
	TrxnID    uint64
	BatchIDs  []uint64
	Success   bool
	ErrorText string
}

func (CfgApplyReply) Tag() Tag { return TagCfgApplyReply }

// GetReply, CfgCmdReply, ShowCmdReply and NotifyData are accepted variants
// reserved for future behavior (spec.md §4.5): the dispatcher decodes them
// but currently drops the payload. Opaque carries the raw bytes so a future
// handler can be added without touching the decode path.
type GetReply struct{ Opaque []byte }

func (GetReply) Tag() Tag { return TagGetReply }

type CfgCmdReply struct{ Opaque []byte }

func (CfgCmdReply) Tag() Tag { return TagCfgCmdReply }

type ShowCmdReply struct{ Opaque []byte }

func (ShowCmdReply) Tag() Tag { return TagShowCmdReply }

type NotifyData struct{ Opaque []byte }

func (NotifyData) Tag() Tag { return TagNotifyData }

// --- outbound (daemon -> backend) --------------------------------------

// TrxnReq requests creation (or destruction) of a config transaction.
type TrxnReq struct {
	TrxnID uint64
	Create bool
}

func (TrxnReq) Tag() Tag { return TagTrxnReq }

// DataReqItem is one entry of a CfgDataReq's data_req[] list: a config path
// and, for a creation, its serialized node data.
type DataReqItem struct {
	Path string
	Data []byte
}

// CfgDataReq carries one batch of staged config changes.
type CfgDataReq struct {
	TrxnID    uint64
	BatchID   uint64
	DataReq   []DataReqItem
	EndOfData bool
}

func (CfgDataReq) Tag() Tag { return TagCfgDataReq }

// CfgValidateReq asks the backend to validate one or more batches.
type CfgValidateReq struct {
	TrxnID   uint64
	BatchIDs []uint64
}

func (CfgValidateReq) Tag() Tag { return TagCfgValidateReq }

// CfgApplyReq asks the backend to apply a validated transaction.
type CfgApplyReq struct {
	TrxnID uint64
}

func (CfgApplyReq) Tag() Tag { return TagCfgApplyReq }

// --- codec ---------------------------------------------------------------

// Encode serializes m into a tag byte followed by its fields, in field
// declaration order.
func Encode(m Message) ([]byte, error) {
	w := &writer{}
	w.byte(byte(m.Tag()))
	switch v := m.(type) {
	case SubscrReq:
		w.string(v.ClientName)
		w.bool(v.Subscribe)
		w.stringSlice(v.XPathReg)
	case TrxnReply:
		w.uint64(v.TrxnID)
		w.bool(v.Create)
		w.bool(v.Success)
	case CfgDataReply:
		w.uint64(v.TrxnID)
		w.uint64(v.BatchID)
		w.bool(v.Success)
		w.string(v.ErrorText)
	case CfgValidateReply:
		w.uint64(v.TrxnID)
		w.uint64Slice(v.BatchIDs)
		w.bool(v.Success)
		w.string(v.ErrorText)
	case CfgApplyReply:
		w.uint64(v.TrxnID)
		w.uint64Slice(v.BatchIDs)
		w.bool(v.Success)
		w.string(v.ErrorText)
	case GetReply:
		w.bytes(v.Opaque)
	case CfgCmdReply:
		w.bytes(v.Opaque)
	case ShowCmdReply:
		w.bytes(v.Opaque)
	case NotifyData:
		w.bytes(v.Opaque)
	case TrxnReq:
		w.uint64(v.TrxnID)
		w.bool(v.Create)
	case CfgDataReq:
		w.uint64(v.TrxnID)
		w.uint64(v.BatchID)
		w.uint32(uint32(len(v.DataReq)))
		for _, item := range v.DataReq {
			w.string(item.Path)
			w.bytes(item.Data)
		}
		w.bool(v.EndOfData)
	case CfgValidateReq:
		w.uint64(v.TrxnID)
		w.uint64Slice(v.BatchIDs)
	case CfgApplyReq:
		w.uint64(v.TrxnID)
	default:
		return nil, fmt.Errorf("wire: unencodable message type %T", m)
	}
	return w.buf, nil
}

// Decode parses a payload into its Message variant. A corrupt tag returns
// ErrUnknownTag and a short payload ErrTruncated. Request-direction
// variants decode normally whichever way they travel; it is the caller
// that decides what to do with them. dispatch.go logs and drops any frame
// Decode rejects, and ignores request-direction variants arriving inbound;
// neither case disconnects the adapter.
func Decode(payload []byte) (Message, error) {
	if len(payload) < 1 {
		return nil, ErrTruncated
	}
	r := &reader{buf: payload[1:]}
	switch Tag(payload[0]) {
	case TagSubscrReq:
		name, err := r.string()
		if err != nil {
			return nil, err
		}
		sub, err := r.bool()
		if err != nil {
			return nil, err
		}
		xpaths, err := r.stringSlice()
		if err != nil {
			return nil, err
		}
		return SubscrReq{ClientName: name, Subscribe: sub, XPathReg: xpaths}, nil
	case TagTrxnReply:
		id, err := r.uint64()
		if err != nil {
			return nil, err
		}
		create, err := r.bool()
		if err != nil {
			return nil, err
		}
		ok, err := r.bool()
		if err != nil {
			return nil, err
		}
		return TrxnReply{TrxnID: id, Create: create, Success: ok}, nil
	case TagCfgDataReply:
		id, err := r.uint64()
		if err != nil {
			return nil, err
		}
		batch, err := r.uint64()
		if err != nil {
			return nil, err
		}
		ok, err := r.bool()
		if err != nil {
			return nil, err
		}
		errText, err := r.string()
		if err != nil {
			return nil, err
		}
		return CfgDataReply{TrxnID: id, BatchID: batch, Success: ok, ErrorText: errText}, nil
	case TagCfgValidateReply:
		id, err := r.uint64()
		if err != nil {
			return nil, err
		}
		batches, err := r.uint64Slice()
		if err != nil {
			return nil, err
		}
		ok, err := r.bool()
		if err != nil {
			return nil, err
		}
		errText, err := r.string()
		if err != nil {
			return nil, err
		}
		return CfgValidateReply{TrxnID: id, BatchIDs: batches, Success: ok, ErrorText: errText}, nil
	case TagCfgApplyReply:
		id, err := r.uint64()
		if err != nil {
			return nil, err
		}
		batches, err := r.uint64Slice()
		if err != nil {
			return nil, err
		}
		ok, err := r.bool()
		if err != nil {
			return nil, err
		}
		errText, err := r.string()
		if err != nil {
			return nil, err
		}
		return CfgApplyReply{TrxnID: id, BatchIDs: batches, Success: ok, ErrorText: errText}, nil
	case TagGetReply:
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		return GetReply{Opaque: b}, nil
	case TagCfgCmdReply:
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		return CfgCmdReply{Opaque: b}, nil
	case TagShowCmdReply:
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		return ShowCmdReply{Opaque: b}, nil
	case TagNotifyData:
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		return NotifyData{Opaque: b}, nil
	case TagTrxnReq:
		id, err := r.uint64()
		if err != nil {
			return nil, err
		}
		create, err := r.bool()
		if err != nil {
			return nil, err
		}
		return TrxnReq{TrxnID: id, Create: create}, nil
	case TagCfgDataReq:
		id, err := r.uint64()
		if err != nil {
			return nil, err
		}
		batch, err := r.uint64()
		if err != nil {
			return nil, err
		}
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		items := make([]DataReqItem, 0, n)
		for i := uint32(0); i < n; i++ {
			path, err := r.string()
			if err != nil {
				return nil, err
			}
			data, err := r.bytes()
			if err != nil {
				return nil, err
			}
			items = append(items, DataReqItem{Path: path, Data: data})
		}
		eod, err := r.bool()
		if err != nil {
			return nil, err
		}
		return CfgDataReq{TrxnID: id, BatchID: batch, DataReq: items, EndOfData: eod}, nil
	case TagCfgValidateReq:
		id, err := r.uint64()
		if err != nil {
			return nil, err
		}
		batches, err := r.uint64Slice()
		if err != nil {
			return nil, err
		}
		return CfgValidateReq{TrxnID: id, BatchIDs: batches}, nil
	case TagCfgApplyReq:
		id, err := r.uint64()
		if err != nil {
			return nil, err
		}
		return CfgApplyReq{TrxnID: id}, nil
	default:
		return nil, ErrUnknownTag
	}
}

// --- low-level buffer helpers --------------------------------------------

type writer struct{ buf []byte }

func (w *writer) byte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) bool(b bool) {
	if b {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) uint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) bytes(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) string(s string) { w.bytes([]byte(s)) }

func (w *writer) stringSlice(ss []string) {
	w.uint32(uint32(len(ss)))
	for _, s := range ss {
		w.string(s)
	}
}

func (w *writer) uint64Slice(vs []uint64) {
	w.uint32(uint32(len(vs)))
	for _, v := range vs {
		w.uint64(v)
	}
}

type reader struct{ buf []byte }

func (r *reader) need(n int) error {
	if len(r.buf) < n {
		return ErrTruncated
	}
	return nil
}

func (r *reader) bool() (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}
	v := r.buf[0] != 0
	r.buf = r.buf[1:]
	return v, nil
}

func (r *reader) uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[:4])
	r.buf = r.buf[4:]
	return v, nil
}

func (r *reader) uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[:8])
	r.buf = r.buf[8:]
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	if n == 0 {
		// A zero-length field decodes as nil, so a nil slice round-trips.
		return nil, nil
	}
	b := make([]byte, n)
	copy(b, r.buf[:n])
	r.buf = r.buf[n:]
	return b, nil
}

func (r *reader) string() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) stringSlice() ([]string, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := r.string()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *reader) uint64Slice() ([]uint64, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := r.uint64()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
