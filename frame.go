package bcknd

import (
	"encoding/binary"
	"fmt"
)

// Wire frame layout (spec.md §4.1, §6.1):
//
//	marker (u16, fixed) || total_length (u16, network order) || payload
//
// total_length counts the 4-byte header itself, so the payload is
// total_length-4 bytes. FrameMarker is an arbitrary but fixed sentinel the
// receiver uses to detect desynchronization on a corrupted stream; the
// teacher's own frame.go instead used a length+type header with no marker,
// since it never shared a raw stream with anything that could desync it.
const (
	FrameMarker     uint16 = 0xDEAD
	FrameHeaderSize        = 4
	// MaxFrame is the hard cap on a single frame's total length (spec.md
	// §6.4 MAX_FRAME): 64 KiB - 1, the largest total the u16 length field
	// can carry.
	MaxFrame = 64*1024 - 1
)

// EncodeFrame prepends the wire header to payload, in the same
// header-then-payload construction as the teacher's BuildFrame. It rejects
// payloads that would not fit within MaxFrame once framed; spec.md §4.1
// requires this rejection happen locally, without attempting a send.
func EncodeFrame(payload []byte) ([]byte, error) {
	total := FrameHeaderSize + len(payload)
	if total > MaxFrame {
		return nil, ErrOversizeFrame
	}
	out := make([]byte, total)
	binary.BigEndian.PutUint16(out[0:2], FrameMarker)
	binary.BigEndian.PutUint16(out[2:4], uint16(total))
	copy(out[FrameHeaderSize:], payload)
	return out, nil
}

// ScanFrames walks buf from the start looking for complete frames, invoking
// yield with each payload slice (aliasing buf — callers that retain it past
// the next mutation of buf must copy) in arrival order. It returns the
// number of bytes consumed, i.e. the offset of the first byte not yet part
// of a completed frame; the caller relocates buf[consumed:] to the head of
// its scratch buffer before the next read (spec.md §4.1 decoder contract).
//
// A non-nil, Fatal *FrameError means the marker at the cursor was corrupt:
// any frames already yielded before that point are valid (the adapter
// dispatches them before it disconnects), but the owning adapter must now
// disconnect. Running out of
// bytes mid-header or mid-payload is not an error — it yields (consumed,
// nil) and the caller simply waits for more bytes.
func ScanFrames(buf []byte, yield func(payload []byte)) (consumed int, err error) {
	off := 0
	for {
		remain := buf[off:]
		if len(remain) < FrameHeaderSize {
			return off, nil
		}
		marker := binary.BigEndian.Uint16(remain[0:2])
		if marker != FrameMarker {
			return off, &FrameError{
				Msg:   fmt.Sprintf("bcknd: corrupt frame marker %#04x at offset %d", marker, off),
				Fatal: true,
			}
		}
		length := int(binary.BigEndian.Uint16(remain[2:4]))
		if length < FrameHeaderSize || length > MaxFrame {
			return off, &FrameError{
				Msg:   fmt.Sprintf("bcknd: invalid frame length %d at offset %d", length, off),
				Fatal: true,
			}
		}
		if len(remain) < length {
			return off, nil
		}
		yield(remain[FrameHeaderSize:length])
		off += length
	}
}
