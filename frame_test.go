package bcknd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrameRoundTrip(t *testing.T) {
	payload := []byte("hello, backend")
	framed, err := EncodeFrame(payload)
	require.NoError(t, err)
	require.Len(t, framed, FrameHeaderSize+len(payload))

	var got []byte
	consumed, err := ScanFrames(framed, func(p []byte) { got = append([]byte(nil), p...) })
	require.NoError(t, err)
	assert.Equal(t, len(framed), consumed)
	assert.Equal(t, payload, got)
}

func TestEncodeFrameRejectsOversize(t *testing.T) {
	_, err := EncodeFrame(make([]byte, MaxFrame))
	assert.ErrorIs(t, err, ErrOversizeFrame)
}

func TestScanFramesPartialHeaderWaits(t *testing.T) {
	consumed, err := ScanFrames([]byte{0xDE, 0xAD}, func([]byte) {
		t.Fatal("yield should not be called on a partial header")
	})
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)
}

func TestScanFramesPartialPayloadWaits(t *testing.T) {
	framed, err := EncodeFrame([]byte("0123456789"))
	require.NoError(t, err)

	consumed, err := ScanFrames(framed[:len(framed)-3], func([]byte) {
		t.Fatal("yield should not be called before the full frame arrives")
	})
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)
}

func TestScanFramesMultipleFramesInOneBuffer(t *testing.T) {
	f1, err := EncodeFrame([]byte("one"))
	require.NoError(t, err)
	f2, err := EncodeFrame([]byte("two"))
	require.NoError(t, err)

	buf := append(append([]byte{}, f1...), f2...)
	var got []string
	consumed, err := ScanFrames(buf, func(p []byte) { got = append(got, string(p)) })
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, []string{"one", "two"}, got)
}

// TestScanFramesCorruptMarkerIsFatal reproduces spec.md scenario S3: a
// first, well-formed frame is yielded, then a corrupt marker in a later
// frame reports a fatal error without losing the first frame's result.
func TestScanFramesCorruptMarkerIsFatal(t *testing.T) {
	good, err := EncodeFrame([]byte{0xAA, 0xBB})
	require.NoError(t, err)
	bad := []byte{0xCA, 0xFE, 0x00, 0x06, 0x00, 0x00}

	buf := append(append([]byte{}, good...), bad...)
	var got int
	consumed, err := ScanFrames(buf, func([]byte) { got++ })

	require.Error(t, err)
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Fatal)
	assert.Equal(t, 1, got)
	assert.Equal(t, len(good), consumed)
}

func TestScanFramesInvalidLengthIsFatal(t *testing.T) {
	buf := []byte{0xDE, 0xAD, 0x00, 0x02, 0xFF}
	_, err := ScanFrames(buf, func([]byte) {
		t.Fatal("yield should not run on an invalid length")
	})
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Fatal)
}
