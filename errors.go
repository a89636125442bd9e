package bcknd

import "errors"

var (
	// ErrOversizeFrame is returned when an outbound payload would not fit
	// within MaxFrame once framed. The encoder rejects it locally; no send
	// is attempted and the adapter is not disconnected.
	ErrOversizeFrame = errors.New("bcknd: payload exceeds max frame size")

	// ErrUnknownClient annotates the log line when a registration names a
	// client_name that does not resolve against the compile-time ClientID
	// table; the registering adapter is disconnected, not handed an error.
	ErrUnknownClient = errors.New("bcknd: unresolved client name")

	// ErrAdapterClosed is returned by operations attempted against an
	// adapter that has already run Disconnect.
	ErrAdapterClosed = errors.New("bcknd: adapter is disconnected")

	// ErrTrxnInProgress signals CONN_INIT found an in-flight config
	// transaction and must reschedule rather than create a new one.
	ErrTrxnInProgress = errors.New("bcknd: config transaction already in progress")
)

// FrameError distinguishes a fatal stream-corruption error (the owning
// adapter must disconnect) from a benign "not enough bytes yet" condition,
// which ScanFrames reports by simply returning the count of bytes consumed
// so far with a nil error instead.
type FrameError struct {
	Msg   string
	Fatal bool
}

func (e *FrameError) Error() string { return e.Msg }
