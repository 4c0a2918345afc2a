package sflow

import "fmt"

// EncodeErrorKind classifies a data-path encoding failure, per spec §7.
type EncodeErrorKind int

const (
	// ErrOverflow means a sample would exceed the receiver's maximum
	// datagram size; the sample is discarded.
	ErrOverflow EncodeErrorKind = iota
	// ErrUnknownTag means an element carried a tag the encoder does not
	// recognize; the sample is discarded.
	ErrUnknownTag
	// ErrMismatch means the post-write byte count did not match the
	// pre-computed size; this is a core bug and the whole buffered
	// datagram is discarded.
	ErrMismatch
)

// EncodeError is returned by Receiver.WriteFlowSample and
// WriteCountersSample when a sample is rejected. It is always paired with
// the receiver's buffer being left in (or, for ErrMismatch, reset to) a
// known-good state and a line routed through the agent's Capabilities.Error.
type EncodeError struct {
	Kind EncodeErrorKind
	Msg  string
}

func (e *EncodeError) Error() string { return e.Msg }

func newEncodeError(kind EncodeErrorKind, format string, args ...interface{}) *EncodeError {
	return &EncodeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
