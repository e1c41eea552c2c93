// Package buildsession orchestrates one end-to-end build: resolve a
// daemon address, compile a BuildSpec to LLB, open a session, submit
// Solve, drive Status, and report the result (spec.md §4.6 "Build
// Session"). It is grounded on please's src/plz/plz.go, the top-level
// driver that strings together parse → build → test the same way this
// package strings together connect → compile → solve → track.
package buildsession

import (
	"errors"
	"fmt"

	"github.com/DiverOfDark/peelbox/src/connection"
)

// Kind classifies a failure for callers that need to decide how to react
// (retry, surface to a user, fail a CI job) without string-matching error
// messages (spec.md §7 "Error Handling Design").
type Kind int

const (
	KindUnknown Kind = iota
	KindAddress
	KindTransport
	KindSession
	KindProtocol
	KindSolve
	KindLocalIO
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindTransport:
		return "transport"
	case KindSession:
		return "session"
	case KindProtocol:
		return "protocol"
	case KindSolve:
		return "solve"
	case KindLocalIO:
		return "local_io"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// SessionError reports a failure establishing or maintaining the session
// transport (opening the daemon stream, hosting the callback server).
type SessionError struct {
	SessionID string
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("buildsession: session %s: %s", e.SessionID, e.Err)
}
func (e *SessionError) Unwrap() error { return e.Err }

// ProtocolError reports a wire-level violation: a message that failed to
// decode, or arrived in a sequence the protocol forbids.
type ProtocolError struct {
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("buildsession: protocol error: %s: %s", e.Detail, e.Err)
	}
	return fmt.Sprintf("buildsession: protocol error: %s", e.Detail)
}
func (e *ProtocolError) Unwrap() error { return e.Err }

// SolveError reports that the daemon accepted the build but it failed
// during execution; Vertex names the first failing LLB op, if known.
type SolveError struct {
	Vertex string
	Err    error
}

func (e *SolveError) Error() string {
	if e.Vertex == "" {
		return fmt.Sprintf("buildsession: solve failed: %s", e.Err)
	}
	return fmt.Sprintf("buildsession: solve failed at %s: %s", e.Vertex, e.Err)
}
func (e *SolveError) Unwrap() error { return e.Err }

// LocalIOError reports a failure reading the local build context or
// writing a retrieved artifact.
type LocalIOError struct {
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("buildsession: local I/O on %s: %s", e.Path, e.Err)
}
func (e *LocalIOError) Unwrap() error { return e.Err }

// InternalError reports a defect in this module rather than an
// environmental failure (e.g. an invariant the Builder or wire codec
// should have upheld).
type InternalError struct {
	Detail string
	Err    error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("buildsession: internal error: %s: %s", e.Detail, e.Err)
}
func (e *InternalError) Unwrap() error { return e.Err }

// ClassifyErr returns the Kind of err, looking through wrapped errors
// from this package and from src/connection.
func ClassifyErr(err error) Kind {
	var addrErr *connection.AddressError
	if errors.As(err, &addrErr) {
		return KindAddress
	}
	var transportErr *connection.TransportError
	if errors.As(err, &transportErr) {
		return KindTransport
	}
	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		return KindSession
	}
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return KindProtocol
	}
	var solveErr *SolveError
	if errors.As(err, &solveErr) {
		return KindSolve
	}
	var ioErr *LocalIOError
	if errors.As(err, &ioErr) {
		return KindLocalIO
	}
	var internalErr *InternalError
	if errors.As(err, &internalErr) {
		return KindInternal
	}
	return KindUnknown
}
