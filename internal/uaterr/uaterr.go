// Package uaterr names the small set of sentinel/typed errors that
// cross component boundaries in the receiver: configuration mistakes
// (exit 64, no restart), protocol-parse failures on a reconnecting raw
// input (log, close, reconnect), and the fatal decoder invariants that
// should never be recovered from. Everything else -- a single
// demod/FEC miss -- is not an error at all and never gets a type here.
package uaterr

import "fmt"

// Kind classifies an error for the top-level event loop's dispatch
// (exit code, log-and-continue, or reconnect-with-backoff).
type Kind int

const (
	// KindConfig is a bad CLI flag, bad --format, or a missing device;
	// the process exits with code 64 and does not restart.
	KindConfig Kind = iota
	// KindIO is a socket/serial/SDR failure; the event loop stops and
	// the process exits with code 1.
	KindIO
	// KindProtocol is a malformed line on a reconnecting raw input;
	// the caller logs it, closes the connection, and reconnects after
	// an interval.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindIO:
		return "io"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with the Kind that determines how
// the event loop should react to it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config wraps err as a KindConfig error.
func Config(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// IO wraps err as a KindIO error.
func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// Protocol wraps err as a KindProtocol error.
func Protocol(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}

// Is reports whether err (or anything it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// ExitCode maps a top-level error to a process exit code: 64 for
// configuration, 1 for I/O, 2 for anything else uncaught. A nil error
// exits 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if Is(err, KindConfig) {
		return 64
	}
	if Is(err, KindIO) {
		return 1
	}
	return 2
}

// BitRangeError reports an out-of-range bit/byte access in the UAT
// payload decoder. This is a fatal programming error and is meant to
// propagate, not be handled locally.
type BitRangeError struct {
	Byte, Bit int
	PayloadLen int
}

func (e *BitRangeError) Error() string {
	return fmt.Sprintf("uat: bit access byte=%d bit=%d out of range for %d-byte payload", e.Byte, e.Bit, e.PayloadLen)
}
