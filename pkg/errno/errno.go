// Package errno defines the capability error taxonomy used across the
// kernel core. Every capability operation writes one of these into the
// capability's error slot instead of returning a Go error directly, so
// that partial success (a short write, a truncated datagram) can still
// report a condition without unwinding through shared state.
package errno

import "fmt"

// Errno is a kernel-level error kind. The zero value, Success, means the
// last operation completed without error.
type Errno int

const (
	// Success indicates the last operation on a capability completed
	// without error, including a zero-byte read signifying EOF.
	Success Errno = iota
	// Again means the operation would have blocked and the capability
	// is in non-blocking mode.
	Again
	// Pipe means a send was attempted after local SHUT_WR, or a
	// write-signaler was requested on a socket that is shut down for
	// writing.
	Pipe
	// NotConn means the operation requires an established peer and
	// none exists (never connected, or status regressed).
	NotConn
	// ConnReset means the peer vanished while data was still in
	// flight.
	ConnReset
	// MsgSize means a control-socket command exceeded the command
	// buffer. A reply that overflows the reply buffer is not reported
	// this way: the send succeeds and the reply body becomes
	// "EMSGSIZE\n".
	MsgSize
	// BadF means a CapTable lookup addressed an empty or
	// out-of-range slot.
	BadF
	// NotCapable means a CapTable lookup found the slot, but the
	// caller's rights did not include the rights the operation
	// requires.
	NotCapable
	// NotSup means the operation is not implemented by this
	// capability's kind.
	NotSup
)

var names = map[Errno]string{
	Success:    "SUCCESS",
	Again:      "AGAIN",
	Pipe:       "PIPE",
	NotConn:    "NOTCONN",
	ConnReset:  "CONNRESET",
	MsgSize:    "MSGSIZE",
	BadF:       "BADF",
	NotCapable: "NOTCAPABLE",
	NotSup:     "NOTSUP",
}

// Error implements the error interface so an Errno composes with
// idiomatic Go call sites, even though capabilities report it through
// an explicit field rather than a returned error.
func (e Errno) Error() string {
	if n, ok := names[e]; ok {
		return n
	}
	return fmt.Sprintf("errno(%d)", int(e))
}

// Ok reports whether e is Success.
func (e Errno) Ok() bool { return e == Success }

// AsError returns nil for Success, and e itself (as an error) otherwise,
// for call sites that want to fold the error slot back into a normal Go
// error check.
func (e Errno) AsError() error {
	if e == Success {
		return nil
	}
	return e
}
