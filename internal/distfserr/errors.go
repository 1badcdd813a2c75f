// Package distfserr defines the coded error type used across distfs so
// that a Go error can be translated directly into a wire.Record's
// error_code field without re-deriving the taxonomy at each call site.
package distfserr

import (
	"fmt"

	"github.com/dreamware/distfs/internal/wire"
)

// Error is a coded error: a closed wire.Code* value plus a human-readable
// message. It is the only error type handler code should construct when
// an operation fails for a client-visible reason (bad index, missing
// file, permission, etc.) — internal faults (disk I/O, malformed
// metadata) should be wrapped with fmt.Errorf and logged, then reported
// to the client as Internal(err) at the boundary.
type Error struct {
	Code uint32
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", wire.CodeName(e.Code), e.Msg)
}

// New constructs an Error with an explicit code and message.
func New(code uint32, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Newf constructs an Error with a formatted message.
func Newf(code uint32, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(filename string) *Error {
	return Newf(wire.CodeFileNotFound, "file not found: %s", filename)
}

func UserNotFound(username string) *Error {
	return Newf(wire.CodeUserNotFound, "user not found: %s", username)
}

func Unauthorized(msg string) *Error {
	return New(wire.CodeUnauthorized, msg)
}

func PermissionDenied(msg string) *Error {
	return New(wire.CodePermissionDenied, msg)
}

func Locked(holder string) *Error {
	return Newf(wire.CodeFileLocked, "held by %s", holder)
}

func InvalidIndex(msg string) *Error {
	return New(wire.CodeInvalidIndex, msg)
}

func Exists(filename string) *Error {
	return Newf(wire.CodeFileExists, "file already exists: %s", filename)
}

func InvalidCommand(msg string) *Error {
	return New(wire.CodeInvalidCommand, msg)
}

func StorageDown(nodeID string) *Error {
	return Newf(wire.CodeStorageDown, "storage node down: %s", nodeID)
}

func Internal(err error) *Error {
	if err == nil {
		return New(wire.CodeInternal, "internal error")
	}
	return New(wire.CodeInternal, err.Error())
}

func NoNodes() *Error {
	return New(wire.CodeNoNodes, "no connected storage nodes")
}

func InvalidParameters(msg string) *Error {
	return New(wire.CodeInvalidParameters, msg)
}

func ExecFailed(output string) *Error {
	return New(wire.CodeExecFailed, output)
}

// Code extracts the wire error code from err, defaulting to Internal for
// any error that isn't a *Error (an unexpected Go error reaching the
// transport boundary is itself an internal fault).
func Code(err error) uint32 {
	if err == nil {
		return wire.CodeSuccess
	}
	if de, ok := err.(*Error); ok {
		return de.Code
	}
	return wire.CodeInternal
}
