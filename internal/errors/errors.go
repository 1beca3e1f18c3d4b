package errors

import (
	"errors"
	"fmt"

	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
)

// RPCError is the base interface for all errors produced by this module.
type RPCError interface {
	error
	IsRPCError() bool
}

// Compile-time verification that all error types implement RPCError.
var (
	_ RPCError = (*RuntimeNotFoundError)(nil)
	_ RPCError = (*TransportError)(nil)
	_ RPCError = (*ProcessError)(nil)
	_ RPCError = (*ParseError)(nil)
	_ RPCError = (*ProtocolError)(nil)
	_ RPCError = (*ApplicationError)(nil)
	_ RPCError = (*SessionClosedError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrTransportClosed indicates a send was attempted on a session that is not running.
	ErrTransportClosed = errors.New("transport closed")

	// ErrSessionClosed is the default close reason when a session is shut down explicitly.
	ErrSessionClosed = errors.New("session closed")

	// ErrAlreadyStarted indicates Start was called twice on the same session.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrRequestTimeout indicates a pending call expired before its response arrived.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrDuplicateID indicates an id was registered while still outstanding.
	ErrDuplicateID = errors.New("duplicate request id")

	// ErrInvalidParams marks handler failures caused by bad arguments.
	// Handlers wrap it to have the dispatcher answer with InvalidParams.
	ErrInvalidParams = errors.New("invalid params")

	// ErrUnknownResource indicates a resource URI that no provider serves.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrStdinClosed indicates the child's input stream was closed.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrClientNotConnected indicates an operation on a client that has not been started.
	ErrClientNotConnected = errors.New("client not connected")

	// ErrClientAlreadyConnected indicates Start was called on a connected client.
	ErrClientAlreadyConnected = errors.New("client already connected")

	// ErrClientClosed indicates an operation on a client after Close.
	ErrClientClosed = errors.New("client closed")
)

// RuntimeNotFoundError indicates the runtime binary used to launch a child was not found.
type RuntimeNotFoundError struct {
	Runtime       string
	SearchedPaths []string
}

func (e *RuntimeNotFoundError) Error() string {
	return fmt.Sprintf("runtime %q not found in: %v", e.Runtime, e.SearchedPaths)
}

// IsRPCError implements RPCError.
func (e *RuntimeNotFoundError) IsRPCError() bool { return true }

// TransportError indicates a failure of the byte transport: spawning the
// child, reading or writing its streams.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRPCError implements RPCError.
func (e *TransportError) IsRPCError() bool { return true }

// ProcessError indicates the child process exited with an error.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("child process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("child process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsRPCError implements RPCError.
func (e *ProcessError) IsRPCError() bool { return true }

// ParseError indicates a unit of wire bytes could not be decoded as a message.
// Raw holds the offending bytes.
type ParseError struct {
	Raw []byte
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse message: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsRPCError implements RPCError.
func (e *ParseError) IsRPCError() bool { return true }

// ProtocolError reports a correlation anomaly such as a response for an id
// that has no pending call.
type ProtocolError struct {
	ID     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol warning for id %q: %s", e.ID, e.Reason)
}

// IsRPCError implements RPCError.
func (e *ProtocolError) IsRPCError() bool { return true }

// ApplicationError is a handler-level failure carried in an error response.
type ApplicationError struct {
	Code    jsonrpc.ErrorCode
	Message string
	Data    any
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, int(e.Code), e.Message)
}

// IsRPCError implements RPCError.
func (e *ApplicationError) IsRPCError() bool { return true }

// Is lets errors.Is(err, ErrInvalidParams) match InvalidParams application errors.
func (e *ApplicationError) Is(target error) bool {
	return target == ErrInvalidParams && e.Code == jsonrpc.ErrorCodeInvalidParams
}

// ErrorObject converts the error to its wire form.
func (e *ApplicationError) ErrorObject() *jsonrpc.ErrorObject {
	return &jsonrpc.ErrorObject{
		Code:    e.Code,
		Message: e.Message,
		Data:    e.Data,
	}
}

// FromErrorObject converts a wire error object into an ApplicationError.
func FromErrorObject(obj *jsonrpc.ErrorObject) *ApplicationError {
	if obj == nil {
		return nil
	}

	return &ApplicationError{
		Code:    obj.Code,
		Message: obj.Message,
		Data:    obj.Data,
	}
}

// NewApplicationError builds an ApplicationError with a formatted message.
func NewApplicationError(code jsonrpc.ErrorCode, data any, format string, args ...any) *ApplicationError {
	return &ApplicationError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Data:    data,
	}
}

// SessionClosedError is delivered to every call still pending when a session closes.
type SessionClosedError struct {
	Reason error
}

func (e *SessionClosedError) Error() string {
	if e.Reason == nil {
		return ErrSessionClosed.Error()
	}

	return fmt.Sprintf("%s: %v", ErrSessionClosed, e.Reason)
}

func (e *SessionClosedError) Unwrap() []error {
	if e.Reason == nil {
		return []error{ErrSessionClosed}
	}

	return []error{ErrSessionClosed, e.Reason}
}

// IsRPCError implements RPCError.
func (e *SessionClosedError) IsRPCError() bool { return true }
