package stdiorpc

import "github.com/wagiedev/stdio-rpc-go/internal/errors"

// Re-export error types from internal package

// RPCError is the base interface for all errors produced by this module.
type RPCError = errors.RPCError

// RuntimeNotFoundError indicates the runtime used to launch a server was not found.
type RuntimeNotFoundError = errors.RuntimeNotFoundError

// TransportError indicates the child's streams failed.
type TransportError = errors.TransportError

// ProcessError indicates the child exited with an error.
type ProcessError = errors.ProcessError

// ParseError indicates a line of output was not a valid message.
type ParseError = errors.ParseError

// ProtocolError reports a response that matched no pending call.
type ProtocolError = errors.ProtocolError

// ApplicationError is an error response returned by the peer.
type ApplicationError = errors.ApplicationError

// SessionClosedError fails calls still pending when the session ends.
type SessionClosedError = errors.SessionClosedError

// Re-export sentinel errors from internal package.
var (
	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.ErrClientNotConnected

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.ErrClientAlreadyConnected

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.ErrClientClosed

	// ErrTransportClosed indicates a send on a stream that is not open.
	ErrTransportClosed = errors.ErrTransportClosed

	// ErrSessionClosed matches every SessionClosedError.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrRequestTimeout indicates a request timed out.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrInvalidParams makes a handler error an InvalidParams response.
	ErrInvalidParams = errors.ErrInvalidParams

	// ErrUnknownResource is returned by a ResourceProvider for URIs it does not serve.
	ErrUnknownResource = errors.ErrUnknownResource

	// ErrServerStarted indicates Serve was called twice.
	ErrServerStarted = errors.ErrAlreadyStarted
)
