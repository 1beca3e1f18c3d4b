package jsonrpc

import "fmt"

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid Request object,
	// or that the request referenced something the server does not know.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound indicates the method does not exist or is not available.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError indicates a handler failed unexpectedly.
	ErrorCodeInternalError ErrorCode = -32603
)

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeParseError:
		return "ParseError"
	case ErrorCodeInvalidRequest:
		return "InvalidRequest"
	case ErrorCodeMethodNotFound:
		return "MethodNotFound"
	case ErrorCodeInvalidParams:
		return "InvalidParams"
	case ErrorCodeInternalError:
		return "InternalError"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// ErrorObject is the error member of a JSON-RPC response.
type ErrorObject struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}
