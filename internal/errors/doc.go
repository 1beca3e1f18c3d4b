// Package errors defines the error taxonomy of the stdio RPC engine.
//
// Errors fall into four families:
//   - TransportError: spawn failures, closed streams, writes after close.
//     A transport error always terminates the session.
//   - ParseError: a malformed unit on the wire. It is logged and the unit is
//     discarded; the session keeps running.
//   - ProtocolError: a response with an unknown id or a duplicate completion.
//     It is reported as a warning and never fails a caller.
//   - ApplicationError: a handler-level failure (InvalidParams, MethodNotFound,
//     InternalError, ...) that travels as a normal error response.
//
// All error types support unwrapping and can be checked using errors.Is,
// errors.As, and errors.AsType.
package errors
