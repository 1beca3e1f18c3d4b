// Package dispatch routes inbound JSON-RPC requests and notifications to
// registered handlers and converts handler failures into error responses.
//
// Error mapping for requests:
//   - no handler for the method: MethodNotFound, no handler is invoked
//   - *errors.ApplicationError: its own code, message and data
//   - errors wrapping errors.ErrInvalidParams: InvalidParams
//   - errors wrapping errors.ErrUnknownResource: InvalidRequest
//   - anything else, including a panic: InternalError with the original
//     message in data
package dispatch
