// Package session runs the JSON-RPC conversation over one byte transport.
//
// A Session owns a Conn (a spawned child process or the process's own
// stdin/stdout), a framer for the inbound direction and a correlation table
// for outbound requests. A single read loop consumes the inbound stream and
// routes each message:
//   - responses complete the matching pending call
//   - requests are passed to the Dispatcher and the produced response is
//     written back
//   - notifications go to the Dispatcher, or to the Notifications channel
//     when no handler claims them
//
// Lifecycle: Starting → Running → Closing → Closed. Stream end, a read error,
// process exit, context cancellation or Close move the session to Closing;
// every pending call is then failed with a SessionClosedError and the
// transport is released.
package session
