// Package correlation matches inbound responses to the outbound requests
// awaiting them.
//
// A Table hands out request ids, records a PendingCall per outstanding id and
// completes each PendingCall at most once: by a response, a rejection, or a
// session-wide drain. Completing an id the table does not know is reported as
// a *errors.ProtocolError and has no other effect.
package correlation
