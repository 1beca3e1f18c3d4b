// Package subprocess spawns a server as a child process and exposes its
// pipes as a session transport.
//
// The child's stdout carries the protocol. Its stderr is copied unmodified
// to the configured writer and every line is also reported as a diagnostic.
package subprocess
