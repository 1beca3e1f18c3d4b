// Package client implements the client role: it spawns a server, performs
// the initialize handshake and exposes typed tools, resources and prompts
// calls over a session.
package client
