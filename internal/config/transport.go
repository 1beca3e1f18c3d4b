// Package config provides configuration types shared by clients and servers.
package config

import "github.com/wagiedev/stdio-rpc-go/internal/session"

// Transport is the byte-level connection a session runs over.
// Implement this to provide custom transports for testing or mocking.
//
// The default implementation is subprocess.Process which spawns a child.
// Custom transports can be injected via Options.Transport.
type Transport interface {
	session.Conn
}
