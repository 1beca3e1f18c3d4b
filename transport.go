package stdiorpc

import "github.com/wagiedev/stdio-rpc-go/internal/config"

// Transport is the byte connection under a client session.
// Implement this to drive a client over something other than a spawned
// process, e.g. in-memory pipes in tests.
//
// The default implementation spawns the server and talks over its stdio.
// Custom transports are injected with WithTransport.
type Transport = config.Transport
