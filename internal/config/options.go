package config

import (
	"io"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/stdio-rpc-go/internal/session"
)

// Options configures a client connection to a spawned server or a server
// answering on its own stdio.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Runtime is the interpreter used to launch the server script, e.g.
	// "node" or "/usr/local/bin/python3". If empty it is inferred from the
	// script extension, and executables are started directly.
	Runtime string

	// MinimumRuntimeVersion logs a warning when the runtime's --version is
	// older. Empty disables the check.
	MinimumRuntimeVersion string

	// Args are appended after the script path.
	Args []string

	// Env provides additional environment variables for the child process.
	// The parent environment is inherited.
	Env map[string]string

	// Cwd sets the working directory of the child process.
	Cwd string

	// Stderr receives the child's stderr unmodified. Defaults to os.Stderr.
	Stderr io.Writer

	// StderrCallback is called with every stderr line.
	StderrCallback func(string)

	// CallTimeout is the default deadline for every call. Zero waits
	// until the call context is done.
	CallTimeout time.Duration

	// ShutdownTimeout bounds how long Close waits for a clean exit before
	// killing the child.
	ShutdownTimeout time.Duration

	// Listeners observe session events.
	Listeners []session.Listener

	// SequentialDispatch answers inbound requests one at a time in arrival order.
	SequentialDispatch bool

	// MaxMessageSize caps the size of one inbound message. Zero uses the
	// framer default.
	MaxMessageSize int

	// NotificationBuffer is the capacity of the unhandled notification
	// channel. Zero uses the session default.
	NotificationBuffer int

	// ClientInfo identifies the client in initialize.
	ClientInfo *mcp.Implementation

	// Transport allows injecting a custom connection.
	// If nil, a subprocess is spawned.
	Transport Transport
}

// SessionOptions translates the options that belong to the session layer.
func (o *Options) SessionOptions() []session.Option {
	opts := make([]session.Option, 0, 8+len(o.Listeners))

	if o.CallTimeout > 0 {
		opts = append(opts, session.WithCallTimeout(o.CallTimeout))
	}

	if o.ShutdownTimeout > 0 {
		opts = append(opts, session.WithShutdownTimeout(o.ShutdownTimeout))
	}

	if o.SequentialDispatch {
		opts = append(opts, session.WithSequentialDispatch())
	}

	if o.MaxMessageSize > 0 {
		opts = append(opts, session.WithMaxMessageSize(o.MaxMessageSize))
	}

	if o.NotificationBuffer > 0 {
		opts = append(opts, session.WithNotificationBuffer(o.NotificationBuffer))
	}

	for _, l := range o.Listeners {
		opts = append(opts, session.WithListener(l))
	}

	return opts
}

// ClientImplementation returns ClientInfo or a default identity.
func (o *Options) ClientImplementation() *mcp.Implementation {
	if o.ClientInfo != nil {
		return o.ClientInfo
	}

	return &mcp.Implementation{Name: "stdio-rpc-go", Version: "0.1.0"}
}
