package stdiorpc

import (
	"io"
	"log/slog"
	"time"
)

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithClientInfo sets the name and version sent in initialize.
func WithClientInfo(name, version string) Option {
	return func(o *Options) {
		o.ClientInfo = &Implementation{Name: name, Version: version}
	}
}

// ===== Process =====

// WithRuntime sets the interpreter that runs the server script, e.g. "node"
// or an absolute path. If not set it is inferred from the script extension.
func WithRuntime(runtime string) Option {
	return func(o *Options) {
		o.Runtime = runtime
	}
}

// WithMinimumRuntimeVersion logs a warning when the runtime reports an
// older version than v.
func WithMinimumRuntimeVersion(v string) Option {
	return func(o *Options) {
		o.MinimumRuntimeVersion = v
	}
}

// WithArgs appends arguments after the script path.
func WithArgs(args ...string) Option {
	return func(o *Options) {
		o.Args = append(o.Args, args...)
	}
}

// WithEnv adds environment variables for the server. The parent environment
// is inherited.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}

		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithDir sets the working directory of the server.
func WithDir(dir string) Option {
	return func(o *Options) {
		o.Cwd = dir
	}
}

// WithStderr sets where the server's stderr is copied. Defaults to os.Stderr.
func WithStderr(w io.Writer) Option {
	return func(o *Options) {
		o.Stderr = w
	}
}

// WithStderrCallback sets a callback invoked with every stderr line.
func WithStderrCallback(fn func(string)) Option {
	return func(o *Options) {
		o.StderrCallback = fn
	}
}

// WithTransport injects a connection instead of spawning a process.
func WithTransport(t Transport) Option {
	return func(o *Options) {
		o.Transport = t
	}
}

// ===== Session =====

// WithCallTimeout sets the default deadline of every call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.CallTimeout = d
	}
}

// WithShutdownTimeout bounds how long Close waits for the server to exit
// before killing it.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ShutdownTimeout = d
	}
}

// WithListener registers a session event listener.
func WithListener(l Listener) Option {
	return func(o *Options) {
		o.Listeners = append(o.Listeners, l)
	}
}

// WithSequentialDispatch answers server requests one at a time, in order.
func WithSequentialDispatch() Option {
	return func(o *Options) {
		o.SequentialDispatch = true
	}
}

// WithMaxMessageSize caps the size of one inbound message.
func WithMaxMessageSize(n int) Option {
	return func(o *Options) {
		o.MaxMessageSize = n
	}
}

// WithNotificationBuffer sets how many unhandled notifications are buffered
// for Notifications. Notifications arriving while the buffer is full are
// dropped.
func WithNotificationBuffer(n int) Option {
	return func(o *Options) {
		o.NotificationBuffer = n
	}
}
