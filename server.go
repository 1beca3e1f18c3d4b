package stdiorpc

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/registry"
	"github.com/wagiedev/stdio-rpc-go/internal/server"
	"github.com/wagiedev/stdio-rpc-go/internal/session"
)

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	logger       *slog.Logger
	instructions string
	in           io.Reader
	out          io.Writer
	session      []session.Option
}

// WithServerLogger sets the server logger. Log to stderr, never stdout.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

// WithInstructions sets the instructions returned from initialize.
func WithInstructions(text string) ServerOption {
	return func(o *serverOptions) {
		o.instructions = text
	}
}

// WithStdio replaces os.Stdin and os.Stdout. A nil argument keeps the default.
func WithStdio(in io.Reader, out io.Writer) ServerOption {
	return func(o *serverOptions) {
		o.in = in
		o.out = out
	}
}

// WithServerSequentialDispatch answers requests one at a time, in order.
func WithServerSequentialDispatch() ServerOption {
	return func(o *serverOptions) {
		o.session = append(o.session, session.WithSequentialDispatch())
	}
}

// WithServerMaxMessageSize caps the size of one inbound message.
func WithServerMaxMessageSize(n int) ServerOption {
	return func(o *serverOptions) {
		o.session = append(o.session, session.WithMaxMessageSize(n))
	}
}

// Server answers requests on its own stdio.
//
// Tools, prompts and resources are added before Serve; the set is fixed
// once Serve starts.
type Server struct {
	name    string
	version string
	opts    serverOptions
	log     *slog.Logger

	mu        sync.Mutex
	tools     []*Tool
	prompts   []*Prompt
	resources []ResourceProvider
	running   *server.Server
}

// NewServer creates a server that identifies itself as name and version.
func NewServer(name, version string, opts ...ServerOption) *Server {
	s := &Server{name: name, version: version}

	for _, opt := range opts {
		opt(&s.opts)
	}

	s.log = s.opts.logger
	if s.log == nil {
		s.log = NopLogger()
	}

	return s
}

// AddTool registers tools. A later tool with the same name replaces an
// earlier one. Calls after Serve has started are ignored.
func (s *Server) AddTool(tools ...*Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running != nil {
		s.log.Warn("AddTool after Serve ignored")

		return
	}

	s.tools = append(s.tools, tools...)
}

// AddPrompt registers prompts. Calls after Serve has started are ignored.
func (s *Server) AddPrompt(prompts ...*Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running != nil {
		s.log.Warn("AddPrompt after Serve ignored")

		return
	}

	s.prompts = append(s.prompts, prompts...)
}

// SetResources replaces the resource providers. A read is answered by the
// first provider that serves the URI. Calls after Serve has started are
// ignored.
func (s *Server) SetResources(providers ...ResourceProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running != nil {
		s.log.Warn("SetResources after Serve ignored")

		return
	}

	s.resources = providers
}

// Serve answers requests until the input ends or ctx is done, both of which
// return nil. A Server serves once.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()

	if s.running != nil {
		s.mu.Unlock()

		return ErrServerStarted
	}

	regOpts := []registry.Option{
		registry.WithLogger(s.log),
		registry.WithTools(s.tools...),
		registry.WithPrompts(s.prompts...),
	}

	for _, p := range s.resources {
		regOpts = append(regOpts, registry.WithResources(p))
	}

	if s.opts.instructions != "" {
		regOpts = append(regOpts, registry.WithInstructions(s.opts.instructions))
	}

	reg := registry.New(s.name, s.version, regOpts...)

	srv := server.New(s.log, reg,
		server.WithIO(s.opts.in, s.opts.out),
		server.WithSessionOptions(s.opts.session...),
	)
	s.running = srv
	s.mu.Unlock()

	return srv.Serve(ctx)
}

// Initialized reports whether the client has completed the handshake.
func (s *Server) Initialized() bool {
	s.mu.Lock()
	srv := s.running
	s.mu.Unlock()

	if srv == nil {
		return false
	}

	lc := srv.Lifecycle()

	return lc != nil && lc.Initialized()
}

// Notify sends a notification to the client while Serve runs.
func (s *Server) Notify(ctx context.Context, method string, params any) error {
	s.mu.Lock()
	srv := s.running
	s.mu.Unlock()

	if srv == nil {
		return &errors.TransportError{Op: "send", Err: errors.ErrTransportClosed}
	}

	return srv.Notify(ctx, method, params)
}
