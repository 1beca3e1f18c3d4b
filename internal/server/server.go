// Package server answers requests on the process's own stdin/stdout using a
// registry of tools, resources and prompts.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/wagiedev/stdio-rpc-go/internal/dispatch"
	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/registry"
	"github.com/wagiedev/stdio-rpc-go/internal/session"
)

// Server runs one session over stdio and answers it from a registry.
type Server struct {
	log         *slog.Logger
	registry    *registry.Registry
	in          io.Reader
	out         io.Writer
	sessionOpts []session.Option

	mu        sync.Mutex
	session   *session.Session
	lifecycle *registry.Lifecycle
}

// Option configures a Server.
type Option func(*Server)

// WithIO replaces os.Stdin and os.Stdout. A nil argument keeps the default.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		if in != nil {
			s.in = in
		}

		if out != nil {
			s.out = out
		}
	}
}

// WithSessionOptions passes options through to the session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(s *Server) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// New creates a server for reg.
func New(log *slog.Logger, reg *registry.Registry, opts ...Option) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		log:      log.With("component", "server"),
		registry: reg,
		in:       os.Stdin,
		out:      os.Stdout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Serve answers requests until the input ends or ctx is done. Both are a
// clean exit and return nil.
func (s *Server) Serve(ctx context.Context) error {
	d := dispatch.New(s.log)
	lc := s.registry.Install(d)

	opts := append(slices.Clone(s.sessionOpts), session.WithDispatcher(d))
	sess := session.New(s.log, session.NewStdioConn(s.in, s.out), opts...)

	s.mu.Lock()
	s.session = sess
	s.lifecycle = lc
	s.mu.Unlock()

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	s.log.Info("Server running on stdio",
		"name", s.registry.Name(),
		"version", s.registry.Version(),
		"session_id", sess.ID(),
	)

	go func() {
		for msg := range sess.Notifications() {
			s.log.Debug("Ignoring notification", "method", msg.Method)
		}
	}()

	<-sess.Done()

	if err := sess.Err(); !isCleanExit(err) {
		return fmt.Errorf("serve: %w", err)
	}

	s.log.Info("Server stopped")

	return nil
}

// Lifecycle returns the handshake state of the current session, or nil
// before Serve.
func (s *Server) Lifecycle() *registry.Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lifecycle
}

// Notify sends a notification to the client. It fails unless Serve is running.
func (s *Server) Notify(ctx context.Context, method string, params any) error {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	if sess == nil {
		return &errors.TransportError{Op: "send", Err: errors.ErrTransportClosed}
	}

	return sess.Notify(ctx, method, params)
}

func isCleanExit(err error) bool {
	return err == nil ||
		stderrors.Is(err, io.EOF) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, errors.ErrSessionClosed)
}
