package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/stdio-rpc-go/internal/correlation"
	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/framer"
	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
)

const (
	// readChunkSize is the size of each raw read from the inbound stream.
	readChunkSize = 32 * 1024

	// cancelNotifyTimeout bounds the best-effort cancellation notice sent
	// when a call is abandoned.
	cancelNotifyTimeout = time.Second
)

// Session manages one JSON-RPC conversation over a Conn.
//
// A Session must be started with Start before use. It is safe for concurrent
// use: any number of goroutines may Call, Notify and Send while the read loop
// routes inbound traffic.
type Session struct {
	id   string
	log  *slog.Logger
	conn Conn
	cfg  settings

	framer *framer.Framer
	table  *correlation.Table

	// Notifications not consumed by the dispatcher.
	notifications chan *jsonrpc.Message

	state   atomic.Int32
	started atomic.Bool

	// Inbound requests being handled, for peer cancellation.
	inFlightMu sync.Mutex
	inFlight   map[jsonrpc.RequestID]context.CancelFunc

	errMu    sync.RWMutex
	closeErr error

	// Written by the read loop before readDone is closed.
	readErr  error
	readDone chan struct{}

	closeReq  chan error
	closeOnce sync.Once
	done      chan struct{}

	cancel  context.CancelFunc
	workers errgroup.Group
}

// New creates a session over conn. The session does not touch conn until Start.
func New(log *slog.Logger, conn Conn, opts ...Option) *Session {
	cfg := settings{
		shutdownTimeout:    DefaultShutdownTimeout,
		notificationBuffer: DefaultNotificationBuffer,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	id := ulid.Make().String()

	return &Session{
		id:            id,
		log:           log.With("component", "session", "session_id", id),
		conn:          conn,
		cfg:           cfg,
		framer:        framer.New(framer.WithMaxMessageSize(cfg.maxMessageSize)),
		table:         correlation.New(),
		notifications: make(chan *jsonrpc.Message, cfg.notificationBuffer),
		inFlight:      make(map[jsonrpc.RequestID]context.CancelFunc, 10),
		readDone:      make(chan struct{}),
		closeReq:      make(chan error, 1),
		done:          make(chan struct{}),
	}
}

// ID returns the session id used in logs and events.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done returns a channel that is closed when the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the session closed, or nil while it is open.
func (s *Session) Err() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()

	return s.closeErr
}

// Pending returns the number of outbound calls awaiting a response.
func (s *Session) Pending() int {
	return s.table.Len()
}

// Notifications returns inbound notifications that no dispatcher handler
// consumed. The channel is closed when the read loop stops.
func (s *Session) Notifications() <-chan *jsonrpc.Message {
	return s.notifications
}

// Start acquires the transport and begins routing inbound messages.
//
// The session lives until ctx is done, the inbound stream ends, or Close is
// called. Start fails with ErrAlreadyStarted on a second call and with a
// *errors.TransportError if the transport cannot be acquired; in that case
// the session is already closed when Start returns.
func (s *Session) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.ErrAlreadyStarted
	}

	s.log.Debug("Starting session")

	if ds, ok := s.conn.(DiagnosticSource); ok {
		ds.SetDiagnosticHandler(s.onDiagnostic)
	}

	if err := s.conn.Start(ctx); err != nil {
		s.log.Error("Failed to start transport", "error", err)

		terr := &errors.TransportError{Op: "spawn", Err: err}
		s.abort(terr)

		return terr
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.setState(StateRunning)

	go s.readLoop(runCtx)
	go s.supervise(ctx)

	s.log.Info("Session started")

	return nil
}

// Close ends the session: it fails every pending call, ends input, waits up
// to the shutdown timeout for the peer to exit and then kills it.
// It's safe to call Close multiple times; every call blocks until the
// session is closed.
func (s *Session) Close() error {
	if s.started.CompareAndSwap(false, true) {
		s.abort(errors.ErrSessionClosed)

		return nil
	}

	s.requestClose(errors.ErrSessionClosed)
	<-s.done

	return nil
}

// Send serializes and writes one message.
//
// It fails with a *errors.TransportError wrapping ErrTransportClosed unless
// the session is running. A failed write closes the session.
func (s *Session) Send(ctx context.Context, msg *jsonrpc.Message) error {
	if s.State() != StateRunning {
		return &errors.TransportError{Op: "send", Err: errors.ErrTransportClosed}
	}

	data, err := framer.Serialize(msg)
	if err != nil {
		return err
	}

	if err := s.conn.SendMessage(ctx, data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		s.log.Error("Failed to write message", "error", err)

		terr := &errors.TransportError{Op: "write", Err: err}
		s.requestClose(terr)

		return terr
	}

	s.log.Debug("Sent message", "kind", msg.Kind().String(), "method", msg.Method)

	return nil
}

// Call sends a request and waits for its response.
//
// A deadline from WithTimeout (or the session's default call timeout) fails
// the call with ErrRequestTimeout and forgets the id; a response arriving
// later is reported as a protocol warning. An error response is returned as
// a *errors.ApplicationError.
func (s *Session) Call(
	ctx context.Context,
	method string,
	params any,
	opts ...CallOption,
) (*jsonrpc.Message, error) {
	cs := callSettings{timeout: s.cfg.callTimeout}
	for _, opt := range opts {
		opt(&cs)
	}

	if s.State() != StateRunning {
		return nil, fmt.Errorf("call %s: %w", method, s.closedError())
	}

	id := s.table.NextID()

	msg, err := jsonrpc.NewRequest(id, method, params)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	call, err := s.table.Register(id)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	if err := s.Send(ctx, msg); err != nil {
		s.table.Remove(id)

		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	waitCtx := ctx

	if cs.timeout > 0 {
		var cancel context.CancelFunc

		waitCtx, cancel = context.WithTimeout(ctx, cs.timeout)
		defer cancel()
	}

	resp, err := call.Wait(waitCtx)
	if err != nil {
		if s.table.Remove(id) {
			s.notifyCancelled(ctx, id, err)

			if ctxErr := ctx.Err(); ctxErr != nil {
				s.log.Debug("Request cancelled", "id", id.String(), "method", method)

				return nil, fmt.Errorf("call %s: %w", method, ctxErr)
			}

			s.log.Warn("Request timed out", "id", id.String(), "method", method, "timeout", cs.timeout)

			return nil, fmt.Errorf("call %s: %w after %s", method, errors.ErrRequestTimeout, cs.timeout)
		}

		// Completed concurrently with the deadline, or drained.
		resp, err = call.Wait(context.Background())
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
	}

	if resp.Error != nil {
		s.log.Debug("Request returned error", "id", id.String(), "method", method, "code", int(resp.Error.Code))

		return nil, errors.FromErrorObject(resp.Error)
	}

	return resp, nil
}

// Notify sends a notification.
func (s *Session) Notify(ctx context.Context, method string, params any) error {
	msg, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("notify %s: %w", method, err)
	}

	if err := s.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify %s: %w", method, err)
	}

	return nil
}

// readLoop is the only consumer of the inbound stream.
func (s *Session) readLoop(ctx context.Context) {
	defer close(s.readDone)
	defer close(s.notifications)
	defer s.log.Debug("Read loop stopped")

	r := s.conn.Reader()
	buf := make([]byte, readChunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			msgs, perrs := s.framer.Feed(buf[:n])

			for _, perr := range perrs {
				s.log.Warn("Discarding malformed message", "error", perr.Err, "bytes", len(perr.Raw))
				s.emit(Event{Kind: EventParseError, Err: perr})
			}

			for _, msg := range msgs {
				s.route(ctx, msg)
			}
		}

		if err != nil {
			s.readErr = s.streamEnded(err)

			return
		}
	}
}

// streamEnded reaps the peer and converts the read error into a close reason.
func (s *Session) streamEnded(readErr error) error {
	if waitErr := s.conn.Wait(); waitErr != nil {
		s.log.Error("Peer exited with error", "error", waitErr)

		return waitErr
	}

	if stderrors.Is(readErr, io.EOF) {
		s.log.Info("Inbound stream ended")
	} else {
		s.log.Error("Failed to read inbound stream", "error", readErr)
	}

	return &errors.TransportError{Op: "read", Err: readErr}
}

// supervise waits for the first reason to close and tears the session down.
func (s *Session) supervise(ctx context.Context) {
	var (
		reason   error
		graceful bool
	)

	select {
	case <-s.readDone:
		reason = s.readErr

	case reason = <-s.closeReq:
		graceful = true

	case <-ctx.Done():
		reason = ctx.Err()
		graceful = true
	}

	s.shutdown(reason, graceful)
}

func (s *Session) shutdown(reason error, graceful bool) {
	s.log.Debug("Closing session", "reason", reason)

	s.setErr(reason)

	if n := s.table.DrainAll(reason); n > 0 {
		s.log.Debug("Failed pending calls", "count", n)
	}

	// Requests read before the stream ended still get their answers.
	if !graceful && !s.waitWorkers(s.cfg.shutdownTimeout) {
		s.log.Warn("Handlers still running after stream end", "timeout", s.cfg.shutdownTimeout)
	}

	s.setState(StateClosing)

	if graceful {
		if err := s.conn.EndInput(); err != nil {
			s.log.Debug("Failed to end input", "error", err)
		}

		select {
		case <-s.readDone:
		case <-time.After(s.cfg.shutdownTimeout):
			s.log.Warn("Peer did not exit after input ended, killing", "timeout", s.cfg.shutdownTimeout)
		}
	}

	s.cancel()

	if err := s.conn.Close(); err != nil {
		s.log.Debug("Failed to close transport", "error", err)
	}

	<-s.readDone

	_ = s.workers.Wait()

	s.setState(StateClosed)
	s.closeDone()
	s.log.Info("Session closed", "reason", reason)
}

// waitWorkers waits for in-flight request handlers, up to timeout.
func (s *Session) waitWorkers(timeout time.Duration) bool {
	finished := make(chan struct{})

	go func() {
		_ = s.workers.Wait()

		close(finished)
	}()

	select {
	case <-finished:
		return true
	case <-time.After(timeout):
		return false
	}
}

// abort closes a session whose read loop never ran.
func (s *Session) abort(reason error) {
	s.setErr(reason)
	s.table.DrainAll(reason)
	s.setState(StateClosed)

	s.closeOnce.Do(func() {
		close(s.notifications)
		close(s.readDone)
		close(s.done)
	})
}

func (s *Session) closeDone() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func (s *Session) requestClose(reason error) {
	select {
	case s.closeReq <- reason:
	default:
	}
}

func (s *Session) route(ctx context.Context, msg *jsonrpc.Message) {
	switch msg.Kind() {
	case jsonrpc.KindResponse:
		s.log.Debug("Received response", "id", msg.ID.String())

		if err := s.table.Resolve(*msg.ID, msg); err != nil {
			s.warn(err)
		}

	case jsonrpc.KindRequest:
		s.log.Debug("Received request", "id", msg.ID.String(), "method", msg.Method)

		if s.cfg.sequential {
			s.handleRequest(ctx, msg)

			return
		}

		s.workers.Go(func() error {
			s.handleRequest(ctx, msg)

			return nil
		})

	case jsonrpc.KindNotification:
		s.log.Debug("Received notification", "method", msg.Method)
		s.handleNotification(ctx, msg)

	default:
		s.log.Warn("Dropping message of unknown kind")
	}
}

func (s *Session) handleRequest(ctx context.Context, msg *jsonrpc.Message) {
	id := *msg.ID
	opCtx, cancel := context.WithCancel(ctx)

	s.inFlightMu.Lock()
	s.inFlight[id] = cancel
	s.inFlightMu.Unlock()

	defer func() {
		s.inFlightMu.Lock()
		delete(s.inFlight, id)
		s.inFlightMu.Unlock()

		cancel()
	}()

	var resp *jsonrpc.Message

	if s.cfg.dispatcher == nil {
		resp = jsonrpc.NewMethodNotFoundResponse(id, msg.Method)
	} else {
		resp = s.cfg.dispatcher.Handle(opCtx, msg)
	}

	if opCtx.Err() != nil && ctx.Err() == nil {
		s.log.Debug("Request cancelled by peer, not responding", "id", id.String())

		return
	}

	if resp == nil {
		return
	}

	if err := s.Send(ctx, resp); err != nil {
		if ctx.Err() != nil || s.State() != StateRunning {
			s.log.Debug("Could not send response during shutdown", "id", id.String(), "error", err)

			return
		}

		s.log.Error("Failed to send response", "id", id.String(), "error", err)
	}
}

func (s *Session) handleNotification(ctx context.Context, msg *jsonrpc.Message) {
	if msg.Method == MethodCancelled {
		s.handleCancelled(msg)

		return
	}

	if d := s.cfg.dispatcher; d != nil && d.HandleNotification(ctx, msg) {
		return
	}

	select {
	case s.notifications <- msg:
	default:
		s.log.Warn("Notification buffer full, dropping", "method", msg.Method)
	}
}

// handleCancelled cancels the context of an inbound request the peer abandoned.
func (s *Session) handleCancelled(msg *jsonrpc.Message) {
	var params CancelledParams
	if err := msg.DecodeParams(&params); err != nil || len(params.RequestID) == 0 {
		s.log.Warn("Ignoring malformed cancellation", "error", err)

		return
	}

	var id jsonrpc.RequestID
	if err := json.Unmarshal(params.RequestID, &id); err != nil {
		s.log.Warn("Ignoring cancellation with invalid request id", "error", err)

		return
	}

	s.inFlightMu.Lock()
	cancel, exists := s.inFlight[id]
	s.inFlightMu.Unlock()

	if !exists {
		s.log.Debug("Cancellation for unknown request", "id", id.String())

		return
	}

	s.log.Debug("Cancelling request", "id", id.String(), "reason", params.Reason)
	cancel()
}

// notifyCancelled tells the peer that the caller gave up on id.
func (s *Session) notifyCancelled(ctx context.Context, id jsonrpc.RequestID, reason error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelNotifyTimeout)
	defer cancel()

	params := map[string]any{
		"requestId": id,
		"reason":    reason.Error(),
	}

	if err := s.Notify(ctx, MethodCancelled, params); err != nil {
		s.log.Debug("Could not send cancellation", "id", id.String(), "error", err)
	}
}

func (s *Session) warn(err error) {
	s.log.Warn("Protocol warning", "error", err)
	s.emit(Event{Kind: EventProtocolWarning, Err: err})
}

func (s *Session) onDiagnostic(line string) {
	s.log.Debug("Peer diagnostic", "line", line)
	s.emit(Event{Kind: EventDiagnostic, Line: line})
}

func (s *Session) setState(state State) {
	if State(s.state.Swap(int32(state))) == state {
		return
	}

	s.log.Debug("Session state changed", "state", state.String())
	s.emit(Event{Kind: EventStateChanged, State: state})
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	if s.closeErr == nil {
		s.closeErr = err
	}
}

func (s *Session) closedError() error {
	if err := s.Err(); err != nil {
		return &errors.SessionClosedError{Reason: err}
	}

	return &errors.TransportError{Op: "send", Err: errors.ErrTransportClosed}
}

func (s *Session) emit(ev Event) {
	ev.SessionID = s.id

	for _, l := range s.cfg.listeners {
		s.notifyListener(l, ev)
	}
}

func (s *Session) notifyListener(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Listener panicked", "event", ev.Kind.String(), "panic", r)
		}
	}()

	l(ev)
}
