package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
)

const (
	// DefaultShutdownTimeout is how long Close waits for the peer to exit
	// after input ends before killing it.
	DefaultShutdownTimeout = 2 * time.Second

	// DefaultNotificationBuffer is the capacity of the Notifications channel.
	DefaultNotificationBuffer = 100

	// MethodCancelled is the notification a peer sends to abandon a request.
	MethodCancelled = "notifications/cancelled"
)

// Dispatcher answers inbound requests and notifications.
type Dispatcher interface {
	// Handle produces the response for a request. A nil response sends nothing.
	Handle(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message

	// HandleNotification reports whether a handler consumed the notification.
	HandleNotification(ctx context.Context, msg *jsonrpc.Message) bool
}

// CancelledParams is the payload of a cancellation notification.
type CancelledParams struct {
	RequestID json.RawMessage `json:"requestId"`
	Reason    string          `json:"reason,omitempty"`
}

type settings struct {
	dispatcher         Dispatcher
	listeners          []Listener
	callTimeout        time.Duration
	shutdownTimeout    time.Duration
	sequential         bool
	maxMessageSize     int
	notificationBuffer int
}

// Option configures a Session.
type Option func(*settings)

// WithDispatcher sets the handler for inbound requests and notifications.
// Without one, every inbound request is answered with MethodNotFound.
func WithDispatcher(d Dispatcher) Option {
	return func(s *settings) {
		s.dispatcher = d
	}
}

// WithListener adds an event listener.
func WithListener(l Listener) Option {
	return func(s *settings) {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
}

// WithCallTimeout sets the default deadline applied to every Call.
// Zero means calls wait until their context is done.
func WithCallTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.callTimeout = d
	}
}

// WithShutdownTimeout sets how long Close waits for a clean exit.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithSequentialDispatch handles inbound requests one at a time on the read
// loop instead of concurrently.
func WithSequentialDispatch() Option {
	return func(s *settings) {
		s.sequential = true
	}
}

// WithMaxMessageSize bounds a single inbound message.
func WithMaxMessageSize(n int) Option {
	return func(s *settings) {
		s.maxMessageSize = n
	}
}

// WithNotificationBuffer sets the capacity of the Notifications channel.
func WithNotificationBuffer(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.notificationBuffer = n
		}
	}
}

// CallOption configures a single Call.
type CallOption func(*callSettings)

type callSettings struct {
	timeout time.Duration
}

// WithTimeout overrides the session's default call deadline for one call.
func WithTimeout(d time.Duration) CallOption {
	return func(c *callSettings) {
		c.timeout = d
	}
}
