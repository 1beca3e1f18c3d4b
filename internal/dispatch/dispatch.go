package dispatch

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
	"github.com/wagiedev/stdio-rpc-go/internal/session"
)

// Handler answers a request. The returned value is marshaled as the result.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// NotificationHandler consumes a notification. It never produces a response.
type NotificationHandler func(ctx context.Context, params json.RawMessage)

// Dispatcher maps method names to handlers. It is safe for concurrent use.
type Dispatcher struct {
	log *slog.Logger

	mu            sync.RWMutex
	handlers      map[string]Handler
	notifications map[string]NotificationHandler
}

// Compile-time verification that Dispatcher implements session.Dispatcher.
var _ session.Dispatcher = (*Dispatcher)(nil)

// New creates an empty dispatcher.
func New(log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Dispatcher{
		log:           log.With("component", "dispatch"),
		handlers:      make(map[string]Handler, 10),
		notifications: make(map[string]NotificationHandler, 4),
	}
}

// Register sets the handler for method, replacing any previous one.
func (d *Dispatcher) Register(method string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[method]; exists {
		d.log.Debug("Replacing request handler", "method", method)
	}

	d.handlers[method] = h
}

// RegisterNotification sets the handler for a notification method.
func (d *Dispatcher) RegisterNotification(method string, h NotificationHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.notifications[method] = h
}

// Methods returns the sorted names of all request methods with a handler.
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	methods := make([]string, 0, len(d.handlers))
	for m := range d.handlers {
		methods = append(methods, m)
	}

	slices.Sort(methods)

	return methods
}

// Handle runs the handler for a request and builds its response.
func (d *Dispatcher) Handle(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	id := *msg.ID

	d.mu.RLock()
	h, exists := d.handlers[msg.Method]
	d.mu.RUnlock()

	if !exists {
		d.log.Debug("No handler for method", "method", msg.Method)

		return jsonrpc.NewMethodNotFoundResponse(id, msg.Method)
	}

	result, err := d.invoke(ctx, msg.Method, h, msg.Params)
	if err != nil {
		d.log.Debug("Handler returned error", "method", msg.Method, "id", id.String(), "error", err)

		return ErrorResponse(id, err)
	}

	resp, err := jsonrpc.NewResultResponse(id, result)
	if err != nil {
		d.log.Error("Failed to encode result", "method", msg.Method, "error", err)

		return ErrorResponse(id, err)
	}

	return resp
}

// HandleNotification runs the handler for a notification, if any, and
// reports whether one was registered.
func (d *Dispatcher) HandleNotification(ctx context.Context, msg *jsonrpc.Message) bool {
	d.mu.RLock()
	h, exists := d.notifications[msg.Method]
	d.mu.RUnlock()

	if !exists {
		d.log.Debug("Ignoring notification without handler", "method", msg.Method)

		return false
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("Notification handler panicked", "method", msg.Method, "panic", r)
			}
		}()

		h(ctx, msg.Params)
	}()

	return true
}

func (d *Dispatcher) invoke(
	ctx context.Context,
	method string,
	h Handler,
	params json.RawMessage,
) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Handler panicked", "method", method, "panic", r, "stack", string(debug.Stack()))

			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return h(ctx, params)
}

// ErrorResponse converts a handler error into an error response.
func ErrorResponse(id jsonrpc.RequestID, err error) *jsonrpc.Message {
	obj := ToErrorObject(err)

	return jsonrpc.NewErrorResponse(id, obj.Code, obj.Message, obj.Data)
}

// ToErrorObject maps an error to its wire form.
func ToErrorObject(err error) *jsonrpc.ErrorObject {
	if appErr, ok := stderrors.AsType[*errors.ApplicationError](err); ok {
		return appErr.ErrorObject()
	}

	switch {
	case stderrors.Is(err, errors.ErrInvalidParams):
		return &jsonrpc.ErrorObject{Code: jsonrpc.ErrorCodeInvalidParams, Message: err.Error()}
	case stderrors.Is(err, errors.ErrUnknownResource):
		return &jsonrpc.ErrorObject{Code: jsonrpc.ErrorCodeInvalidRequest, Message: err.Error()}
	default:
		return &jsonrpc.ErrorObject{
			Code:    jsonrpc.ErrorCodeInternalError,
			Message: "Internal error",
			Data:    err.Error(),
		}
	}
}

// Typed adapts a function with typed params and result into a Handler.
// Params that do not decode into P are rejected with InvalidParams before
// fn runs. Absent or null params leave P at its zero value.
func Typed[P, R any](fn func(ctx context.Context, params P) (R, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params P

		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInvalidParams, nil, "Invalid params: %v", err)
			}
		}

		return fn(ctx, params)
	}
}

// TypedNotification adapts a function with typed params into a
// NotificationHandler. Params that fail to decode are dropped.
func TypedNotification[P any](log *slog.Logger, fn func(ctx context.Context, params P)) NotificationHandler {
	return func(ctx context.Context, raw json.RawMessage) {
		var params P

		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &params); err != nil {
				log.Warn("Dropping notification with invalid params", "error", err)

				return
			}
		}

		fn(ctx, params)
	}
}
