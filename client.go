package stdiorpc

import (
	"context"
	"iter"
)

// Client is a connection to one server process.
//
// Lifecycle: Clients are single-use. After Close(), create a new client with
// NewClient() or Spawn().
//
// Example usage:
//
//	client := NewClient()
//	defer client.Close()
//
//	if err := client.Start(ctx, "build/index.js", WithLogger(slog.Default())); err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := client.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	tools, err := client.ListTools(ctx)
type Client interface {
	// Start spawns the server at path and begins routing its messages.
	// Must be called before any other methods.
	// Returns RuntimeNotFoundError if the runtime is not found, or
	// TransportError if the process cannot be started.
	Start(ctx context.Context, path string, opts ...Option) error

	// Initialize performs the initialize handshake.
	Initialize(ctx context.Context) (*InitializeResult, error)

	// ServerInfo returns the initialize result, or nil before Initialize.
	ServerInfo() *InitializeResult

	// ListTools returns the server's tool descriptors.
	ListTools(ctx context.Context) ([]*McpTool, error)

	// CallTool runs a tool. A nil args sends an empty object.
	// A tool-level failure is a result with IsError set.
	CallTool(ctx context.Context, name string, args any) (*CallToolResult, error)

	// ListResources returns the server's resources.
	ListResources(ctx context.Context) ([]*McpResource, error)

	// ReadResource reads one resource.
	ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error)

	// ListPrompts returns the server's prompts.
	ListPrompts(ctx context.Context) ([]*McpPrompt, error)

	// GetPrompt renders a prompt.
	GetPrompt(ctx context.Context, name string, args map[string]string) (*GetPromptResult, error)

	// Call sends an arbitrary request and waits for its response.
	// An error response is returned as *ApplicationError.
	Call(ctx context.Context, method string, params any, opts ...CallOption) (*Message, error)

	// Notify sends a notification.
	Notify(ctx context.Context, method string, params any) error

	// Notifications returns the server notifications no handler consumed.
	// The channel is closed when the session ends.
	Notifications() <-chan *Message

	// ReceiveNotifications yields server notifications until the session
	// ends or ctx is done.
	ReceiveNotifications(ctx context.Context) iter.Seq[*Message]

	// Done is closed when the session has ended.
	Done() <-chan struct{}

	// Err returns why the session ended, or nil while it runs.
	Err() error

	// Close ends the session and stops the server.
	// After Close(), the client cannot be reused. Safe to call multiple times.
	Close() error
}

// NewClient creates a new client. Call Start to spawn the server.
func NewClient() Client {
	return newClientImpl()
}

// Spawn starts the server at path and performs the initialize handshake.
// The returned client is ready for use; the caller must Close it.
func Spawn(ctx context.Context, path string, opts ...Option) (Client, error) {
	client := NewClient()

	if err := client.Start(ctx, path, opts...); err != nil {
		return nil, err
	}

	if _, err := client.Initialize(ctx); err != nil {
		_ = client.Close()

		return nil, err
	}

	return client, nil
}
