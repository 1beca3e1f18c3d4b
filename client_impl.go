package stdiorpc

import (
	"context"
	"iter"

	"github.com/wagiedev/stdio-rpc-go/internal/client"
)

// clientWrapper wraps the internal client to adapt it to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl() Client {
	return &clientWrapper{impl: client.New()}
}

// Start spawns the server and begins routing its messages.
func (c *clientWrapper) Start(ctx context.Context, path string, opts ...Option) error {
	return c.impl.Start(ctx, path, applyOptions(opts))
}

// Initialize performs the initialize handshake.
func (c *clientWrapper) Initialize(ctx context.Context) (*InitializeResult, error) {
	return c.impl.Initialize(ctx)
}

// ServerInfo returns the initialize result.
func (c *clientWrapper) ServerInfo() *InitializeResult {
	return c.impl.ServerInfo()
}

// ListTools returns the server's tool descriptors.
func (c *clientWrapper) ListTools(ctx context.Context) ([]*McpTool, error) {
	return c.impl.ListTools(ctx)
}

// CallTool runs a tool.
func (c *clientWrapper) CallTool(ctx context.Context, name string, args any) (*CallToolResult, error) {
	return c.impl.CallTool(ctx, name, args)
}

// ListResources returns the server's resources.
func (c *clientWrapper) ListResources(ctx context.Context) ([]*McpResource, error) {
	return c.impl.ListResources(ctx)
}

// ReadResource reads one resource.
func (c *clientWrapper) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	return c.impl.ReadResource(ctx, uri)
}

// ListPrompts returns the server's prompts.
func (c *clientWrapper) ListPrompts(ctx context.Context) ([]*McpPrompt, error) {
	return c.impl.ListPrompts(ctx)
}

// GetPrompt renders a prompt.
func (c *clientWrapper) GetPrompt(ctx context.Context, name string, args map[string]string) (*GetPromptResult, error) {
	return c.impl.GetPrompt(ctx, name, args)
}

// Call sends an arbitrary request.
func (c *clientWrapper) Call(ctx context.Context, method string, params any, opts ...CallOption) (*Message, error) {
	return c.impl.Call(ctx, method, params, opts...)
}

// Notify sends a notification.
func (c *clientWrapper) Notify(ctx context.Context, method string, params any) error {
	return c.impl.Notify(ctx, method, params)
}

// Notifications returns unhandled server notifications.
func (c *clientWrapper) Notifications() <-chan *Message {
	return c.impl.Notifications()
}

// ReceiveNotifications yields server notifications.
func (c *clientWrapper) ReceiveNotifications(ctx context.Context) iter.Seq[*Message] {
	return NotificationsFromChannel(ctx, c.impl.Notifications())
}

// Done is closed when the session has ended.
func (c *clientWrapper) Done() <-chan struct{} {
	return c.impl.Done()
}

// Err returns why the session ended.
func (c *clientWrapper) Err() error {
	return c.impl.Err()
}

// Close ends the session.
func (c *clientWrapper) Close() error {
	return c.impl.Close()
}
