package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/stdio-rpc-go/internal/config"
	"github.com/wagiedev/stdio-rpc-go/internal/dispatch"
	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
	"github.com/wagiedev/stdio-rpc-go/internal/registry"
	"github.com/wagiedev/stdio-rpc-go/internal/session"
	"github.com/wagiedev/stdio-rpc-go/internal/subprocess"
)

// Client talks to one server over one session.
type Client struct {
	log     *slog.Logger
	options *config.Options
	session *session.Session

	mu         sync.Mutex
	connected  bool
	closed     bool
	initResult *mcp.InitializeResult
}

// New creates a new client.
//
// The client is not connected after creation. Call Start to spawn the server.
func New() *Client {
	return &Client{}
}

// Start spawns the server at path (or attaches to options.Transport) and
// begins routing its messages.
//
// Returns RuntimeNotFoundError if the runtime cannot be located, or a
// TransportError if the process fails to start.
func (c *Client) Start(ctx context.Context, path string, options *config.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClientClosed
	}

	if c.connected {
		return errors.ErrClientAlreadyConnected
	}

	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	c.log = log.With("component", "client")
	c.options = options

	var transport config.Transport

	if options.Transport != nil {
		transport = options.Transport

		c.log.Debug("Using injected custom transport")
	} else {
		transport = subprocess.New(log, path, options)
	}

	// Servers may ping the client; nothing else is answered.
	d := dispatch.New(log)
	d.Register(registry.MethodPing, func(context.Context, json.RawMessage) (any, error) {
		return struct{}{}, nil
	})

	opts := append(options.SessionOptions(), session.WithDispatcher(d))
	c.session = session.New(log, transport, opts...)

	if err := c.session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	c.connected = true
	c.log.Info("Client started", "server", path, "session_id", c.session.ID())

	return nil
}

// Initialize performs the initialize handshake and sends
// notifications/initialized.
func (c *Client) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	params := &mcp.InitializeParams{
		ProtocolVersion: registry.LatestProtocolVersion,
		ClientInfo:      c.options.ClientImplementation(),
		Capabilities:    &mcp.ClientCapabilities{},
	}

	result, err := call[mcp.InitializeResult](ctx, c, registry.MethodInitialize, params)
	if err != nil {
		return nil, err
	}

	if err := c.session.Notify(ctx, registry.MethodInitialized, nil); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.initResult = result
	c.mu.Unlock()

	if result.ServerInfo != nil {
		c.log.Info("Server initialized",
			"server", result.ServerInfo.Name,
			"server_version", result.ServerInfo.Version,
			"protocol_version", result.ProtocolVersion,
		)
	}

	return result, nil
}

// ServerInfo returns the initialize result, or nil before Initialize.
func (c *Client) ServerInfo() *mcp.InitializeResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.initResult
}

// ListTools returns the server's tool descriptors.
func (c *Client) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	result, err := call[mcp.ListToolsResult](ctx, c, registry.MethodToolsList, &mcp.ListToolsParams{})
	if err != nil {
		return nil, err
	}

	return result.Tools, nil
}

// CallTool runs a tool. A tool-level failure is a result with IsError set;
// an unknown tool or rejected arguments is an *errors.ApplicationError.
func (c *Client) CallTool(ctx context.Context, name string, args any) (*mcp.CallToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}

	params := map[string]any{"name": name, "arguments": args}

	return call[mcp.CallToolResult](ctx, c, registry.MethodToolsCall, params)
}

// ListResources returns the server's resources.
func (c *Client) ListResources(ctx context.Context) ([]*mcp.Resource, error) {
	result, err := call[mcp.ListResourcesResult](ctx, c, registry.MethodResourcesList, &mcp.ListResourcesParams{})
	if err != nil {
		return nil, err
	}

	return result.Resources, nil
}

// ReadResource reads one resource.
func (c *Client) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return call[mcp.ReadResourceResult](ctx, c, registry.MethodResourcesRead, &mcp.ReadResourceParams{URI: uri})
}

// ListPrompts returns the server's prompts.
func (c *Client) ListPrompts(ctx context.Context) ([]*mcp.Prompt, error) {
	result, err := call[mcp.ListPromptsResult](ctx, c, registry.MethodPromptsList, &mcp.ListPromptsParams{})
	if err != nil {
		return nil, err
	}

	return result.Prompts, nil
}

// GetPrompt renders a prompt.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	params := &mcp.GetPromptParams{Name: name, Arguments: args}

	return call[mcp.GetPromptResult](ctx, c, registry.MethodPromptsGet, params)
}

// Call sends an arbitrary request and returns the raw response.
func (c *Client) Call(
	ctx context.Context,
	method string,
	params any,
	opts ...session.CallOption,
) (*jsonrpc.Message, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	return c.session.Call(ctx, method, params, opts...)
}

// Notify sends a notification.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	if err := c.ready(); err != nil {
		return err
	}

	return c.session.Notify(ctx, method, params)
}

// Notifications returns server notifications. The channel is closed when
// the session ends.
func (c *Client) Notifications() <-chan *jsonrpc.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		closed := make(chan *jsonrpc.Message)
		close(closed)

		return closed
	}

	return c.session.Notifications()
}

// Done is closed when the session has ended.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		closed := make(chan struct{})
		close(closed)

		return closed
	}

	return c.session.Done()
}

// Err returns why the session ended, or nil while it runs.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}

	return c.session.Err()
}

// Close ends the session and stops the server. It's safe to call Close
// multiple times.
func (c *Client) Close() error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	c.connected = false
	sess := c.session
	c.mu.Unlock()

	if sess == nil {
		return nil
	}

	if c.log != nil {
		c.log.Info("Closing client")
	}

	return sess.Close()
}

func (c *Client) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClientClosed
	}

	if !c.connected {
		return errors.ErrClientNotConnected
	}

	return nil
}

// call sends a request and decodes its result into R.
func call[R any](ctx context.Context, c *Client, method string, params any) (*R, error) {
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}

	var result R
	if err := resp.DecodeResult(&result); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}

	return &result, nil
}
