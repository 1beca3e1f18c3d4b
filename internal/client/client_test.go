package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/stdio-rpc-go/internal/config"
	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
	"github.com/wagiedev/stdio-rpc-go/internal/registry"
	"github.com/wagiedev/stdio-rpc-go/internal/server"
	"github.com/wagiedev/stdio-rpc-go/internal/session"
)

type memoResources struct{}

func (memoResources) ListResources(context.Context) ([]*mcp.Resource, error) {
	return []*mcp.Resource{{URI: "memo:///1", Name: "First memo", MIMEType: "text/plain"}}, nil
}

func (memoResources) ReadResource(_ context.Context, uri string) (*mcp.ReadResourceResult, error) {
	if uri != "memo:///1" {
		return nil, fmt.Errorf("%s: %w", uri, errors.ErrUnknownResource)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "text/plain", Text: "remember the milk"}},
	}, nil
}

func testRegistry() *registry.Registry {
	add := &registry.Tool{
		Descriptor: registry.NewTool("add", "Adds two numbers", registry.SimpleSchema(map[string]string{
			"a": "float64",
			"b": "float64",
		})),
		Handler: func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				A float64 `json:"a"`
				B float64 `json:"b"`
			}

			if err := registry.BindArguments(req, &args); err != nil {
				return nil, err
			}

			return registry.TextResult(fmt.Sprintf("%g", args.A+args.B)), nil
		},
	}

	broken := &registry.Tool{
		Descriptor: registry.NewTool("broken", "Reports an upstream failure", nil),
		Handler: func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return registry.ErrorResult("upstream unavailable"), nil
		},
	}

	recap := &registry.Prompt{
		Descriptor: &mcp.Prompt{Name: "recap", Description: "Recaps memos"},
		Handler: func(context.Context, map[string]string) (*mcp.GetPromptResult, error) {
			return &mcp.GetPromptResult{
				Description: "Recap",
				Messages: []*mcp.PromptMessage{
					{Role: "user", Content: &mcp.TextContent{Text: "Recap my memos."}},
				},
			}, nil
		},
	}

	return registry.New("memo-server", "0.2.0",
		registry.WithTools(add, broken),
		registry.WithResources(memoResources{}),
		registry.WithPrompts(recap),
	)
}

// connect wires a client to an in-process server over a pair of pipes.
func connect(t *testing.T, opts *config.Options) *Client {
	t.Helper()

	toServerR, toServerW := io.Pipe()
	toClientR, toClientW := io.Pipe()

	srv := server.New(slog.New(slog.DiscardHandler), testRegistry(), server.WithIO(toServerR, toClientW))

	serveDone := make(chan error, 1)

	go func() {
		serveDone <- srv.Serve(context.Background())
	}()

	if opts == nil {
		opts = &config.Options{}
	}

	opts.Transport = session.NewStdioConn(toClientR, toServerW)

	c := New()
	require.NoError(t, c.Start(context.Background(), "memo-server", opts))

	t.Cleanup(func() {
		_ = c.Close()
		_ = toServerW.Close()

		select {
		case err := <-serveDone:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}

		_ = toClientW.Close()
	})

	return c
}

func TestClient_Initialize(t *testing.T) {
	c := connect(t, &config.Options{ClientInfo: &mcp.Implementation{Name: "memo-client", Version: "1.0.0"}})

	require.Nil(t, c.ServerInfo())

	result, err := c.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, registry.LatestProtocolVersion, result.ProtocolVersion)
	require.Equal(t, "memo-server", result.ServerInfo.Name)
	require.NotNil(t, result.Capabilities.Tools)
	require.NotNil(t, result.Capabilities.Resources)
	require.NotNil(t, result.Capabilities.Prompts)
	require.Same(t, result, c.ServerInfo())
}

func TestClient_Tools(t *testing.T) {
	c := connect(t, nil)
	ctx := context.Background()

	tools, err := c.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	require.Equal(t, "add", tools[0].Name)

	result, err := c.CallTool(ctx, "add", map[string]any{"a": 2, "b": 3.5})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	require.Equal(t, "5.5", text.Text)

	result, err = c.CallTool(ctx, "broken", nil)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestClient_UnknownTool(t *testing.T) {
	c := connect(t, nil)

	_, err := c.CallTool(context.Background(), "subtract", map[string]any{})

	appErr, ok := stderrors.AsType[*errors.ApplicationError](err)
	require.True(t, ok, "expected ApplicationError, got %v", err)
	require.Equal(t, jsonrpc.ErrorCodeMethodNotFound, appErr.Code)
	require.Equal(t, "Unknown tool: subtract", appErr.Message)
}

func TestClient_Resources(t *testing.T) {
	c := connect(t, nil)
	ctx := context.Background()

	resources, err := c.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	require.Equal(t, "First memo", resources[0].Name)

	read, err := c.ReadResource(ctx, "memo:///1")
	require.NoError(t, err)
	require.Equal(t, "remember the milk", read.Contents[0].Text)

	_, err = c.ReadResource(ctx, "memo:///404")

	appErr, ok := stderrors.AsType[*errors.ApplicationError](err)
	require.True(t, ok)
	require.Equal(t, jsonrpc.ErrorCodeInvalidRequest, appErr.Code)
}

func TestClient_Prompts(t *testing.T) {
	c := connect(t, nil)
	ctx := context.Background()

	prompts, err := c.ListPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, prompts, 1)

	result, err := c.GetPrompt(ctx, "recap", nil)
	require.NoError(t, err)
	require.Equal(t, "Recap", result.Description)
	require.Len(t, result.Messages, 1)

	_, err = c.GetPrompt(ctx, "missing", nil)
	require.ErrorIs(t, err, errors.ErrInvalidParams)
}

func TestClient_RawCall(t *testing.T) {
	c := connect(t, nil)

	resp, err := c.Call(context.Background(), "ping", nil, session.WithTimeout(time.Second))
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(resp.Result))

	_, err = c.Call(context.Background(), "does/not/exist", nil)

	appErr, ok := stderrors.AsType[*errors.ApplicationError](err)
	require.True(t, ok)
	require.Equal(t, map[string]any{"method": "does/not/exist"}, appErr.Data)
}

func TestClient_Lifecycle(t *testing.T) {
	c := New()

	_, err := c.ListTools(context.Background())
	require.ErrorIs(t, err, errors.ErrClientNotConnected)
	require.NoError(t, c.Err())

	_, open := <-c.Notifications()
	require.False(t, open)

	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Start(context.Background(), "server.js", nil), errors.ErrClientClosed)
}

func TestClient_StartTwice(t *testing.T) {
	c := connect(t, nil)

	err := c.Start(context.Background(), "memo-server", &config.Options{})
	require.ErrorIs(t, err, errors.ErrClientAlreadyConnected)
}

func TestClient_CloseEndsSession(t *testing.T) {
	c := connect(t, nil)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	default:
		t.Fatal("session still running after Close")
	}

	require.ErrorIs(t, c.Err(), errors.ErrSessionClosed)
	require.ErrorIs(t, c.Notify(context.Background(), "x", nil), errors.ErrClientClosed)
}

func TestClient_StartFailure(t *testing.T) {
	c := New()

	err := c.Start(context.Background(), "server.js", &config.Options{Runtime: "/nonexistent/runtime/node"})

	_, ok := stderrors.AsType[*errors.RuntimeNotFoundError](err)
	require.True(t, ok, "expected RuntimeNotFoundError, got %v", err)
}
