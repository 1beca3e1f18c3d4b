package registry

import (
	"context"
	"encoding/json"
	"slices"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/stdio-rpc-go/internal/dispatch"
	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
)

// Reserved method names.
const (
	MethodInitialize    = "initialize"
	MethodPing          = "ping"
	MethodInitialized   = "notifications/initialized"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"
	MethodPromptsList   = "prompts/list"
	MethodPromptsGet    = "prompts/get"
)

// LatestProtocolVersion is the protocol revision offered when the client
// asks for one this package does not know.
const LatestProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists the revisions echoed back to clients, newest first.
var SupportedProtocolVersions = []string{
	LatestProtocolVersion,
	"2025-03-26",
	"2024-11-05",
}

// NegotiateProtocolVersion returns requested if it is supported and the
// latest supported version otherwise.
func NegotiateProtocolVersion(requested string) string {
	if slices.Contains(SupportedProtocolVersions, requested) {
		return requested
	}

	return LatestProtocolVersion
}

// Install registers the registry's handlers on d: initialize, ping,
// notifications/initialized, and the list/call/read/get methods of every
// family the registry serves.
func (r *Registry) Install(d *dispatch.Dispatcher) *Lifecycle {
	lc := &Lifecycle{}

	d.Register(MethodInitialize, dispatch.Typed(func(_ context.Context, p *mcp.InitializeParams) (*mcp.InitializeResult, error) {
		requested := ""
		if p != nil {
			requested = p.ProtocolVersion

			if p.ClientInfo != nil {
				r.log.Info("Client connected", "client", p.ClientInfo.Name, "client_version", p.ClientInfo.Version)
			}
		}

		version := NegotiateProtocolVersion(requested)
		lc.protocolVersion.Store(version)

		return &mcp.InitializeResult{
			ProtocolVersion: version,
			ServerInfo:      r.ServerInfo(),
			Capabilities:    r.Capabilities(),
			Instructions:    r.instructions,
		}, nil
	}))

	d.Register(MethodPing, func(context.Context, json.RawMessage) (any, error) {
		return struct{}{}, nil
	})

	d.RegisterNotification(MethodInitialized, func(context.Context, json.RawMessage) {
		lc.initialized.Store(true)
		r.log.Debug("Client initialized")
	})

	if r.HasTools() {
		d.Register(MethodToolsList, dispatch.Typed(func(context.Context, *mcp.ListToolsParams) (*mcp.ListToolsResult, error) {
			return &mcp.ListToolsResult{Tools: r.ListTools()}, nil
		}))

		d.Register(MethodToolsCall, dispatch.Typed(func(ctx context.Context, p *mcp.CallToolParamsRaw) (*mcp.CallToolResult, error) {
			if p == nil || p.Name == "" {
				return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInvalidParams, nil, "Tool name is required")
			}

			args := make(map[string]any)

			if len(p.Arguments) > 0 && string(p.Arguments) != "null" {
				if err := json.Unmarshal(p.Arguments, &args); err != nil {
					return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInvalidParams,
						map[string]any{"tool": p.Name}, "Tool arguments must be an object: %v", err)
				}
			}

			return r.CallTool(ctx, p.Name, args)
		}))
	}

	if r.HasResources() {
		d.Register(MethodResourcesList, dispatch.Typed(func(ctx context.Context, _ *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error) {
			resources, err := r.ListResources(ctx)
			if err != nil {
				return nil, err
			}

			return &mcp.ListResourcesResult{Resources: resources}, nil
		}))

		d.Register(MethodResourcesRead, dispatch.Typed(func(ctx context.Context, p *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error) {
			if p == nil || p.URI == "" {
				return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInvalidParams, nil, "Resource uri is required")
			}

			return r.ReadResource(ctx, p.URI)
		}))
	}

	if r.HasPrompts() {
		d.Register(MethodPromptsList, dispatch.Typed(func(context.Context, *mcp.ListPromptsParams) (*mcp.ListPromptsResult, error) {
			return &mcp.ListPromptsResult{Prompts: r.ListPrompts()}, nil
		}))

		d.Register(MethodPromptsGet, dispatch.Typed(func(ctx context.Context, p *mcp.GetPromptParams) (*mcp.GetPromptResult, error) {
			if p == nil || p.Name == "" {
				return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInvalidParams, nil, "Prompt name is required")
			}

			return r.GetPrompt(ctx, p.Name, p.Arguments)
		}))
	}

	return lc
}

// Lifecycle records the handshake state of the connected client.
type Lifecycle struct {
	protocolVersion atomic.Value
	initialized     atomic.Bool
}

// Initialized reports whether the client sent notifications/initialized.
func (l *Lifecycle) Initialized() bool {
	return l.initialized.Load()
}

// ProtocolVersion returns the negotiated protocol version, or "" before initialize.
func (l *Lifecycle) ProtocolVersion() string {
	v, _ := l.protocolVersion.Load().(string)

	return v
}
