package registry

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
)

// Registry is the immutable catalogue of what a server exposes.
type Registry struct {
	log          *slog.Logger
	name         string
	version      string
	instructions string

	tools     map[string]*Tool
	toolOrder []string

	resources []ResourceProvider

	prompts     map[string]*Prompt
	promptOrder []string
}

// Option configures a Registry during construction.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithTools adds tools. A later tool with the same name replaces an earlier one.
func WithTools(tools ...*Tool) Option {
	return func(r *Registry) {
		for _, t := range tools {
			name := t.Name()

			if _, exists := r.tools[name]; exists {
				r.log.Warn("Duplicate tool name, keeping the last one", "tool", name)
			} else {
				r.toolOrder = append(r.toolOrder, name)
			}

			r.tools[name] = t
		}
	}
}

// WithResources adds a resource provider. Providers are consulted in the
// order they were added.
func WithResources(p ResourceProvider) Option {
	return func(r *Registry) {
		if p != nil {
			r.resources = append(r.resources, p)
		}
	}
}

// WithPrompts adds prompts. A later prompt with the same name replaces an earlier one.
func WithPrompts(prompts ...*Prompt) Option {
	return func(r *Registry) {
		for _, p := range prompts {
			name := p.Descriptor.Name

			if _, exists := r.prompts[name]; !exists {
				r.promptOrder = append(r.promptOrder, name)
			}

			r.prompts[name] = p
		}
	}
}

// WithInstructions sets the instructions returned from initialize.
func WithInstructions(text string) Option {
	return func(r *Registry) {
		r.instructions = text
	}
}

// New builds a registry. Options are applied in order; WithLogger should come first.
func New(name, version string, opts ...Option) *Registry {
	r := &Registry{
		log:     slog.New(slog.DiscardHandler),
		name:    name,
		version: version,
		tools:   make(map[string]*Tool, 8),
		prompts: make(map[string]*Prompt, 4),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.log = r.log.With("component", "registry")

	return r
}

// Name returns the server name.
func (r *Registry) Name() string {
	return r.name
}

// Version returns the server version.
func (r *Registry) Version() string {
	return r.version
}

// ServerInfo returns the implementation info sent from initialize.
func (r *Registry) ServerInfo() *mcp.Implementation {
	return &mcp.Implementation{
		Name:    r.name,
		Version: r.version,
	}
}

// Capabilities advertises only the families the registry serves.
func (r *Registry) Capabilities() *mcp.ServerCapabilities {
	caps := &mcp.ServerCapabilities{}

	if r.HasTools() {
		caps.Tools = &mcp.ToolCapabilities{}
	}

	if r.HasResources() {
		caps.Resources = &mcp.ResourceCapabilities{}
	}

	if r.HasPrompts() {
		caps.Prompts = &mcp.PromptCapabilities{}
	}

	return caps
}

// HasTools reports whether any tool is registered.
func (r *Registry) HasTools() bool {
	return len(r.tools) > 0
}

// HasResources reports whether any resource provider is registered.
func (r *Registry) HasResources() bool {
	return len(r.resources) > 0
}

// HasPrompts reports whether any prompt is registered.
func (r *Registry) HasPrompts() bool {
	return len(r.prompts) > 0
}

// ListTools returns the tool descriptors in registration order.
func (r *Registry) ListTools() []*mcp.Tool {
	out := make([]*mcp.Tool, 0, len(r.toolOrder))
	for _, name := range r.toolOrder {
		out = append(out, r.tools[name].Descriptor)
	}

	return out
}

// CallTool validates the arguments and runs the named tool.
func (r *Registry) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	t, exists := r.tools[name]
	if !exists {
		r.log.Debug("Unknown tool", "tool", name)

		return nil, errors.NewApplicationError(jsonrpc.ErrorCodeMethodNotFound,
			map[string]any{"tool": name}, "Unknown tool: %s", name)
	}

	if args == nil {
		args = make(map[string]any)
	}

	if t.Validate != nil {
		if err := t.Validate(args); err != nil {
			r.log.Debug("Rejected tool arguments", "tool", name, "error", err)

			return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInvalidParams,
				map[string]any{"tool": name}, "Invalid arguments for tool %s: %v", name, err)
		}
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInvalidParams,
			map[string]any{"tool": name}, "Invalid arguments for tool %s: %v", name, err)
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: raw,
		},
	}

	r.log.Debug("Calling tool", "tool", name)

	result, err := t.Handler(ctx, req)
	if err != nil {
		if _, ok := stderrors.AsType[*errors.ApplicationError](err); ok {
			return nil, err
		}

		if stderrors.Is(err, errors.ErrInvalidParams) {
			return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInvalidParams,
				map[string]any{"tool": name}, "%v", err)
		}

		r.log.Warn("Tool handler failed", "tool", name, "error", err)

		return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInternalError,
			map[string]any{"tool": name}, "Tool execution failed: %v", err)
	}

	if result == nil {
		result = &mcp.CallToolResult{}
	}

	if result.Content == nil {
		result.Content = []mcp.Content{}
	}

	return result, nil
}

// ListResources returns the resources of every provider.
func (r *Registry) ListResources(ctx context.Context) ([]*mcp.Resource, error) {
	out := make([]*mcp.Resource, 0, 8)

	for _, p := range r.resources {
		list, err := p.ListResources(ctx)
		if err != nil {
			return nil, fmt.Errorf("list resources: %w", err)
		}

		out = append(out, list...)
	}

	return out, nil
}

// ReadResource reads uri from the first provider that serves it.
// Unknown URIs fail with InvalidRequest.
func (r *Registry) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	for _, p := range r.resources {
		result, err := p.ReadResource(ctx, uri)
		if stderrors.Is(err, errors.ErrUnknownResource) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("read resource %s: %w", uri, err)
		}

		return result, nil
	}

	r.log.Debug("Unknown resource", "uri", uri)

	return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInvalidRequest,
		map[string]any{"uri": uri}, "Unknown resource: %s", uri)
}

// ListPrompts returns the prompt descriptors in registration order.
func (r *Registry) ListPrompts() []*mcp.Prompt {
	out := make([]*mcp.Prompt, 0, len(r.promptOrder))
	for _, name := range r.promptOrder {
		out = append(out, r.prompts[name].Descriptor)
	}

	return out
}

// GetPrompt renders the named prompt. Unknown prompts and missing required
// arguments fail with InvalidParams.
func (r *Registry) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	p, exists := r.prompts[name]
	if !exists {
		return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInvalidParams,
			map[string]any{"prompt": name}, "Unknown prompt: %s", name)
	}

	for _, arg := range p.Descriptor.Arguments {
		if arg.Required && args[arg.Name] == "" {
			return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInvalidParams,
				map[string]any{"prompt": name}, "Missing required argument: %s", arg.Name)
		}
	}

	result, err := p.Handler(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("get prompt %s: %w", name, err)
	}

	return result, nil
}
