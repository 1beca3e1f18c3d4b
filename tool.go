package stdiorpc

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/registry"
)

// ToolOption configures a Tool during construction.
type ToolOption func(*Tool)

// WithAnnotations sets MCP tool annotations (hints about tool behavior).
func WithAnnotations(annotations *McpToolAnnotations) ToolOption {
	return func(t *Tool) {
		t.Descriptor.Annotations = annotations
	}
}

// WithValidator sets the argument predicate. Arguments it rejects are
// answered with InvalidParams and the handler does not run.
func WithValidator(fn func(args map[string]any) error) ToolOption {
	return func(t *Tool) {
		t.Validate = fn
	}
}

// NewTool creates a Tool.
//
// Example with SimpleSchema:
//
//	echo := stdiorpc.NewTool("echo", "Echo text back",
//	    stdiorpc.SimpleSchema(map[string]string{"text": "string"}),
//	    func(ctx context.Context, req *stdiorpc.CallToolRequest) (*stdiorpc.CallToolResult, error) {
//	        args, _ := stdiorpc.ParseArguments(req)
//	        return stdiorpc.TextResult(fmt.Sprint(args["text"])), nil
//	    },
//	)
func NewTool(
	name, description string,
	inputSchema *Schema,
	handler ToolHandler,
	opts ...ToolOption,
) *Tool {
	t := &Tool{
		Descriptor: registry.NewTool(name, description, inputSchema),
		Handler:    handler,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// TypedTool creates a Tool whose input schema is inferred from A and whose
// arguments are validated against that schema before fn runs.
//
// Struct fields without omitempty are required. The jsonschema struct tag
// sets a field description.
func TypedTool[A any](
	name, description string,
	fn func(ctx context.Context, args A) (*CallToolResult, error),
	opts ...ToolOption,
) (*Tool, error) {
	schema, err := jsonschema.For[A](nil)
	if err != nil {
		return nil, fmt.Errorf("infer schema for tool %s: %w", name, err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema for tool %s: %w", name, err)
	}

	handler := func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args A
		if err := registry.BindArguments(req, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidParams, err)
		}

		return fn(ctx, args)
	}

	validate := func(args map[string]any) error {
		return resolved.Validate(args)
	}

	return NewTool(name, description, schema, handler, append([]ToolOption{WithValidator(validate)}, opts...)...), nil
}

// NewPrompt creates a Prompt.
func NewPrompt(name, description string, args []*McpPromptArgument, handler PromptHandler) *Prompt {
	return &Prompt{
		Descriptor: &mcp.Prompt{
			Name:        name,
			Description: description,
			Arguments:   args,
		},
		Handler: handler,
	}
}

// SimpleSchema creates an object schema from a simple type map. Every
// property is required.
//
// Input format: {"a": "float64", "b": "string"}
//
// Type mappings:
//   - "string"           → {"type": "string"}
//   - "int", "int64"     → {"type": "integer"}
//   - "float64", "float" → {"type": "number"}
//   - "bool"             → {"type": "boolean"}
//   - "[]string"         → {"type": "array", "items": {"type": "string"}}
//   - "any", "object"    → {"type": "object"}
func SimpleSchema(props map[string]string) *Schema {
	return registry.SimpleSchema(props)
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *CallToolResult {
	return registry.TextResult(text)
}

// ErrorResult creates a CallToolResult indicating a tool-level failure.
func ErrorResult(message string) *CallToolResult {
	return registry.ErrorResult(message)
}

// JSONResult creates a CallToolResult whose text is v encoded as indented
// JSON, with structured attached as structuredContent when non-nil.
func JSONResult(v any, structured any) (*CallToolResult, error) {
	return registry.JSONResult(v, structured)
}

// ParseArguments unmarshals CallToolRequest arguments into a map.
func ParseArguments(req *CallToolRequest) (map[string]any, error) {
	return registry.ParseArguments(req)
}

// BindArguments unmarshals CallToolRequest arguments into v.
func BindArguments(req *CallToolRequest, v any) error {
	return registry.BindArguments(req, v)
}
