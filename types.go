package stdiorpc

import (
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/stdio-rpc-go/internal/config"
	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
	"github.com/wagiedev/stdio-rpc-go/internal/registry"
	"github.com/wagiedev/stdio-rpc-go/internal/session"
)

// Options holds client configuration. Build it with Option functions.
type Options = config.Options

// Wire types.
type (
	// Message is one JSON-RPC 2.0 message.
	Message = jsonrpc.Message

	// RequestID is a request id, either a number or a string.
	RequestID = jsonrpc.RequestID

	// ErrorCode is a JSON-RPC error code.
	ErrorCode = jsonrpc.ErrorCode

	// ErrorObject is the error member of an error response.
	ErrorObject = jsonrpc.ErrorObject
)

// NewNotification builds a notification message.
func NewNotification(method string, params any) (*Message, error) {
	return jsonrpc.NewNotification(method, params)
}

// Standard JSON-RPC error codes.
const (
	ErrorCodeParseError     = jsonrpc.ErrorCodeParseError
	ErrorCodeInvalidRequest = jsonrpc.ErrorCodeInvalidRequest
	ErrorCodeMethodNotFound = jsonrpc.ErrorCodeMethodNotFound
	ErrorCodeInvalidParams  = jsonrpc.ErrorCodeInvalidParams
	ErrorCodeInternalError  = jsonrpc.ErrorCodeInternalError
)

// Session observation.
type (
	// State is the lifecycle state of a client session.
	State = session.State

	// Event is delivered to listeners registered with WithListener.
	Event = session.Event

	// EventKind identifies an Event.
	EventKind = session.EventKind

	// Listener observes session events. It must not block.
	Listener = session.Listener

	// CallOption configures a single Call.
	CallOption = session.CallOption
)

// Session states and event kinds.
const (
	StateStarting = session.StateStarting
	StateRunning  = session.StateRunning
	StateClosing  = session.StateClosing
	StateClosed   = session.StateClosed

	EventStateChanged    = session.EventStateChanged
	EventDiagnostic      = session.EventDiagnostic
	EventParseError      = session.EventParseError
	EventProtocolWarning = session.EventProtocolWarning
)

// WithTimeout bounds a single Call, overriding WithCallTimeout.
func WithTimeout(d time.Duration) CallOption {
	return session.WithTimeout(d)
}

// Server-side building blocks.
type (
	// Tool is a named operation with a schema, an optional argument
	// predicate and a handler.
	Tool = registry.Tool

	// Prompt is a named prompt template.
	Prompt = registry.Prompt

	// PromptHandler renders a prompt from its arguments.
	PromptHandler = registry.PromptHandler

	// ResourceProvider serves a set of resources. ReadResource returns an
	// error wrapping ErrUnknownResource for URIs it does not serve.
	ResourceProvider = registry.ResourceProvider
)

// Re-export MCP SDK types for public API.
// These are the payload shapes of the tools, resources and prompts methods.
type (
	// CallToolResult is the server's response to a tool call.
	// Use TextResult, ErrorResult, or JSONResult helpers to create results.
	CallToolResult = mcp.CallToolResult

	// CallToolRequest is the request passed to tool handlers.
	CallToolRequest = mcp.CallToolRequest

	// ToolHandler is the function signature for tool handlers.
	ToolHandler = mcp.ToolHandler

	// McpTool is a tool descriptor as listed by tools/list.
	McpTool = mcp.Tool

	// McpToolAnnotations describes optional hints about tool behavior.
	McpToolAnnotations = mcp.ToolAnnotations

	// McpContent is the interface for content blocks.
	McpContent = mcp.Content

	// McpTextContent is a text content block.
	McpTextContent = mcp.TextContent

	// McpEmbeddedResource is a resource embedded in a prompt message.
	McpEmbeddedResource = mcp.EmbeddedResource

	// McpResource is a resource descriptor as listed by resources/list.
	McpResource = mcp.Resource

	// McpResourceContents is the content of a read resource.
	McpResourceContents = mcp.ResourceContents

	// ReadResourceResult is the response to resources/read.
	ReadResourceResult = mcp.ReadResourceResult

	// McpPrompt is a prompt descriptor as listed by prompts/list.
	McpPrompt = mcp.Prompt

	// McpPromptArgument describes one prompt argument.
	McpPromptArgument = mcp.PromptArgument

	// McpPromptMessage is one message of a rendered prompt.
	McpPromptMessage = mcp.PromptMessage

	// GetPromptResult is the response to prompts/get.
	GetPromptResult = mcp.GetPromptResult

	// InitializeResult is the server's answer to initialize.
	InitializeResult = mcp.InitializeResult

	// Implementation names a client or server.
	Implementation = mcp.Implementation

	// Schema is a JSON Schema object for tool input.
	Schema = jsonschema.Schema
)
