// Package notes serves a note collection: each note is a resource, the
// create_note tool adds notes, and the summarize_notes prompt embeds them
// all for summarization.
package notes

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/registry"
)

const (
	// CreateToolName is the note creation tool.
	CreateToolName = "create_note"
	// SummarizePromptName is the summarization prompt.
	SummarizePromptName = "summarize_notes"

	uriPrefix = "note:///"
)

// URI returns the resource URI of the note with the given id.
func URI(id string) string {
	return uriPrefix + id
}

// Service exposes a Store over the registry.
type Service struct {
	log   *slog.Logger
	store Store
}

// Compile-time verification that Service is a resource provider.
var _ registry.ResourceProvider = (*Service)(nil)

// New creates the service.
func New(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Service{log: log.With("component", "notes"), store: store}
}

// ListResources lists one text/plain resource per note.
func (s *Service) ListResources(ctx context.Context) ([]*mcp.Resource, error) {
	notes, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*mcp.Resource, 0, len(notes))
	for _, n := range notes {
		out = append(out, &mcp.Resource{
			URI:         URI(n.ID),
			MIMEType:    "text/plain",
			Name:        n.Title,
			Description: "A text note: " + n.Title,
		})
	}

	return out, nil
}

// ReadResource returns the content of a note.
func (s *Service) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	id, ok := strings.CutPrefix(uri, uriPrefix)
	if !ok {
		return nil, fmt.Errorf("%s: %w", uri, errors.ErrUnknownResource)
	}

	n, err := s.store.Get(ctx, id)
	if stderrors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("note %s: %w", id, errors.ErrUnknownResource)
	}

	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     n.Content,
		}},
	}, nil
}

// CreateTool returns the create_note tool.
func (s *Service) CreateTool() *registry.Tool {
	schema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"title":   {Type: "string", Description: "Title of the note"},
			"content": {Type: "string", Description: "Text content of the note"},
		},
		Required: []string{"title", "content"},
	}

	return &registry.Tool{
		Descriptor: registry.NewTool(CreateToolName, "Create a new note", schema),
		Validate:   validateCreateArgs,
		Handler:    s.handleCreate,
	}
}

func validateCreateArgs(args map[string]any) error {
	for _, field := range []string{"title", "content"} {
		if v, ok := args[field].(string); !ok || v == "" {
			return fmt.Errorf("%s must be a non-empty string", field)
		}
	}

	return nil
}

func (s *Service) handleCreate(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}

	if err := registry.BindArguments(req, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidParams, err)
	}

	n, err := s.store.Create(ctx, args.Title, args.Content)
	if err != nil {
		return nil, err
	}

	s.log.Info("Created note", "id", n.ID, "title", n.Title)

	return registry.TextResult(fmt.Sprintf("Created note %s: %s", n.ID, n.Title)), nil
}

// SummarizePrompt returns the summarize_notes prompt.
func (s *Service) SummarizePrompt() *registry.Prompt {
	return &registry.Prompt{
		Descriptor: &mcp.Prompt{
			Name:        SummarizePromptName,
			Description: "Summarize all notes",
		},
		Handler: s.handleSummarize,
	}
}

func (s *Service) handleSummarize(ctx context.Context, _ map[string]string) (*mcp.GetPromptResult, error) {
	notes, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	messages := make([]*mcp.PromptMessage, 0, len(notes)+2)
	messages = append(messages, &mcp.PromptMessage{
		Role:    "user",
		Content: &mcp.TextContent{Text: "Please summarize the following notes:"},
	})

	for _, n := range notes {
		messages = append(messages, &mcp.PromptMessage{
			Role: "user",
			Content: &mcp.EmbeddedResource{
				Resource: &mcp.ResourceContents{
					URI:      URI(n.ID),
					MIMEType: "text/plain",
					Text:     n.Content,
				},
			},
		})
	}

	messages = append(messages, &mcp.PromptMessage{
		Role:    "user",
		Content: &mcp.TextContent{Text: "Provide a concise summary of all the notes above."},
	})

	return &mcp.GetPromptResult{
		Description: "Summarize all notes",
		Messages:    messages,
	}, nil
}
