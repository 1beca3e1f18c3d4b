package stdiorpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextResult(t *testing.T) {
	result := TextResult("Hello, World!")

	assert.Len(t, result.Content, 1)
	assert.False(t, result.IsError)

	textContent, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "Hello, World!", textContent.Text)
}

func TestErrorResult(t *testing.T) {
	result := ErrorResult("Something went wrong")

	assert.Len(t, result.Content, 1)
	assert.True(t, result.IsError)

	textContent, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "Something went wrong", textContent.Text)
}

func TestJSONResult(t *testing.T) {
	result, err := JSONResult([]int{1, 2}, map[string]any{"values": []int{1, 2}})
	require.NoError(t, err)

	textContent, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.JSONEq(t, `[1,2]`, textContent.Text)
	assert.Equal(t, map[string]any{"values": []int{1, 2}}, result.StructuredContent)
}

func TestNewTool(t *testing.T) {
	t.Run("has name and description", func(t *testing.T) {
		tool := NewTool(
			"test_tool",
			"A test tool",
			SimpleSchema(map[string]string{"value": "string"}),
			func(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return TextResult("ok"), nil
			},
		)

		assert.Equal(t, "test_tool", tool.Name())
		assert.Equal(t, "A test tool", tool.Descriptor.Description)
		assert.Nil(t, tool.Validate)
		assert.Nil(t, tool.Descriptor.Annotations)
	})

	t.Run("with annotations and validator", func(t *testing.T) {
		tool := NewTool("read", "Reads", nil,
			func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) { return nil, nil },
			WithAnnotations(&McpToolAnnotations{ReadOnlyHint: true}),
			WithValidator(func(map[string]any) error { return nil }),
		)

		require.NotNil(t, tool.Descriptor.Annotations)
		assert.True(t, tool.Descriptor.Annotations.ReadOnlyHint)
		assert.NotNil(t, tool.Validate)
	})
}

type forecastArgs struct {
	City string  `json:"city" jsonschema:"City name"`
	Days float64 `json:"days,omitempty" jsonschema:"Number of days"`
}

func TestTypedTool(t *testing.T) {
	var got forecastArgs

	tool, err := TypedTool("get_forecast", "Get weather forecast for a city",
		func(_ context.Context, args forecastArgs) (*CallToolResult, error) {
			got = args

			return TextResult("ok"), nil
		})
	require.NoError(t, err)

	t.Run("schema", func(t *testing.T) {
		data, err := json.Marshal(tool.Descriptor.InputSchema)
		require.NoError(t, err)

		var schema struct {
			Type       string                     `json:"type"`
			Required   []string                   `json:"required"`
			Properties map[string]json.RawMessage `json:"properties"`
		}

		require.NoError(t, json.Unmarshal(data, &schema))
		assert.Equal(t, "object", schema.Type)
		assert.Equal(t, []string{"city"}, schema.Required)
		assert.Contains(t, schema.Properties, "city")
		assert.Contains(t, schema.Properties, "days")
	})

	t.Run("validator", func(t *testing.T) {
		require.NotNil(t, tool.Validate)
		assert.NoError(t, tool.Validate(map[string]any{"city": "Oslo"}))
		assert.NoError(t, tool.Validate(map[string]any{"city": "Oslo", "days": 2.0}))
		assert.Error(t, tool.Validate(map[string]any{}))
		assert.Error(t, tool.Validate(map[string]any{"city": 7.0}))
		assert.Error(t, tool.Validate(map[string]any{"city": "Oslo", "days": "two"}))
	})

	t.Run("handler binds arguments", func(t *testing.T) {
		req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{
			Name:      "get_forecast",
			Arguments: json.RawMessage(`{"city":"Lima","days":4}`),
		}}

		result, err := tool.Handler(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Equal(t, forecastArgs{City: "Lima", Days: 4}, got)
	})

	t.Run("undecodable arguments are invalid params", func(t *testing.T) {
		req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{
			Name:      "get_forecast",
			Arguments: json.RawMessage(`{"city":12}`),
		}}

		_, err := tool.Handler(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidParams)
	})
}

func TestNewPrompt(t *testing.T) {
	p := NewPrompt("greet", "Greets someone",
		[]*McpPromptArgument{{Name: "name", Required: true}},
		func(_ context.Context, args map[string]string) (*GetPromptResult, error) {
			return &GetPromptResult{Messages: []*McpPromptMessage{
				{Role: "user", Content: &McpTextContent{Text: "Say hello to " + args["name"]}},
			}}, nil
		})

	assert.Equal(t, "greet", p.Descriptor.Name)
	require.Len(t, p.Descriptor.Arguments, 1)

	result, err := p.Handler(context.Background(), map[string]string{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Say hello to Ada", result.Messages[0].Content.(*mcp.TextContent).Text)
}
