package stdiorpc

import (
	"context"
)

// CallTool spawns the server at path, calls one tool and shuts the server
// down. It is the one-shot form of WithClient.
//
// Example:
//
//	result, err := stdiorpc.CallTool(ctx, "build/index.js", "get_forecast",
//	    map[string]any{"city": "Paris", "days": 2},
//	    stdiorpc.WithEnv(map[string]string{"OPENWEATHER_API_KEY": key}),
//	)
func CallTool(ctx context.Context, path, name string, args any, opts ...Option) (*CallToolResult, error) {
	var result *CallToolResult

	err := WithClient(ctx, path, func(c Client) error {
		var err error

		result, err = c.CallTool(ctx, name, args)

		return err
	}, opts...)
	if err != nil {
		return nil, err
	}

	return result, nil
}
