package stdiorpc

import (
	"context"
	"fmt"
)

// WithClient manages client lifecycle with automatic cleanup.
//
// This helper spawns the server at path, performs the initialize handshake,
// executes the callback function, and ensures proper cleanup via Close()
// when done.
//
// If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := stdiorpc.WithClient(ctx, "build/index.js", func(c stdiorpc.Client) error {
//	    tools, err := c.ListTools(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    for _, tool := range tools {
//	        fmt.Println(tool.Name)
//	    }
//	    return nil
//	},
//	    stdiorpc.WithLogger(log),
//	)
func WithClient(ctx context.Context, path string, fn func(Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	client, err := Spawn(ctx, path, opts...)
	if err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Warn("failed to close client", "error", closeErr)
		}
	}()

	return fn(client)
}
