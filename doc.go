// Package stdiorpc speaks newline-delimited JSON-RPC 2.0 with a child process
// over its stdin and stdout.
//
// A client spawns a server program, correlates its responses with the
// requests that caused them, and answers the requests the server sends back.
// A server reads requests from its own stdin and writes responses to its
// stdout. Anything a child writes to stderr is diagnostics and never parsed.
//
// # Client
//
// Spawn starts the server, performs the initialize handshake and returns a
// ready Client:
//
//	client, err := stdiorpc.Spawn(ctx, "build/weather.js",
//	    stdiorpc.WithLogger(slog.Default()),
//	    stdiorpc.WithEnv(map[string]string{"OPENWEATHER_API_KEY": key}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	result, err := client.CallTool(ctx, "get_forecast", map[string]any{"city": "London"})
//
// WithClient does the same and closes the client when the callback returns.
// CallTool spawns, calls a single tool and shuts the server down.
//
// A tool-level failure is a result with IsError set. An unknown tool or
// rejected arguments come back as an *ApplicationError carrying the JSON-RPC
// error code.
//
// # Server
//
// NewServer collects tools, resources and prompts, and Serve answers on
// stdio until the input ends or the context is cancelled:
//
//	type addArgs struct {
//	    A float64 `json:"a"`
//	    B float64 `json:"b"`
//	}
//
//	add, err := stdiorpc.TypedTool("add", "Add two numbers",
//	    func(_ context.Context, args addArgs) (*stdiorpc.CallToolResult, error) {
//	        return stdiorpc.TextResult(fmt.Sprint(args.A + args.B)), nil
//	    })
//
//	srv := stdiorpc.NewServer("calculator", "1.0.0")
//	srv.AddTool(add)
//
//	if err := srv.Serve(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Servers must log to stderr. Stdout carries only protocol messages.
package stdiorpc
