package stdiorpc_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stdiorpc "github.com/wagiedev/stdio-rpc-go"
)

// TestHelperProcess is not a real test. It runs the calculator server on the
// process's own stdio when the test binary is re-executed by helperOptions.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	os.Stderr.WriteString("calculator server running on stdio\n")

	if err := newCalculator(t).Serve(context.Background()); err != nil {
		os.Stderr.WriteString("serve: " + err.Error() + "\n")
		os.Exit(1)
	}

	os.Exit(0)
}

func helperOptions(extra ...stdiorpc.Option) []stdiorpc.Option {
	return append([]stdiorpc.Option{
		stdiorpc.WithArgs("-test.run=^TestHelperProcess$"),
		stdiorpc.WithEnv(map[string]string{"GO_WANT_HELPER_PROCESS": "1"}),
		stdiorpc.WithCallTimeout(10 * time.Second),
		stdiorpc.WithShutdownTimeout(5 * time.Second),
		stdiorpc.WithStderr(io.Discard),
	}, extra...)
}

func TestSpawn_SubprocessRoundTrip(t *testing.T) {
	ctx := context.Background()

	var (
		mu    sync.Mutex
		lines []string
	)

	var stderr bytes.Buffer

	client, err := stdiorpc.Spawn(ctx, os.Args[0], helperOptions(
		stdiorpc.WithStderr(&stderr),
		stdiorpc.WithListener(func(ev stdiorpc.Event) {
			if ev.Kind == stdiorpc.EventDiagnostic {
				mu.Lock()
				lines = append(lines, ev.Line)
				mu.Unlock()
			}
		}),
	)...)
	require.NoError(t, err)

	defer client.Close()

	assert.Equal(t, "calculator", client.ServerInfo().ServerInfo.Name)

	tools, err := client.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 2)

	result, err := client.CallTool(ctx, "add", map[string]any{"a": 40, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, "42", result.Content[0].(*stdiorpc.McpTextContent).Text)

	require.NoError(t, client.Close())

	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}

	mu.Lock()
	defer mu.Unlock()

	assert.Contains(t, lines, "calculator server running on stdio")
	assert.Contains(t, stderr.String(), "calculator server running on stdio")

	_, err = client.ListTools(ctx)
	assert.ErrorIs(t, err, stdiorpc.ErrClientClosed)
}

func TestSpawn_ConcurrentCalls(t *testing.T) {
	ctx := context.Background()

	client, err := stdiorpc.Spawn(ctx, os.Args[0], helperOptions()...)
	require.NoError(t, err)

	defer client.Close()

	var wg sync.WaitGroup

	results := make([]string, 20)

	for i := range results {
		wg.Go(func() {
			result, err := client.CallTool(ctx, "add", map[string]any{"a": i, "b": 1000})
			if err != nil {
				t.Errorf("call %d: %v", i, err)

				return
			}

			results[i] = result.Content[0].(*stdiorpc.McpTextContent).Text
		})
	}

	wg.Wait()

	for i, got := range results {
		assert.Equal(t, strconv.Itoa(i+1000), got)
	}
}

func TestCallTool_OneShot(t *testing.T) {
	result, err := stdiorpc.CallTool(context.Background(), os.Args[0], "divide",
		map[string]any{"a": 1, "b": 0}, helperOptions()...)
	require.NoError(t, err)
	assert.True(t, result.IsError)

	_, err = stdiorpc.CallTool(context.Background(), os.Args[0], "nope", nil,
		helperOptions()...)

	var appErr *stdiorpc.ApplicationError

	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, stdiorpc.ErrorCodeMethodNotFound, appErr.Code)
}

func TestWithClient_CallbackError(t *testing.T) {
	sentinel := stderrors.New("callback failed")

	var called bool

	err := stdiorpc.WithClient(context.Background(), os.Args[0], func(c stdiorpc.Client) error {
		called = true

		_, err := c.ListPrompts(context.Background())
		require.NoError(t, err)

		return sentinel
	}, helperOptions()...)

	assert.True(t, called)
	assert.ErrorIs(t, err, sentinel)
}

func TestWithClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := stdiorpc.WithClient(ctx, os.Args[0], func(stdiorpc.Client) error {
		t.Error("callback should not be called with cancelled context")

		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSpawn_RuntimeNotFound(t *testing.T) {
	_, err := stdiorpc.Spawn(context.Background(), "server.js",
		stdiorpc.WithRuntime("definitely-not-a-runtime-binary"))

	var notFound *stdiorpc.RuntimeNotFoundError

	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "definitely-not-a-runtime-binary", notFound.Runtime)
}

func TestClient_NotStarted(t *testing.T) {
	client := stdiorpc.NewClient()

	_, err := client.ListTools(context.Background())
	require.ErrorIs(t, err, stdiorpc.ErrClientNotConnected)

	select {
	case <-client.Done():
	default:
		t.Fatal("Done should be closed before Start")
	}

	for range client.ReceiveNotifications(context.Background()) {
		t.Fatal("no notifications expected")
	}

	require.NoError(t, client.Close())
	require.ErrorIs(t, client.Start(context.Background(), os.Args[0]), stdiorpc.ErrClientClosed)
}
