package dispatch

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
)

func request(t *testing.T, method string, params any) *jsonrpc.Message {
	t.Helper()

	msg, err := jsonrpc.NewRequest(jsonrpc.NumberID(1), method, params)
	require.NoError(t, err)

	return msg
}

func newDispatcher() *Dispatcher {
	return New(slog.New(slog.DiscardHandler))
}

type echoParams struct {
	Text string `json:"text"`
}

type echoResult struct {
	Echo string `json:"echo"`
}

func TestHandle_Success(t *testing.T) {
	d := newDispatcher()
	d.Register("echo", Typed(func(_ context.Context, p echoParams) (*echoResult, error) {
		return &echoResult{Echo: p.Text}, nil
	}))

	resp := d.Handle(context.Background(), request(t, "echo", echoParams{Text: "hi"}))

	require.Nil(t, resp.Error)
	require.Equal(t, jsonrpc.NumberID(1), *resp.ID)

	var got echoResult
	require.NoError(t, resp.DecodeResult(&got))
	require.Equal(t, "hi", got.Echo)
}

func TestHandle_UnknownMethodInvokesNothing(t *testing.T) {
	d := newDispatcher()
	called := false

	d.Register("tools/list", func(context.Context, json.RawMessage) (any, error) {
		called = true

		return nil, nil
	})

	resp := d.Handle(context.Background(), request(t, "tools/lst", nil))

	require.False(t, called)
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.ErrorCodeMethodNotFound, resp.Error.Code)
	require.Equal(t, map[string]any{"method": "tools/lst"}, resp.Error.Data)
}

func TestHandle_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode jsonrpc.ErrorCode
		wantMsg  string
		wantData any
	}{
		{
			name:     "application error keeps its code",
			err:      errors.NewApplicationError(jsonrpc.ErrorCodeMethodNotFound, map[string]any{"tool": "x"}, "Unknown tool: x"),
			wantCode: jsonrpc.ErrorCodeMethodNotFound,
			wantMsg:  "Unknown tool: x",
			wantData: map[string]any{"tool": "x"},
		},
		{
			name:     "wrapped application error",
			err:      fmt.Errorf("read: %w", errors.NewApplicationError(jsonrpc.ErrorCodeInvalidRequest, nil, "Unknown resource")),
			wantCode: jsonrpc.ErrorCodeInvalidRequest,
			wantMsg:  "Unknown resource",
		},
		{
			name:     "invalid params sentinel",
			err:      fmt.Errorf("city must be a string: %w", errors.ErrInvalidParams),
			wantCode: jsonrpc.ErrorCodeInvalidParams,
			wantMsg:  "city must be a string: invalid params",
		},
		{
			name:     "unknown resource sentinel",
			err:      fmt.Errorf("note:///9: %w", errors.ErrUnknownResource),
			wantCode: jsonrpc.ErrorCodeInvalidRequest,
			wantMsg:  "note:///9: unknown resource",
		},
		{
			name:     "anything else",
			err:      stderrors.New("disk on fire"),
			wantCode: jsonrpc.ErrorCodeInternalError,
			wantMsg:  "Internal error",
			wantData: "disk on fire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDispatcher()
			d.Register("m", func(context.Context, json.RawMessage) (any, error) {
				return nil, tt.err
			})

			resp := d.Handle(context.Background(), request(t, "m", nil))

			require.NotNil(t, resp.Error)
			require.Equal(t, tt.wantCode, resp.Error.Code)
			require.Equal(t, tt.wantMsg, resp.Error.Message)
			require.Equal(t, tt.wantData, resp.Error.Data)
		})
	}
}

func TestHandle_PanicBecomesInternalError(t *testing.T) {
	d := newDispatcher()
	d.Register("boom", func(context.Context, json.RawMessage) (any, error) {
		panic("nil map write")
	})

	resp := d.Handle(context.Background(), request(t, "boom", nil))

	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.ErrorCodeInternalError, resp.Error.Code)
	require.Equal(t, "handler panic: nil map write", resp.Error.Data)
}

func TestTyped_DecodeFailureIsInvalidParams(t *testing.T) {
	d := newDispatcher()
	called := false

	d.Register("echo", Typed(func(_ context.Context, p echoParams) (*echoResult, error) {
		called = true

		return &echoResult{Echo: p.Text}, nil
	}))

	resp := d.Handle(context.Background(), request(t, "echo", map[string]any{"text": 42}))

	require.False(t, called)
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.ErrorCodeInvalidParams, resp.Error.Code)
}

func TestTyped_AbsentParamsUseZeroValue(t *testing.T) {
	d := newDispatcher()
	d.Register("echo", Typed(func(_ context.Context, p echoParams) (*echoResult, error) {
		return &echoResult{Echo: "[" + p.Text + "]"}, nil
	}))

	resp := d.Handle(context.Background(), request(t, "echo", nil))

	var got echoResult
	require.NoError(t, resp.DecodeResult(&got))
	require.Equal(t, "[]", got.Echo)
}

func TestHandle_NilResultIsEmptyObject(t *testing.T) {
	d := newDispatcher()
	d.Register("ping", func(context.Context, json.RawMessage) (any, error) {
		return nil, nil
	})

	resp := d.Handle(context.Background(), request(t, "ping", nil))

	require.JSONEq(t, `{}`, string(resp.Result))
}

func TestRegister_Replaces(t *testing.T) {
	d := newDispatcher()
	d.Register("m", func(context.Context, json.RawMessage) (any, error) { return "first", nil })
	d.Register("m", func(context.Context, json.RawMessage) (any, error) { return "second", nil })

	resp := d.Handle(context.Background(), request(t, "m", nil))
	require.JSONEq(t, `"second"`, string(resp.Result))
	require.Equal(t, []string{"m"}, d.Methods())
}

func TestMethods_Sorted(t *testing.T) {
	d := newDispatcher()

	for _, m := range []string{"tools/list", "initialize", "ping"} {
		d.Register(m, func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	}

	require.Equal(t, []string{"initialize", "ping", "tools/list"}, d.Methods())
}

func TestHandleNotification(t *testing.T) {
	d := newDispatcher()

	var got echoParams

	d.RegisterNotification("notifications/echo", TypedNotification(d.log, func(_ context.Context, p echoParams) {
		got = p
	}))

	msg, err := jsonrpc.NewNotification("notifications/echo", echoParams{Text: "hello"})
	require.NoError(t, err)

	require.True(t, d.HandleNotification(context.Background(), msg))
	require.Equal(t, "hello", got.Text)

	other, err := jsonrpc.NewNotification("notifications/other", nil)
	require.NoError(t, err)
	require.False(t, d.HandleNotification(context.Background(), other))
}

func TestHandleNotification_PanicIsRecovered(t *testing.T) {
	d := newDispatcher()
	d.RegisterNotification("n", func(context.Context, json.RawMessage) {
		panic("bug")
	})

	msg, err := jsonrpc.NewNotification("n", nil)
	require.NoError(t, err)

	require.NotPanics(t, func() {
		require.True(t, d.HandleNotification(context.Background(), msg))
	})
}
