package framer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
)

const (
	responseOne = `{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`
	responseTwo = `{"jsonrpc":"2.0","id":2,"result":{"ok":true}}`
	notifyLine  = `{"jsonrpc":"2.0","method":"notifications/progress","params":{"pct":50}}`
)

// feedAll feeds each chunk in turn and collects the results.
func feedAll(f *Framer, chunks ...string) ([]*jsonrpc.Message, []string) {
	var (
		msgs []*jsonrpc.Message
		errs []string
	)

	for _, c := range chunks {
		m, e := f.Feed([]byte(c))
		msgs = append(msgs, m...)

		for _, pe := range e {
			errs = append(errs, string(pe.Raw))
		}
	}

	return msgs, errs
}

func TestFeed_TwoResponsesInOneChunk(t *testing.T) {
	f := New()

	msgs, errs := feedAll(f, responseOne+"\n"+responseTwo+"\n")

	require.Empty(t, errs)
	require.Len(t, msgs, 2)
	require.Equal(t, jsonrpc.NumberID(1), *msgs[0].ID)
	require.Equal(t, jsonrpc.NumberID(2), *msgs[1].ID)
	require.Zero(t, f.Buffered())
}

func TestFeed_MessageSplitAcrossChunks(t *testing.T) {
	f := New()

	msgs, errs := feedAll(f, responseOne[:10])
	require.Empty(t, msgs)
	require.Empty(t, errs)
	require.Equal(t, 10, f.Buffered())

	msgs, errs = feedAll(f, responseOne[10:], "\n")
	require.Empty(t, errs)
	require.Len(t, msgs, 1)
	require.Equal(t, jsonrpc.KindResponse, msgs[0].Kind())
	require.Zero(t, f.Buffered())
}

func TestFeed_IncompleteTailIsRetained(t *testing.T) {
	f := New()

	msgs, _ := feedAll(f, responseOne+"\n"+`{"jsonrpc":"2.0",`)

	require.Len(t, msgs, 1)
	require.Equal(t, len(`{"jsonrpc":"2.0",`), f.Buffered())
}

func TestFeed_BlankLinesAndCRLF(t *testing.T) {
	f := New()

	msgs, errs := feedAll(f, "\n\n   \n"+responseOne+"\r\n\r\n"+notifyLine+"\n")

	require.Empty(t, errs)
	require.Len(t, msgs, 2)
	require.Equal(t, jsonrpc.KindNotification, msgs[1].Kind())
}

func TestFeed_MalformedUnitIsSkipped(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "bad json", line: `{"jsonrpc":"2.0","id":`},
		{name: "wrong version", line: `{"jsonrpc":"1.0","id":1,"result":{}}`},
		{name: "both result and error", line: `{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":-32603,"message":"x"}}`},
		{name: "neither result nor error", line: `{"jsonrpc":"2.0","id":1}`},
		{name: "not an object", line: `[1,2,3]`},
		{name: "plain text", line: `Server running on stdio`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New()

			msgs, errs := feedAll(f, tt.line+"\n"+responseOne+"\n")

			require.Len(t, errs, 1)
			require.Equal(t, tt.line, errs[0])
			require.Len(t, msgs, 1)
			require.Equal(t, jsonrpc.NumberID(1), *msgs[0].ID)
		})
	}
}

func TestFeed_ChunkingInvariance(t *testing.T) {
	stream := responseOne + "\n" +
		"garbage\n" +
		"\r\n" +
		notifyLine + "\r\n" +
		`{"jsonrpc":"2.0","id":"abc","method":"tools/list"}` + "\n" +
		responseTwo + "\n" +
		`{"jsonrpc":"2.0","id":3,"result":{"text":"line\nbreak"}}` + "\n" +
		`{"partial":`

	wantMsgs, wantErrs := feedAll(New(), stream)
	require.Len(t, wantMsgs, 5)
	require.Len(t, wantErrs, 1)

	// Every single split point.
	for i := 0; i <= len(stream); i++ {
		f := New()
		gotMsgs, gotErrs := feedAll(f, stream[:i], stream[i:])

		require.Equal(t, wantMsgs, gotMsgs, "split at %d", i)
		require.Equal(t, wantErrs, gotErrs, "split at %d", i)
		require.Equal(t, len(`{"partial":`), f.Buffered(), "split at %d", i)
	}

	// Byte at a time.
	chunks := make([]string, 0, len(stream))
	for _, r := range []byte(stream) {
		chunks = append(chunks, string(r))
	}

	gotMsgs, gotErrs := feedAll(New(), chunks...)
	require.Equal(t, wantMsgs, gotMsgs)
	require.Equal(t, wantErrs, gotErrs)
}

func TestFeed_OversizedUnit(t *testing.T) {
	big := `{"jsonrpc":"2.0","id":9,"result":"` + strings.Repeat("x", 200) + `"}`
	stream := big + "\n" + responseOne + "\n"

	for _, split := range []int{0, 50, 120, len(big), len(big) + 1} {
		f := New(WithMaxMessageSize(64))

		msgs, errs := feedAll(f, stream[:split], stream[split:])

		require.Len(t, errs, 1, "split at %d", split)
		require.Equal(t, big[:64], errs[0], "split at %d", split)
		require.Len(t, msgs, 1, "split at %d", split)
		require.Equal(t, jsonrpc.NumberID(1), *msgs[0].ID)
		require.Zero(t, f.Buffered())
	}
}

func TestFeed_MaxSizeAllowsTrailingCR(t *testing.T) {
	f := New(WithMaxMessageSize(len(responseOne)))

	msgs, errs := feedAll(f, responseOne+"\r", "\n")

	require.Empty(t, errs)
	require.Len(t, msgs, 1)
}

func TestSerialize(t *testing.T) {
	msg, err := jsonrpc.NewRequest(jsonrpc.NumberID(7), "tools/call", map[string]any{
		"name":      "get_forecast",
		"arguments": map[string]any{"city": "New\nYork"},
	})
	require.NoError(t, err)

	data, err := Serialize(msg)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(data), "\n"))
	require.Equal(t, 1, strings.Count(string(data), "\n"))

	msgs, errs := New().Feed(data)
	require.Empty(t, errs)
	require.Len(t, msgs, 1)
	require.Equal(t, "tools/call", msgs[0].Method)
	require.Equal(t, jsonrpc.NumberID(7), *msgs[0].ID)
}

func TestSerialize_CompactsRawParams(t *testing.T) {
	msg := &jsonrpc.Message{
		JSONRPCVersion: jsonrpc.ProtocolVersion,
		Method:         "notifications/initialized",
		Params:         []byte("{\n  \"a\": 1\n}"),
	}

	data, err := Serialize(msg)
	require.NoError(t, err)
	require.Equal(t, `{"jsonrpc":"2.0","method":"notifications/initialized","params":{"a":1}}`+"\n", string(data))
}

func TestSerialize_RejectsInvalidMessage(t *testing.T) {
	_, err := Serialize(&jsonrpc.Message{JSONRPCVersion: jsonrpc.ProtocolVersion})
	require.Error(t, err)
}

func TestReset(t *testing.T) {
	f := New()
	feedAll(f, `{"jsonrpc":`)
	require.NotZero(t, f.Buffered())

	f.Reset()
	require.Zero(t, f.Buffered())

	msgs, errs := feedAll(f, responseOne+"\n")
	require.Empty(t, errs)
	require.Len(t, msgs, 1)
}
