// Package framer converts between JSON-RPC messages and the newline-delimited
// byte stream carried over process pipes.
//
// Each message is one compact JSON document terminated by '\n'. The encoder
// never emits raw newlines inside a document, so the delimiter is unambiguous.
package framer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
)

const (
	// DefaultMaxMessageSize bounds a single unit on the wire.
	DefaultMaxMessageSize = 10 * 1024 * 1024 // 10MB

	// maxRawPreview caps how many bytes of an oversized unit a ParseError keeps.
	maxRawPreview = 256
)

// Framer splits an inbound byte stream into messages. It keeps the
// incomplete tail of the stream between calls to Feed.
//
// A Framer is not safe for concurrent use; a session owns exactly one and
// feeds it from its read loop.
type Framer struct {
	maxSize    int
	buf        []byte
	discarding bool
}

// Option configures a Framer.
type Option func(*Framer)

// WithMaxMessageSize sets the largest unit accepted before the rest of the
// line is discarded. Non-positive values keep the default.
func WithMaxMessageSize(n int) Option {
	return func(f *Framer) {
		if n > 0 {
			f.maxSize = n
		}
	}
}

// New creates a Framer.
func New(opts ...Option) *Framer {
	f := &Framer{maxSize: DefaultMaxMessageSize}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Serialize encodes a message as one compact JSON document followed by '\n'.
func Serialize(msg *jsonrpc.Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("serialize %s: %w", msg.Kind(), err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", msg.Kind(), err)
	}

	return append(data, '\n'), nil
}

// Feed consumes a chunk of the stream and returns every message completed by
// it, in delimiter order, together with a ParseError for every malformed unit.
// Malformed units are discarded; parsing continues with the next unit.
func (f *Framer) Feed(chunk []byte) ([]*jsonrpc.Message, []*errors.ParseError) {
	var (
		msgs []*jsonrpc.Message
		errs []*errors.ParseError
	)

	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, '\n')

		if idx < 0 {
			f.appendTail(chunk, &errs)

			break
		}

		part := chunk[:idx]
		chunk = chunk[idx+1:]

		if f.discarding {
			f.discarding = false

			continue
		}

		var line []byte
		if len(f.buf) > 0 {
			line = append(f.buf, part...)
			f.buf = f.buf[:0]
		} else {
			line = part
		}

		msg, perr := f.parseLine(line)

		switch {
		case perr != nil:
			errs = append(errs, perr)
		case msg != nil:
			msgs = append(msgs, msg)
		}
	}

	return msgs, errs
}

// Buffered reports the number of bytes retained from an incomplete unit.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset drops any retained bytes.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.discarding = false
}

func (f *Framer) appendTail(part []byte, errs *[]*errors.ParseError) {
	if f.discarding {
		return
	}

	f.buf = append(f.buf, part...)

	// One extra byte leaves room for a trailing '\r' that parseLine strips.
	if len(f.buf) > f.maxSize+1 {
		*errs = append(*errs, f.oversized(f.buf))
		f.buf = f.buf[:0]
		f.discarding = true
	}
}

func (f *Framer) parseLine(line []byte) (*jsonrpc.Message, *errors.ParseError) {
	line = bytes.TrimSuffix(line, []byte{'\r'})

	if len(line) > f.maxSize {
		return nil, f.oversized(line)
	}

	if len(bytes.TrimSpace(line)) == 0 {
		return nil, nil
	}

	var msg jsonrpc.Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, &errors.ParseError{
			Raw: bytes.Clone(line),
			Err: err,
		}
	}

	return &msg, nil
}

func (f *Framer) oversized(data []byte) *errors.ParseError {
	n := min(f.maxSize, maxRawPreview, len(data))

	return &errors.ParseError{
		Raw: bytes.Clone(data[:n]),
		Err: fmt.Errorf("message exceeds maximum size of %d bytes", f.maxSize),
	}
}
