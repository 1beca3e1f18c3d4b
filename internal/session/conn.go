package session

import (
	"context"
	"io"
	"sync"

	"github.com/wagiedev/stdio-rpc-go/internal/errors"
)

// Conn is the byte transport under a Session.
//
// The default implementation for the client role is subprocess.Process,
// which spawns a child and talks over its pipes. StdioConn serves the server
// role over the process's own stdin/stdout.
type Conn interface {
	// Start acquires the transport. For process transports this spawns the child.
	Start(ctx context.Context) error

	// Reader returns the inbound byte stream.
	Reader() io.Reader

	// SendMessage writes one serialized message. It must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// EndInput signals that no more messages will be sent.
	EndInput() error

	// Wait blocks until the peer has exited after the inbound stream ended
	// and reports how it exited.
	Wait() error

	// Close releases the transport, killing the child if it is still running.
	// It's safe to call Close multiple times.
	Close() error
}

// DiagnosticSource is implemented by transports that carry a diagnostic
// side channel, such as a child's stderr. The session installs its handler
// before Start.
type DiagnosticSource interface {
	SetDiagnosticHandler(fn func(line string))
}

// StdioConn is a Conn over an existing reader and writer, typically
// os.Stdin and os.Stdout of a server process.
type StdioConn struct {
	in  io.Reader
	out io.Writer

	pr *io.PipeReader
	pw *io.PipeWriter

	mu     sync.Mutex
	closed bool
}

// Compile-time verification that StdioConn implements Conn.
var _ Conn = (*StdioConn)(nil)

// NewStdioConn creates a Conn reading from in and writing to out.
func NewStdioConn(in io.Reader, out io.Writer) *StdioConn {
	pr, pw := io.Pipe()

	return &StdioConn{
		in:  in,
		out: out,
		pr:  pr,
		pw:  pw,
	}
}

// Start begins pumping the underlying reader.
//
// The pump lets Close unblock the session's read loop even when the
// underlying reader cannot be interrupted.
func (c *StdioConn) Start(_ context.Context) error {
	go func() {
		_, err := io.Copy(c.pw, c.in)
		_ = c.pw.CloseWithError(err)
	}()

	return nil
}

// Reader returns the inbound stream.
func (c *StdioConn) Reader() io.Reader {
	return c.pr
}

// SendMessage writes data to the output. Writes are serialized.
func (c *StdioConn) SendMessage(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrTransportClosed
	}

	_, err := c.out.Write(data)

	return err
}

// EndInput marks the output closed and ends the inbound stream, since no
// peer process will exit in response. The underlying reader and writer are
// left open.
func (c *StdioConn) EndInput() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	return c.pw.Close()
}

// Wait returns immediately; there is no peer process to wait for.
func (c *StdioConn) Wait() error {
	return nil
}

// Close stops the inbound stream.
func (c *StdioConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	return c.pr.CloseWithError(errors.ErrTransportClosed)
}
