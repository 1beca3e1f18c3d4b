package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/stdio-rpc-go/internal/config"
	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/session"
)

const (
	// maxStderrLineSize is the longest stderr line reported as one diagnostic.
	maxStderrLineSize = 1024 * 1024 // 1MB
	// maxStderrBufferSize is the maximum size for the stderr buffer.
	// Stderr reading continues indefinitely (callbacks receive all lines),
	// but the buffer stops growing after this limit to prevent unbounded memory usage.
	maxStderrBufferSize = 10 * 1024 * 1024 // 10MB
)

// Process is a session transport over the pipes of a spawned child.
type Process struct {
	log     *slog.Logger
	options *config.Options
	path    string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	stderrWg  sync.WaitGroup
	stderrMu  sync.Mutex
	stderrBuf strings.Builder
	diag      func(string)

	waitOnce sync.Once
	waitErr  error

	mu          sync.Mutex // Protects stdin writes and the flags below
	closing     bool       // Whether Close() has been called (intentional shutdown)
	stdinClosed bool       // Whether stdin was closed
}

// Compile-time verification that Process implements the transport interfaces.
var (
	_ config.Transport         = (*Process)(nil)
	_ session.DiagnosticSource = (*Process)(nil)
)

// New creates a transport that launches the server at path.
//
// The command line is "<runtime> <path> [args...]". The runtime comes from
// options.Runtime or is inferred from the path extension; without one the
// path is executed directly. Runtime discovery is deferred to Start().
func New(log *slog.Logger, path string, options *config.Options) *Process {
	if options == nil {
		options = &config.Options{}
	}

	return &Process{
		log:     log.With("component", "subprocess"),
		options: options,
		path:    path,
	}
}

// SetDiagnosticHandler sets the function receiving every stderr line.
// It must be called before Start.
func (p *Process) SetDiagnosticHandler(fn func(line string)) {
	p.diag = fn
}

// Start spawns the child process.
//
// Returns RuntimeNotFoundError if the runtime cannot be located. The
// session owns the child's lifetime, so ctx only bounds discovery.
func (p *Process) Start(ctx context.Context) error {
	name, args, err := p.commandLine(ctx)
	if err != nil {
		return err
	}

	cwd := p.options.Cwd
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	//nolint:gosec // G204: launching a configured server is the purpose of this package
	cmd := exec.Command(name, args...)
	cmd.Dir = cwd
	cmd.Env = buildEnvironment(p.options.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	p.log.Debug("Starting child process", "command", name, "args", args, "cwd", cwd)

	if err := cmd.Start(); err != nil {
		p.log.Error("Failed to start child process", "error", err)

		return fmt.Errorf("start process: %w", err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.stdin = stdin
	p.stdout = stdout
	p.mu.Unlock()

	p.stderrWg.Go(func() {
		p.readStderr(stderr)
	})

	p.log.Info("Child process started", "pid", cmd.Process.Pid)

	return nil
}

// commandLine resolves the executable and its arguments.
func (p *Process) commandLine(ctx context.Context) (string, []string, error) {
	runtime := p.options.Runtime
	if runtime == "" {
		runtime = InferRuntime(p.path)
	}

	if runtime == "" {
		return p.path, slices.Clone(p.options.Args), nil
	}

	discoverer := NewDiscoverer(&Config{
		Runtime:        runtime,
		MinimumVersion: p.options.MinimumRuntimeVersion,
		Logger:         p.log,
	})

	runtimePath, err := discoverer.Discover(ctx)
	if err != nil {
		return "", nil, err
	}

	args := make([]string, 0, 1+len(p.options.Args))
	args = append(args, p.path)
	args = append(args, p.options.Args...)

	return runtimePath, args, nil
}

// buildEnvironment merges extra variables over the inherited environment.
func buildEnvironment(extra map[string]string) []string {
	env := os.Environ()

	for _, key := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, key+"="+extra[key])
	}

	return env
}

// readStderr copies stderr to the configured writer and reports each line.
// It relies on process exit to close the pipe and unblock reads.
func (p *Process) readStderr(stderr io.Reader) {
	out := p.options.Stderr
	if out == nil {
		out = os.Stderr
	}

	reader := io.TeeReader(stderr, out)

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStderrLineSize)

	for scanner.Scan() {
		line := scanner.Text()

		p.stderrMu.Lock()

		if p.stderrBuf.Len() < maxStderrBufferSize {
			if p.stderrBuf.Len() > 0 {
				p.stderrBuf.WriteString("\n")
			}

			p.stderrBuf.WriteString(line)
		}

		p.stderrMu.Unlock()

		if p.options.StderrCallback != nil {
			p.options.StderrCallback(line)
		}

		if p.diag != nil {
			p.diag(line)
		}
	}

	if err := scanner.Err(); err != nil {
		p.log.Debug("Stderr scanner error", "error", err)

		// Keep the passthrough flowing so the child never blocks on stderr.
		_, _ = io.Copy(io.Discard, reader)
	}
}

// Reader returns the child's stdout.
func (p *Process) Reader() io.Reader {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdout == nil {
		return strings.NewReader("")
	}

	return p.stdout
}

// Stderr returns the buffered stderr output seen so far.
func (p *Process) Stderr() string {
	p.stderrMu.Lock()
	defer p.stderrMu.Unlock()

	return p.stderrBuf.String()
}

// Pid returns the child's process id, or 0 before Start.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}

	return p.cmd.Process.Pid
}

// SendMessage writes one serialized message to the child's stdin.
//
// This method is safe for concurrent use and respects context cancellation
// even during blocking writes. If the context is cancelled during a blocked
// write, stdin is closed to unblock it. Subsequent calls return ErrStdinClosed.
func (p *Process) SendMessage(ctx context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdin == nil && !p.stdinClosed {
		return errors.ErrTransportClosed
	}

	if p.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Use explicit copy to avoid mutating caller's backing array if slice has spare capacity
	if len(data) == 0 || data[len(data)-1] != '\n' {
		newData := make([]byte, len(data)+1)
		copy(newData, data)
		newData[len(data)] = '\n'
		data = newData
	}

	done := make(chan error, 1)

	go func() {
		_, err := p.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			p.log.Error("Failed to write message to child", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		p.log.Debug("Context cancelled during write, closing stdin")

		_ = p.stdin.Close()
		p.stdinClosed = true

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			p.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// EndInput closes stdin. The child is expected to exit once it has
// answered what it already read.
func (p *Process) EndInput() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdin != nil && !p.stdinClosed {
		p.log.Debug("Closing stdin pipe")

		err := p.stdin.Close()
		p.stdinClosed = true

		return err
	}

	p.stdinClosed = true

	return nil
}

// Wait reaps the child after its stdout has been drained.
//
// A non-zero exit is reported as ProcessError carrying the buffered stderr,
// unless Close caused it.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.wait()
	})

	return p.waitErr
}

func (p *Process) wait() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil {
		return nil
	}

	// Stderr reads must complete before Wait closes the pipes.
	p.stderrWg.Wait()

	err := cmd.Wait()
	if err == nil {
		p.log.Info("Child process exited")

		return nil
	}

	p.mu.Lock()
	closing := p.closing
	p.mu.Unlock()

	if closing {
		p.log.Debug("Child process terminated during shutdown")

		return nil
	}

	exitCode := -1
	if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
		exitCode = exitErr.ExitCode()
	}

	stderr := strings.TrimSpace(p.Stderr())

	p.log.Error("Child process exited with error", "exit_code", exitCode, "stderr", stderr)

	return &errors.ProcessError{
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      err,
	}
}

// Close kills the child if it is still running. It's safe to call Close
// multiple times or on an already-terminated process.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closing = true

	if p.stdin != nil && !p.stdinClosed {
		_ = p.stdin.Close()
	}

	p.stdinClosed = true

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	p.log.Debug("Killing child process", "pid", p.cmd.Process.Pid)

	if err := p.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill child process (pid %d): %w", p.cmd.Process.Pid, err)
	}

	return nil
}
