package correlation

import (
	"context"
	"sync"
	"time"

	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
)

// PendingCall is an outbound request awaiting its response.
type PendingCall struct {
	id      jsonrpc.RequestID
	created time.Time
	done    chan struct{}

	// Written once by the goroutine that removed the call from the table,
	// before done is closed.
	resp *jsonrpc.Message
	err  error
}

// ID returns the request id.
func (p *PendingCall) ID() jsonrpc.RequestID {
	return p.id
}

// Created returns when the call was registered.
func (p *PendingCall) Created() time.Time {
	return p.created
}

// Done returns a channel closed when the call completes.
func (p *PendingCall) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the call completes or ctx is done.
//
// A context error does not remove the call from its table; callers that give
// up waiting should call Table.Remove.
func (p *PendingCall) Wait(ctx context.Context) (*jsonrpc.Message, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *PendingCall) complete(resp *jsonrpc.Message, err error) {
	p.resp = resp
	p.err = err
	close(p.done)
}

// Table tracks outstanding requests by id. It is safe for concurrent use.
type Table struct {
	mu       sync.Mutex
	lastID   int64
	pending  map[jsonrpc.RequestID]*PendingCall
	drained  bool
	drainErr error
}

// New creates an empty table.
func New() *Table {
	return &Table{
		pending: make(map[jsonrpc.RequestID]*PendingCall, 10),
	}
}

// NextID returns a fresh integer id. Ids start at 1 and increase monotonically.
func (t *Table) NextID() jsonrpc.RequestID {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastID++

	return jsonrpc.NumberID(t.lastID)
}

// Register records a pending call for id.
//
// It fails with ErrDuplicateID if id is still outstanding, and with a
// *errors.SessionClosedError once the table has been drained.
func (t *Table) Register(id jsonrpc.RequestID) (*PendingCall, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.drained {
		return nil, &errors.SessionClosedError{Reason: t.drainErr}
	}

	if _, exists := t.pending[id]; exists {
		return nil, errors.ErrDuplicateID
	}

	call := &PendingCall{
		id:      id,
		created: time.Now(),
		done:    make(chan struct{}),
	}

	t.pending[id] = call

	return call, nil
}

// Resolve completes the call for id with a response.
func (t *Table) Resolve(id jsonrpc.RequestID, resp *jsonrpc.Message) error {
	call, err := t.claim(id)
	if err != nil {
		return err
	}

	call.complete(resp, nil)

	return nil
}

// Reject completes the call for id with an error.
func (t *Table) Reject(id jsonrpc.RequestID, reason error) error {
	call, err := t.claim(id)
	if err != nil {
		return err
	}

	call.complete(nil, reason)

	return nil
}

// Remove drops the call for id without completing it. A response that
// arrives later is treated as unknown. It reports whether the id was pending.
func (t *Table) Remove(id jsonrpc.RequestID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, exists := t.pending[id]
	delete(t.pending, id)

	return exists
}

// DrainAll fails every pending call with a *errors.SessionClosedError
// carrying reason, and refuses later registrations. Only the first call has
// any effect; it returns the number of calls failed.
func (t *Table) DrainAll(reason error) int {
	t.mu.Lock()

	if t.drained {
		t.mu.Unlock()

		return 0
	}

	t.drained = true
	t.drainErr = reason

	calls := make([]*PendingCall, 0, len(t.pending))
	for id, call := range t.pending {
		calls = append(calls, call)
		delete(t.pending, id)
	}

	t.mu.Unlock()

	for _, call := range calls {
		call.complete(nil, &errors.SessionClosedError{Reason: reason})
	}

	return len(calls)
}

// Len returns the number of outstanding calls.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.pending)
}

// claim removes and returns the call for id.
func (t *Table) claim(id jsonrpc.RequestID) (*PendingCall, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	call, exists := t.pending[id]
	if !exists {
		return nil, &errors.ProtocolError{ID: id.String(), Reason: "no pending call"}
	}

	delete(t.pending, id)

	return call, nil
}
