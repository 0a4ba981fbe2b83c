// Package handler contains the two halves of the message engine: the Tracker
// correlating outbound calls with their responses, and the Router dispatching
// inbound requests and notifications to capability handlers.
package handler

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/openlauncher/plugin-go/pkg/errors"
	"github.com/openlauncher/plugin-go/pkg/metric"
	"github.com/openlauncher/plugin-go/pkg/protocol"
)

// PendingCall is the handle for one outbound request. It is settled exactly
// once: by the matching response, by timeout, by cancellation, or by
// connection closure.
type PendingCall struct {
	id     int64
	method string

	done chan settlement
	once sync.Once
}

type settlement struct {
	result json.RawMessage
	err    error
}

// ID returns the wire id allocated for the call.
func (c *PendingCall) ID() int64 { return c.id }

// Method returns the method the call was issued for.
func (c *PendingCall) Method() string { return c.method }

func (c *PendingCall) settle(result json.RawMessage, err error) {
	c.once.Do(func() {
		c.done <- settlement{result: result, err: err}
	})
}

// Tracker owns every pending outbound call. Ids are allocated from an atomic
// counter and never reused while a call is outstanding.
type Tracker struct {
	logger  zerolog.Logger
	metrics *metric.Metrics

	idCounter atomic.Int64

	mu       sync.Mutex
	pending  map[int64]*PendingCall
	closed   bool
	closeErr error
}

// NewTracker creates a Tracker.
func NewTracker(logger zerolog.Logger, metrics *metric.Metrics) *Tracker {
	return &Tracker{
		logger:  logger,
		metrics: metrics,
		pending: make(map[int64]*PendingCall),
	}
}

// Track allocates a fresh id and registers a pending call for it. It fails
// once the tracker has been closed.
func (t *Tracker) Track(method string) (*PendingCall, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, t.closeErr
	}

	call := &PendingCall{
		id:     t.idCounter.Add(1),
		method: method,
		done:   make(chan settlement, 1),
	}
	t.pending[call.id] = call
	t.metrics.CallsPending.Inc()
	return call, nil
}

// Untrack drops a call that will never be settled through the tracker, e.g.
// when writing the request frame failed.
func (t *Tracker) Untrack(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remove(id)
}

// remove must be called with the lock held.
func (t *Tracker) remove(id int64) *PendingCall {
	call, ok := t.pending[id]
	if !ok {
		return nil
	}
	delete(t.pending, id)
	t.metrics.CallsPending.Dec()
	return call
}

// HandleResponse settles the pending call matching the response id. Unknown
// and already settled ids are discarded and counted; a misbehaving peer
// replaying frames must not be fatal.
func (t *Tracker) HandleResponse(env *protocol.Envelope) bool {
	id, ok := protocol.ParseIntID(env.ID)
	if !ok {
		t.discard(protocol.IDString(env.ID))
		return false
	}

	t.mu.Lock()
	call := t.remove(id)
	t.mu.Unlock()

	if call == nil {
		t.discard(protocol.IDString(env.ID))
		return false
	}

	if env.Error != nil {
		call.settle(nil, apperrors.FromWire(env.Error))
	} else {
		call.settle(env.Result, nil)
	}
	return true
}

func (t *Tracker) discard(id string) {
	t.metrics.ResponsesDiscarded.Inc()
	t.logger.Warn().Str("id", id).Msg("discarding response for unknown or settled id")
}

// Wait suspends the caller until the call settles, the timeout elapses, or
// ctx is cancelled. A late response arriving after either failure is
// discarded by HandleResponse, not double-delivered.
func (t *Tracker) Wait(ctx context.Context, call *PendingCall, timeout time.Duration) (json.RawMessage, error) {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-ctx.Done():
		t.Untrack(call.id)
		call.settle(nil, apperrors.ErrCallCancelled)
		return nil, ctx.Err()
	case <-timeoutCh:
		t.Untrack(call.id)
		err := &apperrors.TimeoutError{Method: call.method, Timeout: timeout}
		call.settle(nil, err)
		return nil, err
	case s := <-call.done:
		return s.result, s.err
	}
}

// FailAll settles every pending call with err and rejects future Track
// calls. Used when the transport closes or shutdown begins.
func (t *Tracker) FailAll(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	t.closeErr = err

	for id, call := range t.pending {
		call.settle(nil, err)
		delete(t.pending, id)
		t.metrics.CallsPending.Dec()
	}
}

// PendingCount returns the number of calls awaiting settlement.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
