package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/openlauncher/plugin-go/pkg/errors"
	"github.com/openlauncher/plugin-go/pkg/metric"
	"github.com/openlauncher/plugin-go/pkg/protocol"
)

// MethodFunc handles one inbound request and returns the result to send
// back. Domain failures are reported as *errors.ApplicationError; anything
// else is mapped to the unknown-error code on the wire.
type MethodFunc func(ctx context.Context, params json.RawMessage) (any, error)

// NotificationFunc handles one inbound notification. Failures are logged
// locally and never surfaced to the peer.
type NotificationFunc func(ctx context.Context, params json.RawMessage) error

// ReplyFunc delivers exactly one response or error frame for a request. The
// Router guarantees it is invoked exactly once per dispatched request.
type ReplyFunc func(result any, wireErr *protocol.ErrorObject)

type afterReplyKey struct{}

type afterReplyList struct {
	mu  sync.Mutex
	fns []func()
}

func (l *afterReplyList) add(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, fn)
}

func (l *afterReplyList) run() {
	l.mu.Lock()
	fns := l.fns
	l.fns = nil
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// AfterReply schedules fn to run once the response for the current request
// has been handed to the transport. Background work started by a handler
// uses this so its notifications never overtake the handler's own reply.
// It reports false when ctx does not belong to a request dispatch; the
// caller then runs fn itself.
func AfterReply(ctx context.Context, fn func()) bool {
	l, ok := ctx.Value(afterReplyKey{}).(*afterReplyList)
	if !ok {
		return false
	}
	l.add(fn)
	return true
}

type methodEntry struct {
	fn        MethodFunc
	immediate bool
	sensitive protocol.Sensitive
}

type notificationEntry struct {
	fn        NotificationFunc
	immediate bool
	sensitive protocol.Sensitive
}

// Router maps inbound method names to registered capability handlers. The
// handler set is assembled once during plugin construction and frozen before
// the first frame is read.
type Router struct {
	logger  zerolog.Logger
	metrics *metric.Metrics

	handlerTimeout time.Duration

	methods       map[string]*methodEntry
	notifications map[string]*notificationEntry
	frozen        atomic.Bool

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}

	wg sync.WaitGroup
}

// NewRouter creates a Router. handlerTimeout bounds each non-immediate
// handler invocation; zero disables the bound.
func NewRouter(logger zerolog.Logger, metrics *metric.Metrics, handlerTimeout time.Duration) *Router {
	return &Router{
		logger:         logger,
		metrics:        metrics,
		handlerTimeout: handlerTimeout,
		methods:        make(map[string]*methodEntry),
		notifications:  make(map[string]*notificationEntry),
		inFlight:       make(map[string]struct{}),
	}
}

// RegisterMethod binds a request handler to a method name. Immediate
// handlers run on the read path and must not block; everything else runs in
// its own goroutine. Sensitive params are redacted before logging.
func (r *Router) RegisterMethod(name string, fn MethodFunc, immediate bool, sensitive protocol.Sensitive) {
	if r.frozen.Load() {
		panic(fmt.Sprintf("handler: RegisterMethod(%q) after freeze", name))
	}
	r.methods[name] = &methodEntry{fn: fn, immediate: immediate, sensitive: sensitive}
}

// RegisterNotification binds a notification handler to a method name.
func (r *Router) RegisterNotification(name string, fn NotificationFunc, immediate bool, sensitive protocol.Sensitive) {
	if r.frozen.Load() {
		panic(fmt.Sprintf("handler: RegisterNotification(%q) after freeze", name))
	}
	r.notifications[name] = &notificationEntry{fn: fn, immediate: immediate, sensitive: sensitive}
}

// Freeze seals the handler set. Registration afterwards is a programming
// error and panics.
func (r *Router) Freeze() { r.frozen.Store(true) }

// Provides reports whether a request handler is registered for method.
// Capability queries consult this table, never the invocation path.
func (r *Router) Provides(method string) bool {
	_, ok := r.methods[method]
	return ok
}

// ProvidesNotification reports whether a notification handler is registered.
func (r *Router) ProvidesNotification(method string) bool {
	_, ok := r.notifications[method]
	return ok
}

// HandleRequest dispatches one inbound request. reply is called exactly once
// with either a result or a wire error, even when the handler fails, panics
// or times out.
func (r *Router) HandleRequest(ctx context.Context, env *protocol.Envelope, reply ReplyFunc) {
	var replyOnce sync.Once
	replyExactlyOnce := func(result any, wireErr *protocol.ErrorObject) {
		replyOnce.Do(func() { reply(result, wireErr) })
	}

	entry, ok := r.methods[env.Method]
	if !ok {
		r.logger.Error().Str("method", env.Method).Msg("received unknown request")
		replyExactlyOnce(nil, &protocol.ErrorObject{
			Code:    protocol.ErrMethodNotFound,
			Message: protocol.MsgMethodNotFound,
		})
		return
	}

	r.logger.Info().
		Str("method", env.Method).
		Str("id", protocol.IDString(env.ID)).
		Str("params", protocol.Redact(env.Params, entry.sensitive)).
		Msg("handling request")

	idKey := string(env.ID)
	if !r.markInFlight(idKey) {
		// The peer reused an id while the first call with it is still
		// pending. Violation scoped to the duplicate frame only.
		r.logger.Error().Str("id", protocol.IDString(env.ID)).Msg("duplicate request id while pending")
		replyExactlyOnce(nil, &protocol.ErrorObject{
			Code:    protocol.ErrInvalidRequest,
			Message: protocol.MsgInvalidRequest,
		})
		return
	}

	invoke := func(ctx context.Context) {
		defer r.clearInFlight(idKey)
		after := &afterReplyList{}
		defer after.run()
		defer r.recoverPanic(env.Method, replyExactlyOnce)

		r.metrics.RequestsInFlight.Inc()
		defer r.metrics.RequestsInFlight.Dec()

		result, err := entry.fn(context.WithValue(ctx, afterReplyKey{}, after), env.Params)
		if err != nil {
			r.metrics.HandlerFailures.WithLabelValues(env.Method).Inc()
			replyExactlyOnce(nil, r.wireError(env.Method, err))
			return
		}
		replyExactlyOnce(result, nil)
	}

	if entry.immediate {
		invoke(ctx)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		hctx := ctx
		if r.handlerTimeout > 0 {
			var cancel context.CancelFunc
			hctx, cancel = context.WithTimeout(ctx, r.handlerTimeout)
			defer cancel()
		}
		invoke(hctx)
	}()
}

// HandleNotification dispatches one inbound notification. Absent handlers
// are ignored; there is no id to attach an error to.
func (r *Router) HandleNotification(ctx context.Context, env *protocol.Envelope) {
	entry, ok := r.notifications[env.Method]
	if !ok {
		r.logger.Debug().Str("method", env.Method).Msg("ignoring unhandled notification")
		return
	}

	r.logger.Info().
		Str("method", env.Method).
		Str("params", protocol.Redact(env.Params, entry.sensitive)).
		Msg("handling notification")

	invoke := func(ctx context.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error().Interface("panic", rec).Str("method", env.Method).
					Msg("panic in notification handler")
			}
		}()
		if err := entry.fn(ctx, env.Params); err != nil {
			r.logger.Error().Err(err).Str("method", env.Method).Msg("notification handler failed")
		}
	}

	if entry.immediate {
		invoke(ctx)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		invoke(ctx)
	}()
}

// Drain waits up to timeout for in-flight handlers to finish. It returns
// false when the grace period expired with handlers still running.
func (r *Router) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (r *Router) markInFlight(id string) bool {
	r.inFlightMu.Lock()
	defer r.inFlightMu.Unlock()
	if _, dup := r.inFlight[id]; dup {
		return false
	}
	r.inFlight[id] = struct{}{}
	return true
}

func (r *Router) clearInFlight(id string) {
	r.inFlightMu.Lock()
	defer r.inFlightMu.Unlock()
	delete(r.inFlight, id)
}

func (r *Router) recoverPanic(method string, reply ReplyFunc) {
	if rec := recover(); rec != nil {
		r.logger.Error().Interface("panic", rec).Str("method", method).Msg("panic in request handler")
		r.metrics.HandlerFailures.WithLabelValues(method).Inc()
		reply(nil, apperrors.ToWire(apperrors.Unknown()))
	}
}

// wireError maps a handler failure to its wire form. Local timeouts and
// cancellations short-circuit to the protocol codes; domain errors keep
// their taxonomy code; anything else collapses to unknown.
func (r *Router) wireError(method string, err error) *protocol.ErrorObject {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		r.logger.Error().Str("method", method).Msg("request handler timed out")
		return &protocol.ErrorObject{Code: protocol.ErrTimeout, Message: protocol.MsgTimeout}
	case errors.Is(err, context.Canceled):
		return &protocol.ErrorObject{Code: protocol.ErrAborted, Message: protocol.MsgAborted}
	default:
		var paramErr *apperrors.InvalidParamsError
		if errors.As(err, &paramErr) {
			r.logger.Warn().Err(err).Str("method", method).Msg("rejecting malformed params")
			return &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: protocol.MsgInvalidParams}
		}
		var appErr *apperrors.ApplicationError
		if !errors.As(err, &appErr) {
			r.logger.Error().Err(err).Str("method", method).Msg("unexpected error in request handler")
		}
		return apperrors.ToWire(err)
	}
}
