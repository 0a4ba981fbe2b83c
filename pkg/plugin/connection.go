package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/openlauncher/plugin-go/pkg/errors"
	"github.com/openlauncher/plugin-go/pkg/handler"
	"github.com/openlauncher/plugin-go/pkg/metric"
	"github.com/openlauncher/plugin-go/pkg/protocol"
	"github.com/openlauncher/plugin-go/pkg/transport"
)

// Connection ties the transport, the router and the tracker together: one
// reader loop classifies inbound frames and feeds them to the right half of
// the engine, while outbound frames from any goroutine funnel through the
// transport's serialized writer.
type Connection struct {
	transport transport.Transport
	router    *handler.Router
	tracker   *handler.Tracker
	logger    zerolog.Logger
	metrics   *metric.Metrics

	callTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}

	onCloseMu sync.Mutex
	onClose   func()
}

// NewConnection creates a Connection over an established transport.
// callTimeout bounds every outbound call; zero disables the bound.
func NewConnection(t transport.Transport, r *handler.Router, tr *handler.Tracker,
	logger zerolog.Logger, metrics *metric.Metrics, callTimeout time.Duration) *Connection {
	return &Connection{
		transport:   t,
		router:      r,
		tracker:     tr,
		logger:      logger,
		metrics:     metrics,
		callTimeout: callTimeout,
		closed:      make(chan struct{}),
	}
}

// OnClose registers the callback fired once when the connection stops
// reading, whether by peer disconnect or local Close. Must be set before Run.
func (c *Connection) OnClose(fn func()) {
	c.onCloseMu.Lock()
	defer c.onCloseMu.Unlock()
	c.onClose = fn
}

// Done is closed when the connection has stopped reading.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Run reads frames until the stream closes or ctx is cancelled. Frames are
// read strictly in arrival order; a decode failure rejects only the single
// frame. On exit every pending call fails with a connection-closed condition
// and the OnClose callback fires.
func (c *Connection) Run(ctx context.Context) error {
	defer c.markClosed()

	for {
		frame, err := c.transport.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
				c.logger.Info().Msg("transport closed")
				return nil
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil
			default:
				c.logger.Error().Err(err).Msg("transport read failed")
				return fmt.Errorf("read frame: %w", err)
			}
		}
		c.metrics.FramesRead.Inc()
		c.handleFrame(ctx, frame)
	}
}

func (c *Connection) handleFrame(ctx context.Context, frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		c.metrics.DecodeFailures.Inc()
		var decodeErr *protocol.DecodeError
		if errors.As(err, &decodeErr) {
			c.logger.Warn().Err(decodeErr).Msg("rejecting malformed frame")
			c.send(ctx, protocol.NewErrorResponse(decodeErr.ID, decodeErr.WireError()))
		}
		return
	}

	switch env.Kind() {
	case protocol.KindResponse:
		c.tracker.HandleResponse(env)
	case protocol.KindRequest:
		id := env.ID
		c.router.HandleRequest(ctx, env, func(result any, wireErr *protocol.ErrorObject) {
			if wireErr != nil {
				c.send(ctx, protocol.NewErrorResponse(id, wireErr))
				return
			}
			c.send(ctx, protocol.NewResponse(id, result))
		})
	case protocol.KindNotification:
		c.router.HandleNotification(ctx, env)
	}
}

// Call issues an outbound request and suspends the caller until settlement.
// Only this caller is suspended; concurrent calls proceed independently.
func (c *Connection) Call(ctx context.Context, method string, params any, sensitive protocol.Sensitive) (json.RawMessage, error) {
	call, err := c.tracker.Track(method)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("method", method).
		Int64("id", call.ID()).
		Str("params", protocol.Redact(params, sensitive)).
		Msg("sending request")

	if err := c.send(ctx, protocol.NewRequest(call.ID(), method, params)); err != nil {
		c.tracker.Untrack(call.ID())
		return nil, err
	}
	return c.tracker.Wait(ctx, call, c.callTimeout)
}

// Notify emits an outbound notification. Delivery is best-effort; no
// acknowledgement exists.
func (c *Connection) Notify(ctx context.Context, method string, params any, sensitive protocol.Sensitive) error {
	c.logger.Info().
		Str("method", method).
		Str("params", protocol.Redact(params, sensitive)).
		Msg("sending notification")
	return c.send(ctx, protocol.NewNotification(method, params))
}

func (c *Connection) send(ctx context.Context, v any) error {
	data, err := protocol.Encode(v)
	if err != nil {
		c.logger.Error().Err(err).Msg("dropping unencodable frame")
		return err
	}
	if err := c.transport.Send(ctx, data); err != nil {
		c.logger.Error().Err(err).Msg("write frame failed")
		return err
	}
	c.metrics.FramesWritten.Inc()
	return nil
}

// Close closes the transport, which unblocks the reader loop.
func (c *Connection) Close() error {
	err := c.transport.Close()
	c.markClosed()
	return err
}

func (c *Connection) markClosed() {
	c.closeOnce.Do(func() {
		c.tracker.FailAll(apperrors.ErrConnectionClosed)
		close(c.closed)

		c.onCloseMu.Lock()
		fn := c.onClose
		c.onCloseMu.Unlock()
		if fn != nil {
			fn()
		}
	})
}
