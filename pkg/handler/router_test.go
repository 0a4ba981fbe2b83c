package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openlauncher/plugin-go/pkg/errors"
	"github.com/openlauncher/plugin-go/pkg/logging"
	"github.com/openlauncher/plugin-go/pkg/metric"
	"github.com/openlauncher/plugin-go/pkg/protocol"
)

type capturedReply struct {
	mu      sync.Mutex
	count   int
	result  any
	wireErr *protocol.ErrorObject
	done    chan struct{}
}

func newCapturedReply() *capturedReply {
	return &capturedReply{done: make(chan struct{})}
}

func (c *capturedReply) fn(result any, wireErr *protocol.ErrorObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	c.result = result
	c.wireErr = wireErr
	if c.count == 1 {
		close(c.done)
	}
}

func (c *capturedReply) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("no reply produced")
	}
}

func (c *capturedReply) snapshot() (int, any, *protocol.ErrorObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, c.result, c.wireErr
}

func requestEnvelope(t *testing.T, id, method, params string) *protocol.Envelope {
	t.Helper()
	env, err := protocol.Decode([]byte(fmt.Sprintf(
		`{"jsonrpc":"2.0","id":%s,"method":"%s","params":%s}`, id, method, params)))
	require.NoError(t, err)
	return env
}

func newTestRouter(handlerTimeout time.Duration) *Router {
	return NewRouter(logging.Nop(), metric.New(), handlerTimeout)
}

func TestRequestProducesExactlyOneReply(t *testing.T) {
	r := newTestRouter(0)
	r.RegisterMethod("get_owned_games", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]any{"owned_games": []string{"witcher", "cyberpunk"}}, nil
	}, false, protocol.Sensitive{})
	r.Freeze()

	reply := newCapturedReply()
	r.HandleRequest(context.Background(), requestEnvelope(t, "1", "get_owned_games", "{}"), reply.fn)
	reply.wait(t)
	require.True(t, r.Drain(time.Second))

	count, result, wireErr := reply.snapshot()
	assert.Equal(t, 1, count)
	assert.Nil(t, wireErr)
	assert.NotNil(t, result)
}

func TestUnknownMethodRepliesMethodNotFound(t *testing.T) {
	r := newTestRouter(0)
	r.Freeze()

	reply := newCapturedReply()
	r.HandleRequest(context.Background(), requestEnvelope(t, "2", "unknown_method", "{}"), reply.fn)
	reply.wait(t)

	count, _, wireErr := reply.snapshot()
	assert.Equal(t, 1, count)
	require.NotNil(t, wireErr)
	assert.Equal(t, protocol.ErrMethodNotFound, wireErr.Code)
}

func TestApplicationErrorMapsToItsWireCode(t *testing.T) {
	r := newTestRouter(0)
	r.RegisterMethod("init_authentication", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, fmt.Errorf("password check: %w", apperrors.InvalidCredentials())
	}, false, protocol.SensitiveKeys("stored_credentials"))
	r.Freeze()

	reply := newCapturedReply()
	r.HandleRequest(context.Background(), requestEnvelope(t, "3", "init_authentication", "{}"), reply.fn)
	reply.wait(t)

	_, _, wireErr := reply.snapshot()
	require.NotNil(t, wireErr)
	assert.Equal(t, 100, wireErr.Code)
	assert.Equal(t, "Invalid credentials", wireErr.Message)
	assert.NotContains(t, wireErr.Message, "password check")
}

func TestUnclassifiedErrorNeverLeaksDetail(t *testing.T) {
	r := newTestRouter(0)
	r.RegisterMethod("import_local_games", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, errors.New("scanning C:\\Users\\secret\\AppData failed")
	}, false, protocol.Sensitive{})
	r.Freeze()

	reply := newCapturedReply()
	r.HandleRequest(context.Background(), requestEnvelope(t, "4", "import_local_games", "{}"), reply.fn)
	reply.wait(t)

	_, _, wireErr := reply.snapshot()
	require.NotNil(t, wireErr)
	assert.Equal(t, 0, wireErr.Code)
	assert.Equal(t, "Unknown error", wireErr.Message)
	assert.False(t, strings.Contains(wireErr.Message, "secret"))
}

func TestPanickingHandlerStillReplies(t *testing.T) {
	r := newTestRouter(0)
	r.RegisterMethod("import_friends", func(ctx context.Context, params json.RawMessage) (any, error) {
		panic("boom")
	}, false, protocol.Sensitive{})
	r.Freeze()

	reply := newCapturedReply()
	r.HandleRequest(context.Background(), requestEnvelope(t, "5", "import_friends", "{}"), reply.fn)
	reply.wait(t)
	require.True(t, r.Drain(time.Second))

	count, _, wireErr := reply.snapshot()
	assert.Equal(t, 1, count)
	require.NotNil(t, wireErr)
	assert.Equal(t, 0, wireErr.Code)
}

func TestHandlerTimeoutShortCircuitsToErrorReply(t *testing.T) {
	r := newTestRouter(20 * time.Millisecond)
	r.RegisterMethod("slow", func(ctx context.Context, params json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, false, protocol.Sensitive{})
	r.Freeze()

	reply := newCapturedReply()
	r.HandleRequest(context.Background(), requestEnvelope(t, "6", "slow", "{}"), reply.fn)
	reply.wait(t)

	_, _, wireErr := reply.snapshot()
	require.NotNil(t, wireErr)
	assert.Equal(t, protocol.ErrTimeout, wireErr.Code)
}

func TestDuplicatePendingIDIsRejectedWithoutDisturbingOriginal(t *testing.T) {
	r := newTestRouter(0)
	release := make(chan struct{})
	r.RegisterMethod("slow", func(ctx context.Context, params json.RawMessage) (any, error) {
		<-release
		return "done", nil
	}, false, protocol.Sensitive{})
	r.Freeze()

	first := newCapturedReply()
	r.HandleRequest(context.Background(), requestEnvelope(t, "7", "slow", "{}"), first.fn)

	dup := newCapturedReply()
	r.HandleRequest(context.Background(), requestEnvelope(t, "7", "slow", "{}"), dup.fn)
	dup.wait(t)

	_, _, dupErr := dup.snapshot()
	require.NotNil(t, dupErr)
	assert.Equal(t, protocol.ErrInvalidRequest, dupErr.Code)

	close(release)
	first.wait(t)
	require.True(t, r.Drain(time.Second))

	count, result, wireErr := first.snapshot()
	assert.Equal(t, 1, count)
	assert.Nil(t, wireErr)
	assert.Equal(t, "done", result)
}

func TestSlowHandlerDoesNotBlockOthers(t *testing.T) {
	r := newTestRouter(0)
	release := make(chan struct{})
	r.RegisterMethod("slow", func(ctx context.Context, params json.RawMessage) (any, error) {
		<-release
		return nil, nil
	}, false, protocol.Sensitive{})
	r.RegisterMethod("fast", func(ctx context.Context, params json.RawMessage) (any, error) {
		return "ok", nil
	}, false, protocol.Sensitive{})
	r.Freeze()

	slow := newCapturedReply()
	r.HandleRequest(context.Background(), requestEnvelope(t, "8", "slow", "{}"), slow.fn)

	fast := newCapturedReply()
	r.HandleRequest(context.Background(), requestEnvelope(t, "9", "fast", "{}"), fast.fn)
	fast.wait(t)

	_, result, _ := fast.snapshot()
	assert.Equal(t, "ok", result)

	close(release)
	slow.wait(t)
	require.True(t, r.Drain(time.Second))
}

func TestUnknownNotificationIsSilentlyIgnored(t *testing.T) {
	r := newTestRouter(0)
	r.Freeze()

	env, err := protocol.Decode([]byte(`{"jsonrpc":"2.0","method":"no_such_thing","params":{}}`))
	require.NoError(t, err)
	r.HandleNotification(context.Background(), env)
	assert.True(t, r.Drain(time.Second))
}

func TestNotificationHandlerErrorStaysLocal(t *testing.T) {
	r := newTestRouter(0)
	invoked := make(chan struct{})
	r.RegisterNotification("launch_game", func(ctx context.Context, params json.RawMessage) error {
		close(invoked)
		return errors.New("no such game")
	}, false, protocol.Sensitive{})
	r.Freeze()

	env, err := protocol.Decode([]byte(`{"jsonrpc":"2.0","method":"launch_game","params":{"game_id":"3"}}`))
	require.NoError(t, err)
	r.HandleNotification(context.Background(), env)

	select {
	case <-invoked:
	case <-time.After(time.Second):
		t.Fatal("notification handler not invoked")
	}
	assert.True(t, r.Drain(time.Second))
}

func TestRegistrationAfterFreezePanics(t *testing.T) {
	r := newTestRouter(0)
	r.Freeze()

	assert.Panics(t, func() {
		r.RegisterMethod("late", func(ctx context.Context, params json.RawMessage) (any, error) {
			return nil, nil
		}, false, protocol.Sensitive{})
	})
	assert.Panics(t, func() {
		r.RegisterNotification("late", func(ctx context.Context, params json.RawMessage) error {
			return nil
		}, false, protocol.Sensitive{})
	})
}

func TestProvidesConsultsTheTable(t *testing.T) {
	r := newTestRouter(0)
	r.RegisterMethod("import_owned_games", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, nil
	}, false, protocol.Sensitive{})
	r.RegisterNotification("launch_game", func(ctx context.Context, params json.RawMessage) error {
		return nil
	}, false, protocol.Sensitive{})
	r.Freeze()

	assert.True(t, r.Provides("import_owned_games"))
	assert.False(t, r.Provides("start_achievements_import"))
	assert.True(t, r.ProvidesNotification("launch_game"))
	assert.False(t, r.ProvidesNotification("install_game"))
}
