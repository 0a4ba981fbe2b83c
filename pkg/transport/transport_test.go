package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// safeBuffer serializes access so concurrent Sends can be inspected.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReceiveFramesInArrivalOrder(t *testing.T) {
	input := "{\"a\":1}\n\n  \n{\"b\":2}\n"
	tr := NewPipe(strings.NewReader(input), io.Discard)

	ctx := context.Background()

	frame, err := tr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(frame))

	frame, err = tr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(frame))

	_, err = tr.Receive(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReceiveFinalUnterminatedFrame(t *testing.T) {
	tr := NewPipe(strings.NewReader(`{"a":1}`), io.Discard)

	frame, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(frame))

	_, err = tr.Receive(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestReceiveHonorsContext(t *testing.T) {
	r, _ := io.Pipe() // never produces data
	tr := NewPipe(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentSendsDoNotInterleave(t *testing.T) {
	out := &safeBuffer{}
	tr := NewPipe(strings.NewReader(""), out)

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			frame := []byte(fmt.Sprintf(`{"writer":%d,"pad":"%s"}`, id, strings.Repeat("x", 256)))
			for j := 0; j < perWriter; j++ {
				require.NoError(t, tr.Send(context.Background(), frame))
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, writers*perWriter)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, `{"writer":`), "interleaved frame: %q", line)
		assert.True(t, strings.HasSuffix(line, `"}`), "interleaved frame: %q", line)
	}
}

func TestSendAfterContextCancel(t *testing.T) {
	tr := NewPipe(strings.NewReader(""), io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Send(ctx, []byte(`{}`))
	assert.ErrorIs(t, err, context.Canceled)
}
