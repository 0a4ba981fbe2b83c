// Package transport moves newline-framed byte frames over an established
// point-to-point stream.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
)

// Transport is a bidirectional channel for protocol frames. Send is safe for
// concurrent use and never interleaves two frames; Receive must be driven by
// a single reader.
type Transport interface {
	// Send writes one frame atomically.
	Send(ctx context.Context, frame []byte) error

	// Receive returns the next frame in arrival order.
	Receive(ctx context.Context) ([]byte, error)

	// Close closes the underlying stream. Blocked reads fail after Close.
	Close() error
}

// StreamTransport frames messages with a trailing newline over any ordered
// byte stream: a TCP connection to the host, or stdio.
type StreamTransport struct {
	reader *bufio.Reader
	writer *bufio.Writer
	closer io.Closer

	writeMu sync.Mutex

	readOnce sync.Once
	frames   chan readResult

	closeOnce sync.Once
	closeErr  error
}

type readResult struct {
	frame []byte
	err   error
}

// New creates a transport over an open read/write stream.
func New(rw io.ReadWriteCloser) *StreamTransport {
	return &StreamTransport{
		reader: bufio.NewReader(rw),
		writer: bufio.NewWriter(rw),
		closer: rw,
	}
}

// NewPipe creates a transport over separate reader and writer, as used with
// stdio. Closing it is a no-op.
func NewPipe(r io.Reader, w io.Writer) *StreamTransport {
	return &StreamTransport{
		reader: bufio.NewReader(r),
		writer: bufio.NewWriter(w),
	}
}

// Dial connects to the host's listener on a local port and returns a
// transport over the connection.
func Dial(ctx context.Context, addr string) (*StreamTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial host at %s: %w", addr, err)
	}
	return New(conn), nil
}

// Send implements Transport. The frame is written and flushed under a single
// lock so concurrently completing handlers never interleave partial frames.
func (t *StreamTransport) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.writer.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write frame delimiter: %w", err)
	}
	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("flush frame: %w", err)
	}
	return nil
}

// Receive implements Transport. It returns io.EOF once the peer closes the
// stream; blank lines are skipped. A single goroutine owns the underlying
// reader, so a cancelled Receive never leaves a second reader behind.
func (t *StreamTransport) Receive(ctx context.Context) ([]byte, error) {
	t.readOnce.Do(func() {
		t.frames = make(chan readResult)
		go t.readLoop()
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res, ok := <-t.frames:
		if !ok {
			return nil, io.EOF
		}
		return res.frame, res.err
	}
}

func (t *StreamTransport) readLoop() {
	defer close(t.frames)
	for {
		line, err := t.reader.ReadBytes('\n')
		if err != nil {
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				// Final unterminated frame before EOF.
				t.frames <- readResult{frame: trimmed}
			}
			t.frames <- readResult{err: err}
			return
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		t.frames <- readResult{frame: line}
	}
}

// Close implements Transport.
func (t *StreamTransport) Close() error {
	t.closeOnce.Do(func() {
		if t.closer != nil {
			t.closeErr = t.closer.Close()
		}
	})
	return t.closeErr
}
