// Package tcp provides the newline-framed TCP transport for chat sessions.
package tcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/omochice/turn-chat/internal/transport"
	"github.com/omochice/turn-chat/pkg/protocol"
)

// ErrMessageTooLong is returned when a line exceeds the configured limit.
var ErrMessageTooLong = fmt.Errorf("%w: message too long", protocol.ErrDecode)

// Conn adapts net.Conn to chat.Conn interface.
// Every message is one line terminated by '\n'.
type Conn struct {
	conn    net.Conn
	reader  *bufio.Reader
	maxSize int
}

// Option configures a Conn.
type Option func(*Conn)

// WithMaxMessageSize limits the length of a received line.
func WithMaxMessageSize(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn, opts ...Option) *Conn {
	return NewConnWithReader(conn, bufio.NewReader(conn), opts...)
}

// NewConnWithReader wraps a net.Conn whose first bytes were already
// peeked through reader.
func NewConnWithReader(conn net.Conn, reader *bufio.Reader, opts ...Option) *Conn {
	c := &Conn{
		conn:    conn,
		reader:  reader,
		maxSize: transport.DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read implements chat.Conn.
// Reads one line and strips the line terminator and any NUL padding.
// An unterminated final line is returned before io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop := transport.Interruptible(ctx, c.conn)
	defer stop()

	line, err := c.readLine()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			if line = trim(line); len(line) > 0 {
				return line, nil
			}
		}
		return nil, err
	}
	return trim(line), nil
}

func (c *Conn) readLine() ([]byte, error) {
	var line []byte
	for {
		frag, err := c.reader.ReadSlice('\n')
		line = append(line, frag...)
		if len(line) > c.maxSize+len("\r\n") {
			return nil, ErrMessageTooLong
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err == nil && len(bytes.TrimRight(line, "\r\n")) > c.maxSize {
			return nil, ErrMessageTooLong
		}
		return line, err
	}
}

// trim removes the line terminator and the NUL padding some clients send
// with fixed-size buffers.
func trim(line []byte) []byte {
	return bytes.Trim(bytes.TrimRight(line, "\r\n"), "\x00")
}

// Write implements chat.Conn.
// Writes data followed by a newline.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	stop := transport.Interruptible(ctx, c.conn)
	defer stop()

	frame := make([]byte, 0, len(data)+1)
	frame = append(frame, data...)
	frame = append(frame, '\n')
	if _, err := c.conn.Write(frame); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Dial connects to a listening peer.
func Dial(ctx context.Context, address string, opts ...Option) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewConn(conn, opts...), nil
}
