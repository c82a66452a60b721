// Package ws provides the WebSocket transport for chat sessions.
package ws

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/turn-chat/internal/transport"
	"github.com/omochice/turn-chat/pkg/protocol"
)

// ErrMessageTooLong is returned when a frame exceeds the configured limit.
var ErrMessageTooLong = fmt.Errorf("%w: message too long", protocol.ErrDecode)

// Conn adapts a WebSocket connection (gobwas/ws) to chat.Conn interface.
// Every message is one data frame. Frames are sent as binary because
// Latin-1 text is not valid UTF-8.
type Conn struct {
	conn    net.Conn
	rw      io.ReadWriter
	side    ws.State
	maxSize int
}

// Option configures a Conn.
type Option func(*Conn)

// WithMaxMessageSize limits the length of a received frame.
func WithMaxMessageSize(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

func newConn(conn net.Conn, rw io.ReadWriter, side ws.State, opts []Option) *Conn {
	c := &Conn{
		conn:    conn,
		rw:      rw,
		side:    side,
		maxSize: transport.DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewServerConn wraps an already upgraded connection on the accepting side.
func NewServerConn(conn net.Conn, rw io.ReadWriter, opts ...Option) *Conn {
	return newConn(conn, rw, ws.StateServerSide, opts)
}

// NewClientConn wraps an already upgraded connection on the dialing side.
func NewClientConn(conn net.Conn, rw io.ReadWriter, opts ...Option) *Conn {
	return newConn(conn, rw, ws.StateClientSide, opts)
}

// Upgrade performs the server handshake on conn. Reads go through reader,
// which may hold bytes peeked during protocol detection.
func Upgrade(conn net.Conn, reader *bufio.Reader, opts ...Option) (*Conn, error) {
	rw := transport.NewBufferedConn(conn, reader)
	if _, err := ws.Upgrade(rw); err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}
	return NewServerConn(conn, rw, opts...), nil
}

// Dial connects to a listening peer at a ws:// URL.
func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	var rw io.ReadWriter = conn
	if br != nil {
		rw = transport.NewBufferedConn(conn, br)
	}
	return NewClientConn(conn, rw, opts...), nil
}

// Read implements chat.Conn.
// Reads the next data message; a close frame is reported as io.EOF.
// Frames whose header announces more than the size limit are rejected
// before their payload is read.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop := transport.Interruptible(ctx, c.conn)
	defer stop()

	control := wsutil.ControlFrameHandler(c.rw, c.side)
	rd := wsutil.Reader{
		Source:         c.rw,
		State:          c.side,
		MaxFrameSize:   int64(c.maxSize),
		OnIntermediate: control,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, c.readError(ctx, err)
		}
		if hdr.OpCode.IsControl() {
			if err := control(hdr, &rd); err != nil {
				return nil, c.readError(ctx, err)
			}
			continue
		}

		// Continuation frames are each within the limit, so the whole
		// message is bounded here.
		data, err := io.ReadAll(io.LimitReader(&rd, int64(c.maxSize)+1))
		if err != nil {
			return nil, c.readError(ctx, err)
		}
		if len(data) > c.maxSize {
			return nil, ErrMessageTooLong
		}
		return bytes.TrimRight(data, "\r\n"), nil
	}
}

func (c *Conn) readError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var closed wsutil.ClosedError
	switch {
	case errors.As(err, &closed):
		return io.EOF
	case errors.Is(err, wsutil.ErrFrameTooLarge):
		return ErrMessageTooLong
	}
	return err
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	stop := transport.Interruptible(ctx, c.conn)
	defer stop()

	if err := wsutil.WriteMessage(c.conn, c.side, ws.OpBinary, data); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Close implements chat.Conn.
// Sends a normal closure frame before closing the socket.
func (c *Conn) Close() error {
	_ = wsutil.WriteMessage(c.conn, c.side, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
