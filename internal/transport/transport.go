// Package transport holds helpers shared by the TCP and WebSocket conns.
package transport

import (
	"bufio"
	"context"
	"net"
	"time"
)

// Transport names used in configuration and logs.
const (
	TCP       = "tcp"
	WebSocket = "ws"
)

// DefaultMaxMessageSize bounds one received message when no option
// overrides it.
const DefaultMaxMessageSize = 64 * 1024

// Interruptible makes blocking I/O on c return once ctx is done by moving
// the connection deadline into the past. Call stop when the I/O finishes.
func Interruptible(ctx context.Context, c net.Conn) (stop func() bool) {
	if ctx == nil || ctx.Done() == nil {
		return func() bool { return true }
	}
	return context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(time.Now())
	})
}

// BufferedConn wraps a net.Conn with a bufio.Reader to preserve peeked data.
type BufferedConn struct {
	net.Conn
	Reader *bufio.Reader
}

// NewBufferedConn returns conn reading through r.
func NewBufferedConn(conn net.Conn, r *bufio.Reader) *BufferedConn {
	return &BufferedConn{Conn: conn, Reader: r}
}

func (bc *BufferedConn) Read(p []byte) (int, error) {
	return bc.Reader.Read(p)
}
