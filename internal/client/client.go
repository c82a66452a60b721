// Package client implements the connecting side of a chat.
package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/omochice/turn-chat/internal/chat"
	"github.com/omochice/turn-chat/internal/logger"
	"github.com/omochice/turn-chat/internal/transport"
	"github.com/omochice/turn-chat/internal/transport/tcp"
	"github.com/omochice/turn-chat/internal/transport/ws"
)

// Client dials a listening peer and runs the connecting side of a session.
type Client struct {
	address        string
	handle         string
	transport      string
	dialTimeout    time.Duration
	maxMessageSize int
	logger         *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport selects transport.TCP (default) or transport.WebSocket.
func WithTransport(name string) Option {
	return func(c *Client) {
		c.transport = name
	}
}

// WithDialTimeout bounds how long Connect waits for the peer.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// WithMaxMessageSize limits the size of one received message.
func WithMaxMessageSize(n int) Option {
	return func(c *Client) {
		c.maxMessageSize = n
	}
}

// WithLogger sets the client logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a new Client instance
func New(address, handle string, opts ...Option) *Client {
	c := &Client{
		address:        address,
		handle:         handle,
		transport:      transport.TCP,
		maxMessageSize: transport.DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.L()
	}
	return c
}

// Connect establishes a connection to the server
func (c *Client) Connect(ctx context.Context) (chat.Conn, error) {
	if c.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.dialTimeout)
		defer cancel()
	}

	switch c.transport {
	case transport.TCP:
		conn, err := tcp.Dial(ctx, c.address, tcp.WithMaxMessageSize(c.maxMessageSize))
		if err != nil {
			return nil, err
		}
		c.logger.Infow("connected", "address", conn.RemoteAddr(), "transport", c.transport)
		return conn, nil
	case transport.WebSocket:
		conn, err := ws.Dial(ctx, "ws://"+c.address+"/", ws.WithMaxMessageSize(c.maxMessageSize))
		if err != nil {
			return nil, err
		}
		c.logger.Infow("connected", "address", conn.RemoteAddr(), "transport", c.transport)
		return conn, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", c.transport)
	}
}

// Run connects and exchanges messages until the session closes. The
// connecting side always speaks first. A failed dial is reported with
// chat.EndFailed.
func (c *Client) Run(ctx context.Context, in chat.Prompter, out chat.Display) (chat.Result, error) {
	conn, err := c.Connect(ctx)
	if err != nil {
		return chat.Result{Reason: chat.EndFailed}, err
	}
	s := chat.NewSession(conn, c.handle, chat.RoleConnector, in, out, chat.WithLogger(c.logger))
	return s.Run(ctx)
}
