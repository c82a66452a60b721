// Package server implements the listening side: it binds an endpoint and
// hands every accepted connection to a session handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/turn-chat/internal/chat"
	"github.com/omochice/turn-chat/internal/logger"
	"github.com/omochice/turn-chat/internal/transport"
	"github.com/omochice/turn-chat/internal/transport/tcp"
	"github.com/omochice/turn-chat/internal/transport/ws"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Handler runs one session on an accepted connection. The server closes
// conn after the handler returns.
type Handler func(ctx context.Context, conn chat.Conn) error

// BindError is returned when the listening endpoint cannot be established.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Server accepts peers and runs their sessions. By default only one
// session runs at a time and the next connection is not accepted until
// the current session has closed.
type Server struct {
	address        string
	listener       net.Listener
	handler        Handler
	registry       *chat.Registry
	logger         *zap.SugaredLogger
	websocket      bool
	concurrent     int
	maxMessageSize int

	mu       sync.Mutex
	cancel   context.CancelFunc
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithWebSocket toggles detection of WebSocket upgrade requests on the
// listening port. Enabled by default.
func WithWebSocket(enabled bool) Option {
	return func(s *Server) {
		s.websocket = enabled
	}
}

// WithConcurrentSessions lets up to n sessions run at once, each in its
// own goroutine. n <= 0 keeps the one-at-a-time behaviour.
func WithConcurrentSessions(n int) Option {
	return func(s *Server) {
		s.concurrent = n
	}
}

// WithMaxMessageSize limits the size of one received message.
func WithMaxMessageSize(n int) Option {
	return func(s *Server) {
		s.maxMessageSize = n
	}
}

// WithRegistry shares a session registry with the caller.
func WithRegistry(r *chat.Registry) Option {
	return func(s *Server) {
		s.registry = r
	}
}

// New creates a new Server instance
func New(address string, handler Handler, opts ...Option) *Server {
	s := &Server{
		address:        address,
		handler:        handler,
		websocket:      true,
		maxMessageSize: transport.DefaultMaxMessageSize,
		quit:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = chat.NewRegistry()
	}
	if s.logger == nil {
		s.logger = logger.L()
	}
	return s
}

// Run binds host:port and serves until ctx is done. An empty host binds
// every interface.
func Run(ctx context.Context, host string, port int, handler Handler, opts ...Option) error {
	s := New(net.JoinHostPort(host, strconv.Itoa(port)), handler, opts...)
	return s.Start(ctx)
}

// Start binds the listening socket and serves until ctx is done or Stop
// is called.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	defer s.Stop()
	return s.Serve(ctx)
}

// Listen binds the listening socket. Failure is reported as *BindError.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return &BindError{Addr: s.address, Err: err}
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Infow("server started", "address", listener.Addr().String())
	return nil
}

// Serve accepts connections until ctx is done or Stop is called. It
// returns nil on shutdown; per-connection failures never end the loop.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	if listener == nil {
		s.mu.Unlock()
		return errors.New("server is not listening")
	}
	select {
	case <-s.quit:
		s.mu.Unlock()
		return nil
	default:
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	defer cancel()

	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	var g errgroup.Group
	if s.concurrent > 0 {
		g.SetLimit(s.concurrent)
	}
	defer g.Wait()

	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.stopping(ctx) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			delay = nextDelay(delay)
			s.logger.Warnw("failed to accept connection", "error", err, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0

		if s.concurrent > 0 {
			g.Go(func() error {
				s.handleConnection(ctx, conn)
				return nil
			})
			continue
		}
		s.handleConnection(ctx, conn)
	}
}

// Stop closes the listener, ends running sessions and waits for Serve to
// return.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
		s.registry.CloseAll()
	})
	s.wg.Wait()
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ActiveSessions returns the number of sessions still running.
func (s *Server) ActiveSessions() int {
	return s.registry.ActiveCount()
}

// SessionsServed returns how many sessions have ended.
func (s *Server) SessionsServed() uint64 {
	return s.registry.Served()
}

func (s *Server) stopping(ctx context.Context) bool {
	select {
	case <-s.quit:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// handleConnection runs one session to completion. Nothing that happens
// here is allowed to stop the accept loop.
func (s *Server) handleConnection(ctx context.Context, raw net.Conn) {
	log := s.logger.With("remote", raw.RemoteAddr().String())
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("session panicked", "panic", r, "stack", string(debug.Stack()))
			raw.Close()
		}
	}()

	conn, kind, err := s.establish(ctx, raw)
	if err != nil {
		log.Warnw("failed to establish session", "error", err)
		raw.Close()
		return
	}

	peer := s.registry.Register(conn, kind)
	defer s.registry.Unregister(peer)
	defer conn.Close()

	log.Infow("session started", "transport", kind)
	if err := s.handler(ctx, conn); err != nil {
		log.Infow("session ended", "reason", chat.ReasonOf(err).String(), "error", err)
		return
	}
	log.Infow("session ended", "reason", "quit")
}

// establish wraps raw in the transport the peer speaks.
func (s *Server) establish(ctx context.Context, raw net.Conn) (chat.Conn, string, error) {
	if !s.websocket {
		return tcp.NewConn(raw, tcp.WithMaxMessageSize(s.maxMessageSize)), transport.TCP, nil
	}

	proto, reader, err := detectProtocol(ctx, raw)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", err
		}
		// The peer left before its first message. The session still runs
		// so the disconnect is reported like any other; the reader replays
		// the stored error.
		s.logger.Debugw("protocol detection failed", "remote", raw.RemoteAddr().String(), "error", err)
		return tcp.NewConnWithReader(raw, reader, tcp.WithMaxMessageSize(s.maxMessageSize)), transport.TCP, nil
	}
	if proto == protocolHTTP {
		conn, err := ws.Upgrade(raw, reader, ws.WithMaxMessageSize(s.maxMessageSize))
		if err != nil {
			return nil, "", err
		}
		return conn, transport.WebSocket, nil
	}
	return tcp.NewConnWithReader(raw, reader, tcp.WithMaxMessageSize(s.maxMessageSize)), transport.TCP, nil
}

func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptDelay
	}
	d *= 2
	if d > maxAcceptDelay {
		return maxAcceptDelay
	}
	return d
}
