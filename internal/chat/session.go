package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/omochice/turn-chat/internal/logger"
	"github.com/omochice/turn-chat/pkg/protocol"
)

// Role fixes which side speaks first.
type Role int

const (
	// RoleAcceptor is the listening side. It always receives first.
	RoleAcceptor Role = iota
	// RoleConnector is the dialing side. It always sends first.
	RoleConnector
)

func (r Role) String() string {
	if r == RoleConnector {
		return "connector"
	}
	return "acceptor"
}

func (r Role) initialState() State {
	if r == RoleConnector {
		return StateAwaitLocal
	}
	return StateAwaitRemote
}

// peerName is how the other side is called in end-of-session notices.
func (r Role) peerName() string {
	if r == RoleConnector {
		return "Server"
	}
	return "Client"
}

// State is the position of a session in the turn-taking protocol.
type State int32

const (
	StateAwaitRemote State = iota
	StateAwaitLocal
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitRemote:
		return "AWAIT_REMOTE"
	case StateAwaitLocal:
		return "AWAIT_LOCAL"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Prompter solicits one line of text from the local user.
type Prompter interface {
	Prompt(ctx context.Context, prompt string) (string, error)
}

// Display receives every incoming message and session notice.
type Display interface {
	Show(text string)
}

// Result summarizes a finished session.
type Result struct {
	Reason   EndReason
	Sent     int
	Received int
}

// Session owns one established connection and runs the alternating
// exchange on it until either side quits or the connection fails.
type Session struct {
	conn   Conn
	handle string
	role   Role
	input  Prompter
	output Display
	logger *zap.SugaredLogger

	state     atomic.Int32
	result    Result
	closeOnce sync.Once
	onChange  func(from, to State)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.SugaredLogger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithStateHook registers fn to be called on every state change.
func WithStateHook(fn func(from, to State)) SessionOption {
	return func(s *Session) {
		s.onChange = fn
	}
}

// NewSession creates a session for conn. Outgoing messages are prefixed
// with handle.
func NewSession(conn Conn, handle string, role Role, input Prompter, output Display, opts ...SessionOption) *Session {
	s := &Session{
		conn:   conn,
		handle: handle,
		role:   role,
		input:  input,
		output: output,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.L()
	}
	s.logger = s.logger.With("remote", conn.RemoteAddr(), "role", role.String())
	s.state.Store(int32(role.initialState()))
	return s
}

// State returns the current protocol state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run exchanges messages until the session closes. The connection is
// always closed on return. A nil error means a side sent the quit token.
func (s *Session) Run(ctx context.Context) (Result, error) {
	var err error
	state := s.State()
	for state != StateClosed {
		var next State
		switch state {
		case StateAwaitRemote:
			next, err = s.receive(ctx)
		case StateAwaitLocal:
			next, err = s.send(ctx)
		default:
			next, err = StateClosed, fmt.Errorf("invalid session state %d", state)
		}
		s.transition(state, next)
		state = next
	}

	if err != nil {
		s.result.Reason = ReasonOf(err)
	}
	s.close()
	s.output.Show(s.notice())
	s.logger.Infow("session closed",
		"reason", s.result.Reason.String(),
		"sent", s.result.Sent,
		"received", s.result.Received)
	return s.result, err
}

// receive handles AWAIT_REMOTE.
func (s *Session) receive(ctx context.Context) (State, error) {
	data, err := s.conn.Read(ctx)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return StateClosed, ctx.Err()
		case errors.Is(err, ErrDecode):
			return StateClosed, err
		case errors.Is(err, io.EOF):
			return StateClosed, ErrPeerDisconnect
		default:
			return StateClosed, fmt.Errorf("%w: %v", ErrPeerDisconnect, err)
		}
	}

	var msg protocol.Message
	if err := msg.Decode(data); err != nil {
		return StateClosed, err
	}
	s.result.Received++
	s.output.Show(msg.Text())

	if msg.IsQuit() {
		s.result.Reason = EndQuitReceived
		return StateClosed, nil
	}
	return StateAwaitLocal, nil
}

// send handles AWAIT_LOCAL.
func (s *Session) send(ctx context.Context) (State, error) {
	line, err := s.input.Prompt(ctx, s.handle+protocol.Separator)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return StateClosed, ctx.Err()
		case errors.Is(err, io.EOF):
			return StateClosed, ErrInputClosed
		default:
			return StateClosed, fmt.Errorf("%w: %v", ErrInputClosed, err)
		}
	}

	msg := protocol.Compose(s.handle, line)
	data, err := msg.Encode()
	if err != nil {
		return StateClosed, fmt.Errorf("%w: %v", ErrTransmit, err)
	}
	if err := s.conn.Write(ctx, data); err != nil {
		if ctx.Err() != nil {
			return StateClosed, ctx.Err()
		}
		return StateClosed, fmt.Errorf("%w: %v", ErrTransmit, err)
	}
	s.result.Sent++

	if msg.IsQuit() {
		s.result.Reason = EndQuitSent
		return StateClosed, nil
	}
	return StateAwaitRemote, nil
}

func (s *Session) transition(from, to State) {
	s.state.Store(int32(to))
	s.logger.Debugw("session state changed", "from", from.String(), "to", to.String())
	if s.onChange != nil {
		s.onChange(from, to)
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		if err := s.conn.Close(); err != nil {
			s.logger.Debugw("close connection", "error", err)
		}
	})
}

func (s *Session) notice() string {
	peer := s.role.peerName()
	switch s.result.Reason {
	case EndQuitReceived:
		return peer + " has closed the connection"
	case EndQuitSent:
		return "Connection closed"
	case EndPeerDisconnect:
		return peer + " has disconnected"
	default:
		return "Connection closed: " + s.result.Reason.String()
	}
}
