package chat

import (
	"context"
	"errors"

	"github.com/omochice/turn-chat/pkg/protocol"
)

var (
	// ErrPeerDisconnect means the remote side closed the stream mid-session.
	ErrPeerDisconnect = errors.New("peer disconnected")

	// ErrTransmit means a local message could not be sent.
	ErrTransmit = errors.New("failed to transmit message")

	// ErrDecode means a received frame could not be turned into text.
	ErrDecode = protocol.ErrDecode

	// ErrInputClosed means the local input source has no more lines.
	ErrInputClosed = errors.New("local input closed")
)

// EndReason tells why a session reached the closed state.
type EndReason int

const (
	EndQuitReceived EndReason = iota
	EndQuitSent
	EndPeerDisconnect
	EndTransmitError
	EndDecodeError
	EndInputClosed
	EndCancelled
	EndFailed
)

// String returns the string representation of EndReason
func (r EndReason) String() string {
	switch r {
	case EndQuitReceived:
		return "quit received"
	case EndQuitSent:
		return "quit sent"
	case EndPeerDisconnect:
		return "peer disconnected"
	case EndTransmitError:
		return "transmit error"
	case EndDecodeError:
		return "decode error"
	case EndInputClosed:
		return "input closed"
	case EndCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Normal reports whether the session ended through the quit token.
func (r EndReason) Normal() bool {
	return r == EndQuitReceived || r == EndQuitSent
}

// ReasonOf classifies a non-nil error returned by Session.Run.
func ReasonOf(err error) EndReason {
	switch {
	case errors.Is(err, ErrPeerDisconnect):
		return EndPeerDisconnect
	case errors.Is(err, ErrTransmit):
		return EndTransmitError
	case errors.Is(err, ErrDecode):
		return EndDecodeError
	case errors.Is(err, ErrInputClosed):
		return EndInputClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return EndCancelled
	default:
		return EndFailed
	}
}
