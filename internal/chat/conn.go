// Package chat implements the alternating two-party session shared by both
// roles and all transports.
package chat

import "context"

// Conn abstracts a bidirectional connection for both TCP and WebSocket.
// This interface isolates transport details from the session logic.
type Conn interface {
	// Read reads a single message frame (Latin-1 bytes, no delimiter).
	// Returns io.EOF when the peer closed the stream.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single message frame.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
