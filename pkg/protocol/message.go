// Package protocol defines the chat message format exchanged between peers.
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	// QuitToken ends the session when it appears anywhere in a message.
	QuitToken = `\quit`

	// Separator sits between the sender handle and the message text.
	Separator = ">"

	// MaxHandleLength is the longest handle a peer may choose.
	MaxHandleLength = 10
)

var (
	// ErrEmbeddedNewline is returned when message text spans more than one line.
	ErrEmbeddedNewline = errors.New("message contains a newline")

	// ErrDecode is returned when received bytes cannot be turned into text.
	ErrDecode = errors.New("failed to decode message")
)

// Message represents one line of chat text tagged with its sender handle.
type Message struct {
	Handle  string
	Content string
}

// Compose builds an outgoing message from a line typed by the local user.
func Compose(handle, text string) Message {
	return Message{
		Handle:  handle,
		Content: strings.TrimRight(text, "\r\n"),
	}
}

// ParseLine splits a received line into handle and content.
// The handle is only recognized when the text before the first separator
// looks like one; otherwise the whole line is kept as content so that
// Text reproduces the received line exactly.
func ParseLine(line string) Message {
	handle, content, ok := strings.Cut(line, Separator)
	if !ok || !validHandle(handle) {
		return Message{Content: line}
	}
	return Message{Handle: handle, Content: content}
}

// Text returns the message as it travels on the wire, "<handle>><text>".
func (m Message) Text() string {
	if m.Handle == "" {
		return m.Content
	}
	return m.Handle + Separator + m.Content
}

// String implements fmt.Stringer.
func (m Message) String() string {
	return m.Text()
}

// IsQuit reports whether the message carries the quit token.
func (m Message) IsQuit() bool {
	return ContainsQuit(m.Text())
}

// ContainsQuit reports whether text contains the quit token anywhere.
func ContainsQuit(text string) bool {
	return strings.Contains(text, QuitToken)
}

// Encode encodes the message text as ISO-8859-1.
// Runes that Latin-1 cannot represent are replaced by the substitution byte.
func (m *Message) Encode() ([]byte, error) {
	text := m.Text()
	if strings.ContainsAny(text, "\r\n") {
		return nil, ErrEmbeddedNewline
	}
	data, err := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Decode decodes ISO-8859-1 bytes into the message.
// Every byte value maps to a character, so this only fails if the
// underlying decoder does.
func (m *Message) Decode(data []byte) error {
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	*m = ParseLine(string(text))
	return nil
}

// ValidateHandle checks that handle can label outgoing messages.
func ValidateHandle(handle string) error {
	switch {
	case handle == "":
		return errors.New("handle is empty")
	case len(handle) > MaxHandleLength:
		return fmt.Errorf("handle %q is longer than %d characters", handle, MaxHandleLength)
	case !validHandle(handle):
		return fmt.Errorf("handle %q must not contain spaces or %q", handle, Separator)
	}
	return nil
}

func validHandle(handle string) bool {
	if handle == "" || len(handle) > MaxHandleLength {
		return false
	}
	return !strings.ContainsAny(handle, " \t\r\n"+Separator)
}
