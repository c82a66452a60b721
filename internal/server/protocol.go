package server

import (
	"bufio"
	"bytes"
	"context"
	"net"

	"github.com/omochice/turn-chat/internal/transport"
)

type protocolType int

const (
	protocolTCP protocolType = iota
	protocolHTTP
)

var httpUpgradePrefix = []byte("GET ")

// detectProtocol waits for the first bytes from the peer and inspects what
// arrived to tell a WebSocket upgrade request from a raw chat line.
// It only waits for more bytes while what arrived so far is a prefix of
// the HTTP method, because a raw chat line may be shorter than one.
func detectProtocol(ctx context.Context, conn net.Conn) (protocolType, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)

	stop := transport.Interruptible(ctx, conn)
	defer stop()

	if _, err := reader.Peek(1); err != nil {
		if ctx.Err() != nil {
			return protocolTCP, reader, ctx.Err()
		}
		return protocolTCP, reader, err
	}

	for {
		n := min(reader.Buffered(), len(httpUpgradePrefix))
		peek, _ := reader.Peek(n)
		switch {
		case bytes.Equal(peek, httpUpgradePrefix):
			return protocolHTTP, reader, nil
		case !bytes.HasPrefix(httpUpgradePrefix, peek):
			return protocolTCP, reader, nil
		}
		if _, err := reader.Peek(n + 1); err != nil {
			if ctx.Err() != nil {
				return protocolTCP, reader, ctx.Err()
			}
			// A short line without a newline is still a chat line.
			return protocolTCP, reader, nil
		}
	}
}
