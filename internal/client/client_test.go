package client_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omochice/turn-chat/internal/chat"
	"github.com/omochice/turn-chat/internal/client"
	"github.com/omochice/turn-chat/internal/console"
	"github.com/omochice/turn-chat/internal/server"
	"github.com/omochice/turn-chat/internal/transport"
)

var quiet = client.WithLogger(zap.NewNop().Sugar())

// startMockServer answers every line with a fixed reply until the client
// leaves, recording what it received.
func startMockServer(t *testing.T, reply string) (string, func() []string) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	var mu sync.Mutex
	var received []string
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			mu.Lock()
			received = append(received, strings.TrimSuffix(line, "\n"))
			mu.Unlock()
			conn.Write([]byte(reply + "\n"))
		}
	}()

	return listener.Addr().String(), func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), received...)
	}
}

func TestClient_Connect(t *testing.T) {
	addr, _ := startMockServer(t, "Server3000>hi")

	c := client.New(addr, "alice", quiet)
	conn, err := c.Connect(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	assert.NotEmpty(t, conn.RemoteAddr())
}

func TestClient_Connect_Refused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	_, err = client.New(addr, "alice", quiet).Connect(context.Background())
	assert.Error(t, err)
}

func TestClient_Run_Refused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	con := console.New(strings.NewReader("Hello\n"), &strings.Builder{})
	res, err := client.New(addr, "alice", quiet).Run(context.Background(), con, con)
	assert.Error(t, err)
	assert.Equal(t, chat.EndFailed, res.Reason)
}

func TestClient_Connect_UnknownTransport(t *testing.T) {
	_, err := client.New("127.0.0.1:1", "alice", quiet, client.WithTransport("udp")).Connect(context.Background())
	assert.ErrorContains(t, err, "unknown transport")
}

func TestClient_Run_ServerQuits(t *testing.T) {
	addr, received := startMockServer(t, `Server3000>\quit`)

	out := &strings.Builder{}
	con := console.New(strings.NewReader("Hello\nnever sent\n"), out)

	res, err := client.New(addr, "alice", quiet).Run(context.Background(), con, con)
	require.NoError(t, err)

	assert.Equal(t, chat.EndQuitReceived, res.Reason)
	assert.Equal(t, []string{"alice>Hello"}, received())
	assert.Contains(t, out.String(), `Server3000>\quit`)
	assert.Contains(t, out.String(), "Server has closed the connection")
}

func TestClient_Run_WebSocket(t *testing.T) {
	srv := server.New("127.0.0.1:0", func(ctx context.Context, conn chat.Conn) error {
		s := chat.NewSession(conn, "Server3000", chat.RoleAcceptor,
			console.New(strings.NewReader(`\quit`+"\n"), &strings.Builder{}),
			console.New(strings.NewReader(""), &strings.Builder{}),
			chat.WithLogger(zap.NewNop().Sugar()))
		_, err := s.Run(ctx)
		return err
	}, server.WithLogger(zap.NewNop().Sugar()))
	require.NoError(t, srv.Listen())
	go srv.Serve(context.Background())
	defer srv.Stop()

	out := &strings.Builder{}
	con := console.New(strings.NewReader("Hello\n"), out)

	res, err := client.New(srv.Addr(), "alice", quiet, client.WithTransport(transport.WebSocket)).
		Run(context.Background(), con, con)
	require.NoError(t, err)

	assert.Equal(t, chat.EndQuitReceived, res.Reason)
	assert.Equal(t, 1, res.Sent)
	assert.Contains(t, out.String(), `Server3000>\quit`)
}
