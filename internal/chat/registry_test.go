package chat_test

import (
	"testing"

	"github.com/omochice/turn-chat/internal/chat"
)

func TestRegistry_Register(t *testing.T) {
	reg := chat.NewRegistry()
	peer := reg.Register(newMockConn("127.0.0.1:1234"), "tcp")

	if got := reg.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount() = %d, want 1", got)
	}
	if peer.Transport != "tcp" {
		t.Errorf("Transport = %q, want %q", peer.Transport, "tcp")
	}
}

func TestRegistry_ReturnsToEmptyState(t *testing.T) {
	reg := chat.NewRegistry()

	for i := 0; i < 3; i++ {
		peer := reg.Register(newMockConn("127.0.0.1:1234"), "tcp")
		reg.Unregister(peer)
	}

	if got := reg.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount() = %d, want 0", got)
	}
	if got := reg.Served(); got != 3 {
		t.Errorf("Served() = %d, want 3", got)
	}
}

func TestRegistry_UnregisterTwice(t *testing.T) {
	reg := chat.NewRegistry()
	peer := reg.Register(newMockConn("127.0.0.1:1234"), "tcp")

	reg.Unregister(peer)
	reg.Unregister(peer)

	if got := reg.Served(); got != 1 {
		t.Errorf("Served() = %d, want 1", got)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := chat.NewRegistry()
	conns := []*mockConn{newMockConn("a"), newMockConn("b")}
	for _, c := range conns {
		reg.Register(c, "tcp")
	}

	reg.CloseAll()

	for _, c := range conns {
		if !c.IsClosed() {
			t.Errorf("conn %s not closed", c.RemoteAddr())
		}
	}
}
