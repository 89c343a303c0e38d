package channel

import (
	"net"
	"testing"
)

func TestGroupAddRemoveSnapshot(t *testing.T) {
	g := NewGroup()
	if g.Len() != 0 {
		t.Fatalf("new group should be empty")
	}

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	defer Detach(client)
	h := Attach(client)

	g.Add(h)
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after Add", g.Len())
	}
	g.Add(h) // idempotent
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after duplicate Add", g.Len())
	}

	snap := g.Snapshot()
	if len(snap) != 1 || snap[0] != h {
		t.Errorf("Snapshot() = %v, want [%v]", snap, h)
	}

	g.Remove(h)
	if g.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after Remove", g.Len())
	}
	g.Remove(h) // idempotent, no panic
}
