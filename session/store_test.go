package session

import (
	"net"
	"testing"
)

func fakeConn() net.Conn {
	client, server := net.Pipe()
	client.Close()
	return server
}

func TestStoreAddGetRemove(t *testing.T) {
	st := NewStore()
	s := New(NextID(), fakeConn())
	st.Add(s)

	if got, ok := st.Get(s.ID); !ok || got != s {
		t.Fatalf("expected to find session by id")
	}

	st.Remove(s.ID)
	if _, ok := st.Get(s.ID); ok {
		t.Fatalf("expected session removed from id index")
	}
}

func TestStoreClientIDIndex(t *testing.T) {
	st := NewStore()
	s := New(NextID(), fakeConn())
	st.Add(s)

	id := st.AssignClientID(s)
	if id == 0 {
		t.Fatalf("expected a non-zero client id")
	}

	got, ok := st.GetByClientID(id)
	if !ok || got != s {
		t.Fatalf("expected to find session by client id")
	}

	st.Remove(s.ID)
	if _, ok := st.GetByClientID(id); ok {
		t.Fatalf("expected client id index cleared on remove")
	}
}

func TestStoreAssignsDistinctClientIDs(t *testing.T) {
	st := NewStore()
	a := New(NextID(), fakeConn())
	b := New(NextID(), fakeConn())
	st.Add(a)
	st.Add(b)

	idA := st.AssignClientID(a)
	idB := st.AssignClientID(b)

	if idA == idB {
		t.Fatalf("expected distinct client ids, got %d and %d", idA, idB)
	}
}

func TestSessionLogoutResetPreservesClientSqn(t *testing.T) {
	s := New(NextID(), fakeConn())
	s.Authenticated = true
	s.ClientSqn = 5
	s.ServerSqn = 9
	s.QueueSend([]byte{1, 2, 3})

	s.LogoutReset()

	if s.Authenticated {
		t.Fatalf("expected authenticated=false after logout reset")
	}
	if s.ServerSqn != 9 {
		t.Fatalf("expected serverSqn preserved across logout, got %d", s.ServerSqn)
	}
	if len(s.SendBuf) != 3 {
		t.Fatalf("expected pending send buffer preserved, got %d bytes", len(s.SendBuf))
	}
	if s.ClientSqn != 5 {
		t.Fatalf("expected clientSqn preserved across logout, got %d", s.ClientSqn)
	}
}

func TestSessionNextServerSqnIncrements(t *testing.T) {
	s := New(NextID(), fakeConn())
	if got := s.NextServerSqn(); got != 1 {
		t.Fatalf("expected first serverSqn 1, got %d", got)
	}
	if got := s.NextServerSqn(); got != 2 {
		t.Fatalf("expected second serverSqn 2, got %d", got)
	}
}
