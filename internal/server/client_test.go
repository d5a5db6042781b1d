package server

import (
	"context"
	"io"
	"net"
	"slices"
	"sync"
	"testing"
	"time"
)

// scriptConn is a lineConn fed from a channel. Closing input ends it with EOF;
// Close ends it with net.ErrClosed.
type scriptConn struct {
	input chan string
	done  chan struct{}

	mu     sync.Mutex
	out    []string
	closed bool
	once   sync.Once
}

func newScriptConn() *scriptConn {
	return &scriptConn{
		input: make(chan string, 16),
		done:  make(chan struct{}),
	}
}

func (f *scriptConn) ReadLine() (string, error) {
	select {
	case line, ok := <-f.input:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-f.done:
		return "", net.ErrClosed
	}
}

func (f *scriptConn) WriteLines(lines []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return net.ErrClosed
	}
	f.out = append(f.out, lines...)
	return nil
}

func (f *scriptConn) Close() error {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.done)
	})
	return nil
}

func (f *scriptConn) RemoteAddr() string { return "script" }

func (f *scriptConn) output() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.out)
}

func (f *scriptConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// startScripted runs a client over conn through the hub and stops it when the
// test ends.
func startScripted(t *testing.T, s *Server, conn *scriptConn) *Client {
	t.Helper()
	c := newClient(context.Background(), s, conn, transportTCP)
	if !s.hub.start(c, func() {}) {
		t.Fatal("hub refused client")
	}
	t.Cleanup(func() {
		_ = conn.Close()
		if err := s.hub.shutdown(3 * time.Second); err != nil {
			t.Errorf("hub shutdown: %v", err)
		}
	})
	return c
}

// TestJoinTimerAdmitsWhileReadContinues verifies a client that stays silent
// past the join timeout is admitted anonymously and keeps its session.
func TestJoinTimerAdmitsWhileReadContinues(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.JoinTimeout = 50 * time.Millisecond
	})
	conn := newScriptConn()
	c := startScripted(t, s, conn)

	eventually(t, "timer admission", func() bool { return s.Room().Len() == 1 })
	id, ok := s.Room().Identity(c)
	if !ok || id.Name != "Anonymous" || !id.Teacher {
		t.Fatalf("Identity() = %+v, %v; want anonymous teacher", id, ok)
	}

	conn.input <- "JOIN|Late"
	conn.input <- "CHAT|x|still here"
	eventually(t, "chat relay", func() bool {
		return slices.Contains(conn.output(), "CHAT|Anonymous|still here")
	})

	if conn.isClosed() {
		t.Error("connection closed after timer admission")
	}
	if got := s.Room().ActiveNames(); len(got) != 1 || got[0] != "Anonymous" {
		t.Errorf("ActiveNames() = %v, want [Anonymous]", got)
	}
}

// TestSilentDisconnectIsNeverAdmitted verifies a connection that closes
// before its first line leaves no trace in the room.
func TestSilentDisconnectIsNeverAdmitted(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.JoinTimeout = time.Hour
	})
	conn := newScriptConn()
	close(conn.input)
	startScripted(t, s, conn)

	eventually(t, "connection close", conn.isClosed)
	if s.Room().Len() != 0 {
		t.Errorf("room has %d members, want 0", s.Room().Len())
	}
	if got := conn.output(); len(got) != 0 {
		t.Errorf("wrote %v to a never-admitted client", got)
	}
}

// TestCleanupFlushesQueuedLines verifies lines queued before a disconnect are
// written before the transport closes.
func TestCleanupFlushesQueuedLines(t *testing.T) {
	s := newTestServer(t, nil)
	conn := newScriptConn()
	conn.input <- "JOIN|Ann"
	close(conn.input)
	startScripted(t, s, conn)

	eventually(t, "connection close", conn.isClosed)
	want := []string{
		"USERNAME|Ann",
		"ROLE|TEACHER",
		"BOARD_LOCK|false",
		"CHAT|SERVER|Ann joined the session.",
		"USERLIST|Ann",
	}
	if got := conn.output(); !slices.Equal(got, want) {
		t.Errorf("written = %v, want %v", got, want)
	}
	if s.Room().Len() != 0 {
		t.Errorf("room has %d members after disconnect, want 0", s.Room().Len())
	}
}
