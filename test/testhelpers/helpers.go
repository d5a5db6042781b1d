// Package testhelpers provides shared utilities for the classboard
// integration tests: an in-process server on loopback ports and line-oriented
// peers over TCP or WebSocket.
package testhelpers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/classboard/internal/server"
)

// TestOrigin is allowed by servers started with StartServer.
const TestOrigin = "http://localhost:8080"

// DefaultTimeout bounds every wait for an expected line.
const DefaultTimeout = 3 * time.Second

// ErrPeerClosed is returned by ReadLine once the server closed the connection.
var ErrPeerClosed = errors.New("connection closed by server")

// StartServer runs a server on loopback ports until the test ends. mutate may
// adjust the configuration before the server is created.
func StartServer(t *testing.T, mutate func(*server.Config)) *server.Server {
	t.Helper()

	cfg := server.NewConfig()
	cfg.TCPAddr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.AllowedOrigins = []string{TestOrigin}
	if mutate != nil {
		mutate(&cfg)
	}

	srv := server.New(cfg, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("server stopped with error: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("server did not stop within 10s")
		}
	})
	return srv
}

// Peer is a protocol client. A background goroutine reads lines so tests can
// wait for them with a timeout.
type Peer struct {
	lines chan string
	write func(line string) error
	close func() error

	closeOnce sync.Once
}

func newPeer(read func() (string, error), write func(string) error, closeFn func() error) *Peer {
	p := &Peer{
		lines: make(chan string, 1024),
		write: write,
		close: closeFn,
	}
	go func() {
		defer close(p.lines)
		for {
			line, err := read()
			if err != nil {
				return
			}
			p.lines <- line
		}
	}()
	return p
}

// DialTCP connects a raw line-protocol peer.
func DialTCP(t *testing.T, srv *server.Server) *Peer {
	t.Helper()

	conn, err := net.DialTimeout("tcp", srv.TCPAddr().String(), DefaultTimeout)
	if err != nil {
		t.Fatalf("dial tcp: %v", err)
	}
	r := bufio.NewReader(conn)
	var mu sync.Mutex
	p := newPeer(
		func() (string, error) {
			line, err := r.ReadString('\n')
			if err != nil {
				return "", err
			}
			return strings.TrimRight(line, "\r\n"), nil
		},
		func(line string) error {
			mu.Lock()
			defer mu.Unlock()
			_, err := io.WriteString(conn, line+"\n")
			return err
		},
		conn.Close,
	)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// WebSocketURL returns the ws:// URL of the server's /ws endpoint.
func WebSocketURL(srv *server.Server) string {
	return "ws://" + srv.HTTPAddr().String() + "/ws"
}

// HTTPURL returns the http:// URL of path on the server.
func HTTPURL(srv *server.Server, path string) string {
	return "http://" + srv.HTTPAddr().String() + path
}

// DialWebSocket connects a peer over /ws with the test origin. Each inbound
// frame may carry several lines.
func DialWebSocket(t *testing.T, srv *server.Server) *Peer {
	t.Helper()

	header := http.Header{}
	header.Set("Origin", TestOrigin)
	conn, resp, err := websocket.DefaultDialer.Dial(WebSocketURL(srv), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}

	var pending []string
	var mu sync.Mutex
	p := newPeer(
		func() (string, error) {
			for len(pending) == 0 {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return "", err
				}
				pending = strings.Split(string(data), "\n")
			}
			line := pending[0]
			pending = pending[1:]
			return line, nil
		},
		func(line string) error {
			mu.Lock()
			defer mu.Unlock()
			return conn.WriteMessage(websocket.TextMessage, []byte(line))
		},
		conn.Close,
	)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// Send writes one line, failing the test on error.
func (p *Peer) Send(t *testing.T, line string) {
	t.Helper()
	if err := p.write(line); err != nil {
		t.Fatalf("send %q: %v", line, err)
	}
}

// TrySend writes one line and returns any error. Use it from goroutines other
// than the test's own.
func (p *Peer) TrySend(line string) error {
	return p.write(line)
}

// ReadLine waits up to timeout for the next line.
func (p *Peer) ReadLine(timeout time.Duration) (string, error) {
	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", ErrPeerClosed
		}
		return line, nil
	case <-time.After(timeout):
		return "", fmt.Errorf("no line within %v", timeout)
	}
}

// Close closes the connection. It is safe to call more than once.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() { err = p.close() })
	return err
}

// Expect reads the next lines and fails unless they equal want, in order.
func (p *Peer) Expect(t *testing.T, want ...string) {
	t.Helper()
	for i, w := range want {
		got, err := p.ReadLine(DefaultTimeout)
		if err != nil {
			t.Fatalf("line %d: want %q, got error: %v", i+1, w, err)
		}
		if got != w {
			t.Fatalf("line %d: got %q, want %q", i+1, got, w)
		}
	}
}

// ExpectSilence fails if any line arrives within d.
func (p *Peer) ExpectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	if line, err := p.ReadLine(d); err == nil {
		t.Fatalf("unexpected line %q", line)
	}
}

// ExpectClosed waits for the server to close the connection, skipping any
// lines still in flight.
func (p *Peer) ExpectClosed(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		_, err := p.ReadLine(time.Until(deadline))
		if errors.Is(err, ErrPeerClosed) {
			return
		}
	}
	t.Fatal("connection still open")
}

// Await skips lines until one equals want.
func (p *Peer) Await(t *testing.T, want string) {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for {
		got, err := p.ReadLine(time.Until(deadline))
		if err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		if got == want {
			return
		}
	}
}

// Drain discards lines until none arrives for quiet.
func (p *Peer) Drain(quiet time.Duration) {
	for {
		if _, err := p.ReadLine(quiet); err != nil {
			return
		}
	}
}

// Join sends JOIN and consumes the private handshake lines. It returns the
// assigned name and role. The broadcast join lines that follow are left for
// the caller.
func (p *Peer) Join(t *testing.T, name string) (assigned, role string) {
	t.Helper()
	p.Send(t, "JOIN|"+name)
	return p.Handshake(t)
}

// Handshake reads USERNAME, ROLE and BOARD_LOCK.
func (p *Peer) Handshake(t *testing.T) (assigned, role string) {
	t.Helper()
	assigned = p.field(t, "USERNAME|")
	role = p.field(t, "ROLE|")
	p.field(t, "BOARD_LOCK|")
	return assigned, role
}

func (p *Peer) field(t *testing.T, prefix string) string {
	t.Helper()
	line, err := p.ReadLine(DefaultTimeout)
	if err != nil {
		t.Fatalf("waiting for %s: %v", prefix, err)
	}
	value, ok := strings.CutPrefix(line, prefix)
	if !ok {
		t.Fatalf("got %q, want %s...", line, prefix)
	}
	return value
}
