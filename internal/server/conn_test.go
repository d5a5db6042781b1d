package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// pipeTCPConn returns a tcpConn reading from one end of a pipe and the peer end.
func pipeTCPConn(t *testing.T, maxLine int64) (*tcpConn, net.Conn) {
	t.Helper()
	server, peer := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = peer.Close()
	})
	return newTCPConn(server, maxLine), peer
}

func writeAsync(peer net.Conn, chunks ...string) <-chan error {
	done := make(chan error, 1)
	go func() {
		for _, chunk := range chunks {
			if _, err := io.WriteString(peer, chunk); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	return done
}

// TestTCPConnReadLine verifies line splitting, CRLF handling and lines split
// across several writes.
func TestTCPConnReadLine(t *testing.T) {
	conn, peer := pipeTCPConn(t, 64)
	done := writeAsync(peer, "JOIN|Ann\r\nCHAT|Ann|hi", " there\nCLEAR|\n")

	for _, want := range []string{"JOIN|Ann", "CHAT|Ann|hi there", "CLEAR|"} {
		got, err := conn.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine() error = %v", err)
		}
		if got != want {
			t.Errorf("ReadLine() = %q, want %q", got, want)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("write: %v", err)
	}
}

// TestTCPConnFinalLineWithoutNewline verifies an unterminated line before EOF
// is still delivered, followed by EOF.
func TestTCPConnFinalLineWithoutNewline(t *testing.T) {
	conn, peer := pipeTCPConn(t, 64)
	go func() {
		_, _ = io.WriteString(peer, "CHAT|Ann|bye")
		_ = peer.Close()
	}()

	got, err := conn.ReadLine()
	if err != nil || got != "CHAT|Ann|bye" {
		t.Fatalf("ReadLine() = %q, %v; want final line", got, err)
	}
	if _, err := conn.ReadLine(); !errors.Is(err, io.EOF) {
		t.Errorf("second ReadLine() error = %v, want EOF", err)
	}
}

// TestTCPConnLineTooLong verifies oversized lines are rejected even when they
// exceed the bufio buffer.
func TestTCPConnLineTooLong(t *testing.T) {
	conn, peer := pipeTCPConn(t, 16)
	go func() {
		_, _ = io.WriteString(peer, "CHAT|Ann|"+strings.Repeat("x", 8192)+"\n")
	}()

	if _, err := conn.ReadLine(); !errors.Is(err, errLineTooLong) {
		t.Errorf("ReadLine() error = %v, want errLineTooLong", err)
	}
}

// TestTCPConnWriteLines verifies each line is newline-terminated.
func TestTCPConnWriteLines(t *testing.T) {
	conn, peer := pipeTCPConn(t, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- conn.WriteLines([]string{"USERNAME|Ann", "ROLE|TEACHER"})
	}()

	r := bufio.NewReader(peer)
	for _, want := range []string{"USERNAME|Ann\n", "ROLE|TEACHER\n"} {
		got, err := r.ReadString('\n')
		if err != nil || got != want {
			t.Errorf("peer read %q, %v; want %q", got, err, want)
		}
	}
	if err := <-errc; err != nil {
		t.Errorf("WriteLines() error = %v", err)
	}
}

// TestWSConnFrames verifies that a frame carrying several lines is split and
// that outbound batches arrive as a single frame.
func TestWSConnFrames(t *testing.T) {
	accepted := make(chan *wsConn, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		accepted <- newWSConn(conn, r.RemoteAddr, 64)
	}))
	defer srv.Close()

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer peer.Close()

	var conn *wsConn
	select {
	case conn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted the connection")
	}
	defer conn.Close()

	if err := peer.WriteMessage(websocket.TextMessage, []byte("JOIN|Ann\r\nCHAT|Ann|hi\n")); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"JOIN|Ann", "CHAT|Ann|hi"} {
		got, err := conn.ReadLine()
		if err != nil || got != want {
			t.Fatalf("ReadLine() = %q, %v; want %q", got, err, want)
		}
	}

	if err := conn.WriteLines([]string{"USERNAME|Ann", "ROLE|TEACHER"}); err != nil {
		t.Fatalf("WriteLines() error = %v", err)
	}
	_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := peer.ReadMessage()
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if string(data) != "USERNAME|Ann\nROLE|TEACHER" {
		t.Errorf("frame = %q", data)
	}

	if err := peer.WriteMessage(websocket.TextMessage, []byte("CHAT|Ann|"+strings.Repeat("x", 128))); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.ReadLine(); !errors.Is(err, errLineTooLong) {
		t.Errorf("oversized frame error = %v, want errLineTooLong", err)
	}
}
