package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	transportTCP       = "tcp"
	transportWebSocket = "websocket"

	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	tcpKeepAlive = 30 * time.Second
)

// lineConn is a bidirectional stream of protocol lines. ReadLine is used by
// the reader goroutine only; WriteLines and ping by the writer goroutine only.
// Close may be called from anywhere.
type lineConn interface {
	ReadLine() (string, error)
	WriteLines(lines []string) error
	Close() error
	RemoteAddr() string
}

// pinger is implemented by transports that need application-level keepalive.
type pinger interface {
	ping() error
}

// closeWriter is implemented by transports with a close handshake.
type closeWriter interface {
	writeClose() error
}

// tcpConn carries newline-terminated lines over a raw stream.
type tcpConn struct {
	conn    net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	maxLine int

	// partial collects a line spanning several buffer fills.
	partial []byte
}

func newTCPConn(conn net.Conn, maxLine int64) *tcpConn {
	return &tcpConn{
		conn:    conn,
		r:       bufio.NewReader(conn),
		w:       bufio.NewWriter(conn),
		maxLine: int(maxLine),
	}
}

func (c *tcpConn) ReadLine() (string, error) {
	for {
		chunk, err := c.r.ReadSlice('\n')
		c.partial = append(c.partial, chunk...)
		// Allow for the CRLF terminator on top of the payload.
		if len(c.partial) > c.maxLine+2 {
			c.partial = nil
			return "", errLineTooLong
		}

		switch {
		case err == nil:
			return c.takeLine(), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(c.partial) > 0:
			// Unterminated final line; EOF is reported on the next call.
			return c.takeLine(), nil
		default:
			return "", err
		}
	}
}

func (c *tcpConn) takeLine() string {
	line := strings.TrimRight(string(c.partial), "\r\n")
	c.partial = c.partial[:0]
	return line
}

func (c *tcpConn) WriteLines(lines []string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := c.w.WriteString(line); err != nil {
			return err
		}
		if err := c.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return c.w.Flush()
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// wsConn carries protocol lines in WebSocket text frames. A frame may hold
// several lines separated by newlines.
type wsConn struct {
	conn    *websocket.Conn
	addr    string
	pending []string
}

func newWSConn(conn *websocket.Conn, addr string, maxLine int64) *wsConn {
	conn.SetReadLimit(maxLine)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	c := &wsConn{conn: conn, addr: addr}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return c
}

func (c *wsConn) ReadLine() (string, error) {
	for len(c.pending) == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				return "", errLineTooLong
			}
			return "", err
		}
		c.pending = strings.Split(strings.TrimRight(string(data), "\r\n"), "\n")
	}
	line := c.pending[0]
	c.pending = c.pending[1:]
	return strings.TrimSuffix(line, "\r"), nil
}

func (c *wsConn) WriteLines(lines []string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	for i, line := range lines {
		if i > 0 {
			if _, err := w.Write([]byte{'\n'}); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return w.Close()
}

func (c *wsConn) ping() error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) writeClose() error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.addr
}
