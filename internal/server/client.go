package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/classboard/internal/protocol"
	"github.com/Tyrowin/classboard/internal/room"
)

// Client is one participant connection. It implements room.Member: the room
// queues outbound lines with Deliver, and a dedicated writer goroutine drains
// the queue so a slow peer never holds up a broadcast.
type Client struct {
	id        string
	transport string
	conn      lineConn
	srv       *Server
	ctx       context.Context
	limiter   *rateLimiter

	// logger is shared by both pumps; readLogger adds the admitted name and
	// is used by the reader goroutine only.
	logger     *slog.Logger
	readLogger *slog.Logger

	mu     sync.Mutex
	send   chan string
	closed bool
	kicked bool

	// admitOnce guards admission, which either the first line or the join
	// timer performs. identity is safe to read after admitOnce.Do returns.
	admitOnce sync.Once
	identity  room.Identity

	writerDone  chan struct{}
	connOnce    sync.Once
	cleanupOnce sync.Once
}

func newClient(ctx context.Context, srv *Server, conn lineConn, transport string) *Client {
	id := uuid.NewString()
	logger := srv.logger.With(
		"conn_id", id,
		"remote", conn.RemoteAddr(),
		"transport", transport)
	return &Client{
		id:         id,
		transport:  transport,
		conn:       conn,
		srv:        srv,
		ctx:        ctx,
		limiter:    newRateLimiter(srv.cfg.RateLimit),
		logger:     logger,
		readLogger: logger,
		send:       make(chan string, srv.cfg.SendBuffer),
		writerDone: make(chan struct{}),
	}
}

// Deliver queues line for the writer without blocking. A client whose queue is
// full is disconnected; its reader then runs the normal cleanup.
func (c *Client) Deliver(line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- line:
		return true
	default:
		if !c.kicked {
			c.kicked = true
			c.logger.Warn("send buffer full; disconnecting slow client", "buffer", cap(c.send))
			c.closeConn()
		}
		return false
	}
}

var _ room.Member = (*Client)(nil)

// readPump owns the connection from accept to close. The first line admits the
// client: a JOIN line under its requested name, anything else under the
// anonymous placeholder. If no line arrives within the join timeout a timer
// admits the client anonymously while the read carries on, and the first line
// is then handled as ordinary traffic.
func (c *Client) readPump() {
	defer c.cleanup()

	timer := time.AfterFunc(c.srv.cfg.JoinTimeout, func() {
		c.logger.Info("no join request before timeout; joining anonymously",
			"timeout", c.srv.cfg.JoinTimeout)
		c.admit(room.AnonymousName)
	})

	line, err := c.conn.ReadLine()
	timer.Stop()
	if err != nil {
		// Wait out a join timer that already fired so cleanup sees the seat.
		c.admitOnce.Do(func() {})
		c.logReadError(err)
		return
	}
	c.admitFirstLine(line)
	c.readLogger = c.logger.With("user", c.identity.Name)

	for {
		line, err := c.conn.ReadLine()
		if err != nil {
			c.logReadError(err)
			return
		}
		c.handleLine(line)
	}
}

// admit joins the room under requested unless the client was already admitted.
// It reports whether this call did the admission.
func (c *Client) admit(requested string) bool {
	admitted := false
	c.admitOnce.Do(func() {
		c.identity = c.srv.room.Admit(c, requested)
		admitted = true
	})
	return admitted
}

func (c *Client) admitFirstLine(line string) {
	msg, err := protocol.Parse(line)
	join, isJoin := msg.(protocol.Join)
	requested := room.AnonymousName
	if err == nil && isJoin {
		requested = join.Name
	}

	switch {
	case !c.admit(requested):
		c.handleLine(line)
	case !isJoin:
		c.srv.metrics.InboundDiscarded("no_join")
		c.readLogger.Debug("first line is not a join request; joining anonymously", "error", err)
	}
}

func (c *Client) handleLine(line string) {
	if !c.checkRateLimit() {
		return
	}
	c.dispatch(line)
}

// logReadError logs the reason the read loop ended at a level matching how
// surprising it is.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, errLineTooLong):
		c.readLogger.Warn("inbound line exceeded maximum size", "max_bytes", c.srv.cfg.MaxLineBytes)
	case errors.Is(err, io.EOF),
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
		isExpectedCloseError(err):
		c.readLogger.Info("client disconnected")
	case isTimeout(err):
		c.readLogger.Info("client timed out", "error", err)
	default:
		c.readLogger.Warn("read error", "error", err)
	}
}

// checkRateLimit reports whether the next inbound line may be processed.
func (c *Client) checkRateLimit() bool {
	if c.limiter.allow() {
		return true
	}
	c.srv.metrics.InboundDiscarded("rate_limited")
	c.readLogger.Debug("rate limit exceeded; discarding line",
		"burst", c.srv.cfg.RateLimit.Burst,
		"interval", c.srv.cfg.RateLimit.RefillInterval)
	return false
}

// writePump drains the send queue, batching whatever is already queued into
// one write, and pings transports that need keepalive.
func (c *Client) writePump() {
	defer close(c.writerDone)

	var tick <-chan time.Time
	if _, ok := c.conn.(pinger); ok {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case line, ok := <-c.send:
			if !ok {
				c.writeClose()
				return
			}
			if err := c.conn.WriteLines(c.collect(line)); err != nil {
				c.logWriteError(err)
				c.closeConn()
				return
			}
		case <-tick:
			if err := c.conn.(pinger).ping(); err != nil {
				c.logWriteError(err)
				c.closeConn()
				return
			}
		}
	}
}

// collect returns first plus every line queued behind it right now.
func (c *Client) collect(first string) []string {
	batch := []string{first}
	for n := len(c.send); n > 0; n-- {
		line, ok := <-c.send
		if !ok {
			break
		}
		batch = append(batch, line)
	}
	return batch
}

func (c *Client) writeClose() {
	cw, ok := c.conn.(closeWriter)
	if !ok {
		return
	}
	if err := cw.writeClose(); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("error writing close message", "error", err)
	}
}

func (c *Client) logWriteError(err error) {
	if isExpectedCloseError(err) {
		c.logger.Debug("write on closed connection", "error", err)
		return
	}
	c.logger.Warn("write error", "error", err)
}

// cleanup runs once per connection: it leaves the room, lets the writer flush
// and releases the transport. A kicked slow client is not flushed.
func (c *Client) cleanup() {
	c.cleanupOnce.Do(func() {
		c.srv.room.Depart(c)

		c.mu.Lock()
		kicked := c.kicked
		if !c.closed {
			c.closed = true
			close(c.send)
		}
		c.mu.Unlock()

		if !kicked {
			c.awaitWriter()
		}
		c.closeConn()
	})
}

// awaitWriter gives the writer a bounded chance to flush what is queued.
func (c *Client) awaitWriter() {
	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case <-c.writerDone:
	case <-timer.C:
		c.logger.Debug("writer still busy at close; dropping queued lines")
	}
}

// closeConn closes the transport, which unblocks the reader.
func (c *Client) closeConn() {
	c.connOnce.Do(func() {
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Debug("error closing connection", "error", err)
		}
	})
}
