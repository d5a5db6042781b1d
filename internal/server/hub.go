package server

import (
	"context"
	"sync"
	"time"
)

// hub tracks live connections so the server can close them on shutdown and
// wait for their goroutines. Room membership is kept by the room itself.
type hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	closing bool
	wg      sync.WaitGroup
}

func newHub() *hub {
	return &hub{clients: make(map[*Client]struct{})}
}

// start runs the client's pumps. It reports false, leaving the client
// untouched, once shutdown has begun.
func (h *hub) start(c *Client, onExit func()) bool {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		defer h.remove(c)
		defer onExit()
		c.readPump()
	}()
	return true
}

func (h *hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// shutdown closes every connection and waits for the pumps to finish, or until
// the timeout is reached.
func (h *hub) shutdown(timeout time.Duration) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.closeConn()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
