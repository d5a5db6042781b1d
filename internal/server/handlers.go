package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleWebSocket upgrades the request and attaches the connection to the
// room. The hub runs the pumps, so the handler returns immediately.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.handleConn(newWSConn(conn, r.RemoteAddr, s.cfg.MaxLineBytes), transportWebSocket)
}

// handleHealth reports that the server is up.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Classboard server is running!")
}

// handleRoom returns a JSON snapshot of participants, board lock and poll.
func (s *Server) handleRoom(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.room.Snapshot()); err != nil {
		s.logger.Warn("error writing room snapshot", "error", err)
	}
}
