package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opencode-ai/agentcore/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Cross-origin WebSocket clients (the TUI, browser consoles) are
	// expected; CORS on the REST routes already gates the rest of the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is one client->server frame: a prompt to run in a session.
type wsRequest struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

// wsError is sent back when a request frame can't be served.
type wsError struct {
	Error string `json:"error"`
}

// handleWebSocket upgrades the connection and, for each inbound prompt
// frame, streams the agent loop's events back as outbound JSON frames
// until that generation ends, then waits for the next frame. One
// goroutine owns the connection throughout, so reads and writes never
// race each other.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("server: websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		events, err := s.sessions.GenerateStreaming(r.Context(), req.SessionID, req.Prompt)
		if err != nil {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if conn.WriteJSON(wsError{Error: err.Error()}) != nil {
				return
			}
			continue
		}

		for ev := range events {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if conn.WriteJSON(ev) != nil {
				return
			}
		}
	}
}
