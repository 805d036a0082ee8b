package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chess-vn/courtsync/internal/domains/dtos"
	"github.com/chess-vn/courtsync/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// handleMatch upgrades a request into a socket of the match named in the
// path and serves it until the socket closes.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		w.Header().Set("Upgrade", "websocket")
		http.Error(w, "upgrade required", http.StatusUpgradeRequired)
		return
	}
	matchId := chi.URLParam(r, "matchId")
	if !validMatchId(matchId) {
		http.Error(w, ErrInvalidMatchId.Error(), http.StatusBadRequest)
		return
	}

	match, err := s.acquire(r.Context(), matchId)
	if err != nil {
		logging.Error("failed to load match", zap.String("match_id", matchId), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, ErrServerClosed) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	defer s.release(matchId)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	conn := newConnection(ws, s.config.Websocket, s.clock.Now())
	if !match.join(conn) {
		ws.Close()
		return
	}
	s.openConns.Add(1)
	defer s.openConns.Add(-1)

	go conn.writePump()
	conn.readPump(match)
	match.leave(conn.id)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := dtos.ServerStatusResponse{
		ActiveMatches:      s.activeMatches(),
		OpenConnections:    int(s.openConns.Load()),
		PersistFailures:    s.persistFailures.Load(),
		TaskProtected:      s.protected.Load(),
		PersistenceBackend: s.config.Persistence.Backend,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error("failed to encode status", zap.Error(err))
	}
}
