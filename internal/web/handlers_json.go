package web

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// handleState serves the same snapshot the websocket pushes, for clients
// that prefer polling.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snapshot := s.stateSrc.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.logger.Error("Failed to encode state", zap.Error(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
