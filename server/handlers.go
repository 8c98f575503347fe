package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wfunc/territory/logger"
	"github.com/wfunc/territory/persistence"
)

const maxRecentLimit = 100

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *GameServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessionManager.Count(),
	})
}

func (s *GameServer) handleRoundInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.arena.RoundInfo())
}

func (s *GameServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.arena.Leaderboard())
}

// handleRecentRounds serves the archive, newest first.
func (s *GameServer) handleRecentRounds(w http.ResponseWriter, r *http.Request) {
	limit := persistence.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecentLimit)
	}

	rounds, err := s.history.Recent(limit)
	if err != nil {
		logger.Log.Errorf("Failed to list rounds: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list rounds")
		return
	}
	summary, err := s.history.Summary()
	if err != nil {
		logger.Log.Errorf("Failed to summarise rounds: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list rounds")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rounds":  rounds,
		"summary": summary,
	})
}

func (s *GameServer) handleRound(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}
	record, err := s.history.Get(uint(id))
	if err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "round not found")
			return
		}
		logger.Log.Errorf("Failed to load round %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load round")
		return
	}
	writeJSON(w, http.StatusOK, record)
}
