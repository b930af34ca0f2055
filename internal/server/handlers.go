package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/AlexKrutoy/SnapsterBot/internal/runner"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
		return
	}

	phases := map[runner.Phase]int{}
	accounts := s.source.Snapshot()
	for _, st := range accounts {
		phases[st.Phase]++
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"accounts": len(accounts),
		"phases":   phases,
	})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": s.source.Snapshot(),
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/accounts/"), "/")
	if name == "" {
		writeAPIError(w, http.StatusNotFound, "session name required", "not_found")
		return
	}

	st, ok := s.source.Get(name)
	if !ok {
		writeAPIError(w, http.StatusNotFound, "unknown session", "not_found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
