package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dwizi/rescue-console/internal/board"
)

func (r *router) handleBoard(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Board == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "board unavailable"})
		return
	}
	records := r.deps.Board.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"online": r.deps.Board.Online(),
		"items":  records,
		"count":  len(records),
	})
}

// handleCase looks a rescue up by the same keys operators use in chat:
// ?key=3, ?key=%233, a client name or an api id.
func (r *router) handleCase(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Board == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "board unavailable"})
		return
	}
	raw := strings.TrimSpace(req.URL.Query().Get("key"))
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
		return
	}
	found, err := r.deps.Board.Get(board.ParseKey(raw))
	if errors.Is(err, board.ErrRescueNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		if r.deps.Logger != nil {
			r.deps.Logger.Error("board lookup failed", "key", raw, "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "board lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, found.Record())
}

func (r *router) handleStats(w http.ResponseWriter, req *http.Request) {
	payload := map[string]any{}
	if r.deps.Board != nil {
		payload["online"] = r.deps.Board.Online()
		payload["rescue_count"] = r.deps.Board.Len()
		payload["cycle_at"] = r.deps.Board.CycleAt()
	}
	if r.deps.Dispatch != nil {
		payload["no_match_count"] = r.deps.Dispatch.NoMatchCount()
		payload["prefix"] = r.deps.Dispatch.Prefix()
	}
	writeJSON(w, http.StatusOK, payload)
}
