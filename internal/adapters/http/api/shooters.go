package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/shotlab/internal/domain/shooters"
)

// ShootersDependencies defines the interface for the reference table.
type ShootersDependencies interface {
	Shooters() ([]shooters.Profile, error)
}

// ShootersHandler serves the professional reference table.
type ShootersHandler struct {
	deps ShootersDependencies
}

// NewShootersHandler creates a new shooters handler.
func NewShootersHandler(deps ShootersDependencies) *ShootersHandler {
	return &ShootersHandler{deps: deps}
}

// HandleGetShooters handles GET /v1/shooters[?name=X][&limit=N].
func (h *ShootersHandler) HandleGetShooters(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_shooters"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	list, err := h.deps.Shooters()
	if err != nil {
		writeClassified(w, Wrap(op, err))
		return
	}

	if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
		for _, p := range list {
			if strings.EqualFold(p.Name, name) {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}

	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	writeJSON(w, http.StatusOK, list)
}
