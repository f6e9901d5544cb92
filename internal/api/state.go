package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/erazemk/custody/internal/model"
	"github.com/erazemk/custody/internal/store"
)

// StateHandler serves the full-snapshot read and write endpoints.
type StateHandler struct {
	Store     store.Backend
	Log       *zap.Logger
	BodyLimit int64
}

// syncRequest uses pointers so a missing collection can be told apart from
// an empty one.
type syncRequest struct {
	Departments *[]model.Department `json:"departments"`
	Workers     *[]model.Worker     `json:"workers"`
	Items       *[]model.Item       `json:"items"`
	Logs        *[]model.Log        `json:"logs"`
}

// Data handles GET /api/data.
func (h *StateHandler) Data(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.FetchAll(r.Context())
	if err != nil {
		h.Log.Error("fetching state", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to fetch data")
		return
	}
	snap.Normalize()
	jsonResponse(w, http.StatusOK, snap)
}

// Sync handles POST /api/sync. The body replaces all stored state.
func (h *StateHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.BodyLimit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.BodyLimit)
	}

	var req syncRequest
	if err := decodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Departments == nil || req.Workers == nil || req.Items == nil || req.Logs == nil {
		jsonError(w, http.StatusBadRequest, "departments, workers, items and logs are required")
		return
	}

	snap := &model.Snapshot{
		Departments: *req.Departments,
		Workers:     *req.Workers,
		Items:       *req.Items,
		Logs:        *req.Logs,
	}
	if err := snap.Validate(); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Store.ReplaceAll(r.Context(), snap); err != nil {
		h.Log.Error("replacing state", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to sync data")
		return
	}

	h.Log.Debug("state replaced",
		zap.Int("departments", len(snap.Departments)),
		zap.Int("workers", len(snap.Workers)),
		zap.Int("items", len(snap.Items)),
		zap.Int("logs", len(snap.Logs)),
	)
	jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// Health handles GET /api/health.
func Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
