package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/erazemk/custody/internal/auth"
	"github.com/erazemk/custody/internal/model"
	"github.com/erazemk/custody/internal/revoke"
	"github.com/erazemk/custody/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	Store       store.Backend
	Credentials *auth.Credentials
	Revoker     revoke.Revoker
	JWTSecret   string
	TokenTTL    time.Duration
	Log         *zap.Logger
}

type loginRequest struct {
	Role     string `json:"role"`
	ID       string `json:"id"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string        `json:"token"`
	Role   string        `json:"role"`
	Worker *model.Worker `json:"worker,omitempty"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "id and password required")
		return
	}

	var resp loginResponse
	var userID, name string

	switch req.Role {
	case model.RoleAdmin:
		if !h.Credentials.CheckAdmin(req.ID, req.Password) {
			h.Log.Warn("admin login failed", zap.String("remote", r.RemoteAddr))
			jsonError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		userID = h.Credentials.AdminUsername()
		name = userID

	case model.RoleWorker:
		snap, err := h.Store.FetchAll(r.Context())
		if err != nil {
			h.Log.Error("loading workers for login", zap.Error(err))
			jsonError(w, http.StatusInternalServerError, "internal error")
			return
		}
		worker, err := h.Credentials.FindWorker(snap.Workers, req.ID, req.Password)
		if err != nil {
			h.Log.Warn("worker login failed", zap.String("worker", req.ID), zap.String("remote", r.RemoteAddr))
			jsonError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		worker.Password = ""
		resp.Worker = &worker
		userID, name = worker.ID, worker.Name

	default:
		jsonError(w, http.StatusBadRequest, "role must be admin or worker")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, userID, name, req.Role, h.TokenTTL)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	resp.Token = token
	resp.Role = req.Role
	h.Log.Info("user logged in", zap.String("user", userID), zap.String("role", req.Role))
	jsonResponse(w, http.StatusOK, resp)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.Revoker.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		h.Log.Error("revoking token", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	h.Log.Info("user logged out", zap.String("user", claims.UserID))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}
