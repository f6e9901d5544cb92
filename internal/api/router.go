package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/erazemk/custody/internal/auth"
	"github.com/erazemk/custody/internal/revoke"
	"github.com/erazemk/custody/internal/store"
)

// Options wires the router's dependencies.
type Options struct {
	Store       store.Backend
	Credentials *auth.Credentials
	Revoker     revoke.Revoker
	JWTSecret   string
	TokenTTL    time.Duration
	// RequireToken puts /api/data and /api/sync behind bearer auth.
	RequireToken bool
	BodyLimit    int64
	Log          *zap.Logger
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(opts Options) http.Handler {
	mux := http.NewServeMux()

	stateHandler := &StateHandler{Store: opts.Store, Log: opts.Log, BodyLimit: opts.BodyLimit}
	authHandler := &AuthHandler{
		Store:       opts.Store,
		Credentials: opts.Credentials,
		Revoker:     opts.Revoker,
		JWTSecret:   opts.JWTSecret,
		TokenTTL:    opts.TokenTTL,
		Log:         opts.Log,
	}

	authMW := AuthMiddleware(opts.JWTSecret, opts.Revoker, opts.Log)
	guard := func(h http.HandlerFunc) http.Handler {
		if opts.RequireToken {
			return authMW(h)
		}
		return h
	}

	mux.HandleFunc("GET /api/health", Health)

	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	mux.Handle("GET /api/data", guard(stateHandler.Data))
	mux.Handle("POST /api/sync", guard(stateHandler.Sync))

	return mux
}
