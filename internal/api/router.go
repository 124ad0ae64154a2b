package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/rpslsgame/internal/api/apierr"
	"github.com/mcoot/rpslsgame/internal/api/handler"
	apimiddleware "github.com/mcoot/rpslsgame/internal/api/middleware"
	"github.com/mcoot/rpslsgame/internal/middleware"
	"github.com/mcoot/rpslsgame/internal/services/session"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger   *slog.Logger
	Sessions *session.Manager
	// Token, when set, must be presented as a bearer token on game routes
	Token string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	gameHandler := handler.NewGameHandler(cfg.Sessions)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(apimiddleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	// Health check endpoint (no auth)
	readOnly(api, "/health", gameHandler.Health)

	games := api.PathPrefix("/games").Subrouter()
	games.Use(apimiddleware.BearerToken(cfg.Token))
	readOnly(games, "", gameHandler.List)
	readOnly(games, "/{address}", gameHandler.Get)

	return r
}

// readOnly serves GET on path and answers every other method with 405.
// mux loses a method mismatch once a later sibling route's prefix matches,
// so each path carries its own fallback route.
func readOnly(r *mux.Router, path string, h http.HandlerFunc) {
	r.HandleFunc(path, h).Methods(http.MethodGet)
	r.HandleFunc(path, methodNotAllowed)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	apierr.WriteError(w, apierr.NewMethodNotAllowedError())
}
