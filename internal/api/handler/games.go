package handler

import (
	"net/http"

	"github.com/mcoot/rpslsgame/internal/api/request"
	"github.com/mcoot/rpslsgame/internal/api/response"
	"github.com/mcoot/rpslsgame/internal/services/session"
)

// GameHandler serves read-only game views
type GameHandler struct {
	sessions *session.Manager
}

// NewGameHandler creates a new game handler
func NewGameHandler(sessions *session.Manager) *GameHandler {
	return &GameHandler{sessions: sessions}
}

// List handles GET /api/v1/games
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	pending, err := h.sessions.ListPending(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PendingGamesFromSession(pending))
}

// Get handles GET /api/v1/games/{address}. The ledger is read on every request.
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	addr, err := request.GameAddress(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	view, err := h.sessions.Load(r.Context(), addr)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.GameFromView(view))
}

// Health handles GET /api/v1/health
func (h *GameHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{
		Status:  "ok",
		Account: h.sessions.Account().Checksum(),
	})
}
