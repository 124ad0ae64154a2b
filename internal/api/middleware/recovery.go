package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/rpslsgame/internal/api/apierr"
	"github.com/mcoot/rpslsgame/internal/middleware"
)

// Recovery turns a handler panic into a JSON 500
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
