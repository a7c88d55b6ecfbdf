package middleware

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/pkg/logger"
)

// SessionContext tags the request context with the {sessionId} route param so
// coordinators and their logs can be correlated with the page session.
func SessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionId")
		if sessionID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := internal.ContextWithSessionID(r.Context(), sessionID)
		ctx = logger.With(ctx, "session_id", sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
