package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/lastword/internal/api/presenter"
	"github.com/darmiel/lastword/internal/session"
)

// OwnerAuth only lets requests through that carry a valid owner session token.
func OwnerAuth(sessions *session.Manager) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			tokenStr := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims, err := sessions.Authorize(tokenStr)
			switch {
			case errors.Is(err, session.ErrInsufficientRoles):
				presenter.Error(w, r, err.Error(), http.StatusForbidden)
				return
			case errors.Is(err, session.ErrMissingToken):
				presenter.Error(w, r, err.Error(), http.StatusUnauthorized)
				return
			case err != nil:
				log.Ctx(r.Context()).Debug().Err(err).Msg("rejected session token")
				presenter.Error(w, r, session.ErrInvalidToken.Error(), http.StatusUnauthorized)
				return
			}

			l := log.Ctx(r.Context()).With().Str("session_sub", claims.Subject).Logger()
			next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		})
	}
}
