package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/musicbox/service/internal/identity"
	"github.com/musicbox/service/internal/response"
)

// RequireAuth returns middleware that validates the Bearer credential with
// provider and injects the resulting identity into the request context.
// A missing credential is 401; one that fails verification is 403.
func RequireAuth(provider identity.Provider, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				response.Unauthorized(w, "Access token required")
				return
			}

			id, err := provider.Authenticate(r.Context(), token)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("token verification failed")
				response.Forbidden(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
