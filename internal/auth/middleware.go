package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/pestward/pestward/internal/platform/httpx"
	"github.com/pestward/pestward/internal/shared"
)

// Middleware authenticates API requests and injects the principal into context.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate rejects requests without a valid API key.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Service == nil {
			httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "authentication not configured")
			return
		}
		presented := presentedKey(r)
		if presented == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing api key")
			return
		}
		principal, err := m.Service.Verify(r.Context(), presented)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("api key rejected", slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid api key")
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func presentedKey(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
	}
	return r.Header.Get("X-API-Key")
}
