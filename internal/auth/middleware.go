package auth

import (
	"net/http"
	"strings"

	"github.com/fdg312/report-hub/internal/config"
	"github.com/fdg312/report-hub/internal/problem"
	"github.com/fdg312/report-hub/internal/userctx"
)

// Middleware — middleware для определения пользователя запроса.
type Middleware struct {
	config  *config.Config
	service *Service
}

func NewMiddleware(cfg *config.Config, service *Service) *Middleware {
	return &Middleware{
		config:  cfg,
		service: service,
	}
}

// Identify кладёт имя пользователя в контекст запроса.
// Bearer токен (если передан) проверяется; иначе берётся заголовок
// X-User-Name, иначе anonymous. Невалидный Bearer токен всегда 401.
func (m *Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		if authHeader != "" {
			userName, err := m.authenticateHeader(authHeader)
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, "unauthorized",
					"Unauthorized", "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(userctx.WithUser(r.Context(), userName)))
			return
		}

		if userName := strings.TrimSpace(r.Header.Get("X-User-Name")); userName != "" {
			next.ServeHTTP(w, r.WithContext(userctx.WithUser(r.Context(), userName)))
			return
		}

		if m.config.AuthRequired {
			problem.Write(w, r, http.StatusUnauthorized, "unauthorized",
				"Unauthorized", "Authentication required")
			return
		}

		next.ServeHTTP(w, r.WithContext(userctx.WithUser(r.Context(), userctx.AnonymousUser)))
	})
}

func (m *Middleware) authenticateHeader(authHeader string) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrInvalidToken
	}

	return m.service.VerifyJWT(parts[1])
}

func isPublicPath(path string) bool {
	return path == "/healthz" || strings.HasPrefix(path, "/api/v1/auth/")
}
