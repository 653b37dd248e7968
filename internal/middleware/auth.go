package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/pizzaboard/internal/auth"
)

// publicPaths are paths that don't require authentication.
var publicPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// Auth returns a middleware that authenticates requests. Health check and metrics
// paths and CORS preflights are let through. The surface WebSocket is not
// exempt: it carries add and remove gestures.
func Auth(authenticator auth.Authenticator, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			info, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Warn("authentication failed",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeAuthError(w, err)
				return
			}

			logger.Debug("authentication successful",
				zap.String("subject", info.Subject),
				zap.String("method", string(info.Method)),
				zap.String("path", r.URL.Path),
			)

			next.ServeHTTP(w, r.WithContext(auth.WithAuthInfo(r.Context(), info)))
		})
	}
}

// isPublicPath matches public paths and their sub-paths, but not paths that
// only share a prefix (/healthz is not public).
func isPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}

	for p := range publicPaths {
		if strings.HasPrefix(path, p+"/") {
			return true
		}
	}

	return false
}

type authErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeAuthError writes a 401 with a WWW-Authenticate challenge matching
// the failure.
func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case errors.Is(err, auth.ErrInvalidAPIKey):
		w.Header().Set("WWW-Authenticate", "API-Key")
	default:
		w.Header().Set("WWW-Authenticate", `Basic realm="pizzaboard"`)
	}

	w.WriteHeader(http.StatusUnauthorized)

	_ = json.NewEncoder(w).Encode(authErrorResponse{
		Code:    http.StatusUnauthorized,
		Message: err.Error(),
	})
}
