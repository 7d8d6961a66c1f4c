package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ameer851/axix-finance-sub002/internal/app/auth"
)

var errMissingToken = errors.New("missing bearer token")

// openPaths are reachable without a bearer token.
var openPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
	"/plans":   true,
}

// AuthMiddleware parses the Authorization header and stores the resulting
// actor on the request context. Catalog reads stay open; everything else
// requires a valid token.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if openPaths[r.URL.Path] || strings.HasPrefix(r.URL.Path, "/plans/") {
				next.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, errMissingToken)
				return
			}
			actor, err := auth.ParseActor(strings.TrimPrefix(header, "Bearer "), jwtSecret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithActor(r.Context(), actor)))
		})
	}
}

// CORSMiddleware answers preflight requests and sets the standard headers.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
