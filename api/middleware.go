package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jmcleod/lockbox/internal/logger"
	"github.com/jmcleod/lockbox/internal/util"
	"github.com/jmcleod/lockbox/vault"
)

type contextKey int

const sessionKey contextKey = iota

const sessionTokenBytes = 32

func newSessionToken() (string, error) {
	return util.RandomToken(sessionTokenBytes)
}

// AuthMiddleware resolves the bearer token to the current session and stores
// it on the request context. Every authenticated request resets the
// session's idle timer.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		a.mu.Lock()
		current, session := a.token, a.session
		a.mu.Unlock()

		if session == nil || subtle.ConstantTimeCompare([]byte(token), []byte(current)) != 1 {
			writeError(w, http.StatusUnauthorized, "vault is locked")
			return
		}
		if err := session.Touch(); err != nil {
			writeError(w, http.StatusUnauthorized, "vault is locked")
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		l := logger.FromContext(ctx)
		ctx = (&logger.Logger{Logger: l.With().Str("vault_id", session.VaultID()).Logger()}).WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func sessionFromContext(ctx context.Context) *vault.Session {
	s, _ := ctx.Value(sessionKey).(*vault.Session)
	return s
}

// RequestLogger attaches a request-scoped logger to the context carrying
// the request id, when one was assigned upstream, and the method.
func (a *API) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lc := a.log.With().Str("method", r.Method)
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			lc = lc.Str("request_id", id)
		}
		l := &logger.Logger{Logger: lc.Logger()}
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

// RateLimit rejects requests beyond the configured rate with 429.
func (a *API) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.limiter != nil && !a.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders sets standard security response headers. The API only
// serves JSON so the content security policy is strict.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
