// Package api exposes a single vault over a local REST interface. At most one
// session is unlocked at a time; it is addressed by a random bearer token and
// locks itself after the vault's idle timeout.
package api

import (
	_ "embed"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
	"golang.org/x/time/rate"

	"github.com/jmcleod/lockbox/internal/logger"
	"github.com/jmcleod/lockbox/vault"
)

const (
	defaultRequestRate  = 10
	defaultRequestBurst = 20
	defaultMaxBodyBytes = 8 << 20
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	vault   *vault.Vault
	log     *logger.Logger
	audit   *auditLogger
	limiter *rate.Limiter
	maxBody int64

	mu      sync.Mutex
	token   string
	session *vault.Session
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the logger for request errors and audit events.
func WithLogger(l *logger.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

// WithRateLimit sets the request rate (per second) and burst allowed across
// all clients.
func WithRateLimit(r float64, burst int) Option {
	return func(a *API) {
		a.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithAlertFunc registers a callback for unlock-failure spikes and bulk
// exports.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.audit.metrics = newMetricsCollector(fn)
	}
}

// WithMaxBodyBytes caps request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBody = n
		}
	}
}

// New creates a new API instance serving v.
func New(v *vault.Vault, opts ...Option) *API {
	a := &API{
		vault:   v,
		log:     logger.Nop(),
		limiter: rate.NewLimiter(defaultRequestRate, defaultRequestBurst),
		maxBody: defaultMaxBodyBytes,
		audit:   &auditLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.audit.log = a.log.Component("audit")
	a.log = a.log.Component("api")
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(a.RequestLogger)
	r.Use(a.RateLimit)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Get("/vault", a.VaultStatus)
	r.Post("/vault", a.CreateVault)
	r.Post("/vault/unlock", a.UnlockVault)

	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Post("/vault/lock", a.LockVault)
		r.Get("/entries", a.ListEntries)
		r.Post("/entries", a.CreateEntry)
		r.Get("/entries/{entryID}", a.GetEntry)
		r.Patch("/entries/{entryID}", a.UpdateEntry)
		r.Delete("/entries/{entryID}", a.DeleteEntry)
		r.Post("/export", a.ExportVault)
		r.Post("/import", a.ImportVault)
	})

	return r
}

// Close locks the current session, if any.
func (a *API) Close() {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s != nil {
		s.Lock()
	}
}

// bindSession makes s the current session and returns its bearer token.
// The token is revoked when s locks.
func (a *API) bindSession(s *vault.Session) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		s.Lock()
		return "", err
	}

	a.mu.Lock()
	prev := a.session
	a.token = token
	a.session = s
	a.mu.Unlock()

	if prev != nil && prev != s {
		prev.Lock()
	}
	s.OnLock(func() { a.unbindSession(s) })
	return token, nil
}

func (a *API) unbindSession(s *vault.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == s {
		a.session = nil
		a.token = ""
	}
}
