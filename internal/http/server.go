// Package http exposes the envelope accounting API as JSON over HTTP.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"finanzas/internal/auth"
	"finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/security"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/services"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the routes. RateStore may be nil to disable
// rate limiting.
type Deps struct {
	Auth       *auth.Service
	Ledger     *services.LedgerService
	Envelopes  *services.EnvelopeService
	Transfers  *services.TransferEngine
	Categories *services.CategoryService
	Storage    Pinger
	RateStore  ratelimit.Store
	Logger     *log.Logger
}

type Options struct {
	CORSOrigins   []string
	SecureCookies bool
	// TrustedProxies are CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string
}

type Server struct {
	http.Server
	deps     Deps
	opts     Options
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer wires the router and returns a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		deps:     deps,
		opts:     opts,
		detector: security.NewDetector(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			deps.Logger.Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(trace.NewMiddleware(s.deps.Logger.WithComponent(log.ComponentHTTP), s.detector.ExtractClientIP).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondStatus(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		if s.deps.RateStore != nil {
			r.Use(ratelimit.Middleware(s.deps.RateStore, s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
				respondStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
			}))
		}

		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/register", s.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(s.deps.Auth.Middleware(respondError))

			r.Get("/me", s.handleMe)

			r.Get("/savings", s.handleListEnvelopes)
			r.Post("/savings", s.handleCreateEnvelope)
			r.Delete("/savings/{id}", s.handleDeleteEnvelope)
			r.Put("/savings/{id}/deposit", s.handleDeposit)
			r.Put("/savings/{id}/withdraw", s.handleWithdraw)

			r.Get("/transactions", s.handleListTransactions)
			r.Post("/transactions", s.handleCreateTransaction)
			r.Delete("/transactions/{id}", s.handleDeleteTransaction)
			r.Get("/stats", s.handleStats)

			r.Get("/categories", s.handleListCategories)
			r.Post("/categories", s.handleCreateCategory)
			r.Delete("/categories/{id}", s.handleDeleteCategory)
			r.Get("/category-budgets", s.handleListBudgets)
			r.Post("/category-budgets", s.handleSetBudgets)
		})
	})

	return r
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Only the first call has an effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Storage.Ping(ctx); err != nil {
			log.FromContext(r.Context()).Warn("Readiness check failed", log.FieldError, err)
			respondStatus(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
