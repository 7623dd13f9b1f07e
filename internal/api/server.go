package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/systemofatown/intake-server/internal/auth"
	"github.com/systemofatown/intake-server/internal/config"
	"github.com/systemofatown/intake-server/internal/intake"
	"github.com/systemofatown/intake-server/internal/ratelimit"
	"github.com/systemofatown/intake-server/internal/routing"
	"github.com/systemofatown/intake-server/internal/storage"
	"github.com/systemofatown/intake-server/internal/validation"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// RESTServer represents the REST API server
type RESTServer struct {
	config    *config.Config
	store     storage.Store
	auth      *auth.JWTManager
	validator *validation.Validator
	router    chi.Router
	server    *http.Server

	itemRouter *routing.Router
	counters   ratelimit.CounterStore
	notifier   *intake.Notifier
	bus        *intake.Bus
}

// NewRESTServer creates a new REST API server
func NewRESTServer(cfg *config.Config, store storage.Store, counters ratelimit.CounterStore, notifier *intake.Notifier, bus *intake.Bus) *RESTServer {
	s := &RESTServer{
		config:     cfg,
		store:      store,
		auth:       auth.NewJWTManager(&cfg.JWT),
		validator:  validation.NewValidator(),
		router:     chi.NewRouter(),
		itemRouter: routing.NewRouter(store, notifier),
		counters:   counters,
		notifier:   notifier,
		bus:        bus,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authMiddleware is the authentication middleware
func (s *RESTServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		// Parse Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		// Validate token
		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		// Add claims to context
		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminMiddleware requires a platform admin token; it runs after
// authMiddleware
func (s *RESTServer) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || !claims.IsPlatformAdmin {
			s.respondError(w, http.StatusForbidden, "platform admin required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware gates functionName with the configured window
func (s *RESTServer) rateLimitMiddleware(functionName string) func(http.Handler) http.Handler {
	if !s.config.RateLimit.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return ratelimit.Middleware(s.counters, ratelimit.Options{
		FunctionName:  functionName,
		MaxPerWindow:  s.config.RateLimit.MaxPerWindow,
		WindowSeconds: s.config.RateLimit.WindowSeconds,
		KeyFn:         rateLimitKey,
	})
}

// rateLimitKey derives the counter key segments from the request's claims
func rateLimitKey(r *http.Request) (string, string) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		return "", ""
	}

	tenantID := ""
	if claims.TenantID != nil {
		tenantID = claims.TenantID.String()
	} else if claims.IsPlatformAdmin {
		// Admins have no active tenant; scope their quota per user
		tenantID = claims.UserID.String()
	}

	return tenantID, claims.UserID.String()
}

// claimsFromContext returns the authenticated claims, or nil
func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}
