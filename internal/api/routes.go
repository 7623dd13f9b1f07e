package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		// Users
		r.Route("/users", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListUsers)
			r.Post("/", s.HandleCreateUser)
			r.Get("/me", s.HandleGetCurrentUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetUser)
				r.Put("/", s.HandleUpdateUser)
			})
		})

		// Tenants
		r.Route("/tenants", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.adminMiddleware)
			r.Get("/", s.HandleListTenants)
			r.Post("/", s.HandleCreateTenant)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetTenant)
				r.Put("/", s.HandleUpdateTenant)
				r.Post("/suspend", s.HandleSuspendTenant)
				r.Post("/reactivate", s.HandleReactivateTenant)
			})
		})

		// Inbound mailbox lookup (tenant scoped)
		r.Route("/inbound/mailbox", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleGetMailbox)
		})

		// Inbound items (shared intake area, platform admins only)
		r.Route("/inbound/items", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.adminMiddleware)
			r.Get("/", s.HandleListInboundItems)
			r.With(s.rateLimitMiddleware("inbound-capture")).
				Post("/", s.HandleCaptureInboundItem)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetInboundItem)
				r.Get("/links", s.HandleListInboundItemLinks)
				r.With(s.rateLimitMiddleware("inbound-route")).
					Post("/route", s.HandleRouteInboundItem)
				r.Post("/status", s.HandleUpdateInboundItemStatus)
			})
		})

		// Routing rules
		r.Route("/routing-rules", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.adminMiddleware)
			r.Get("/", s.HandleListRoutingRules)
			r.Post("/", s.HandleCreateRoutingRule)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetRoutingRule)
				r.Put("/", s.HandleUpdateRoutingRule)
				r.Delete("/", s.HandleDeleteRoutingRule)
			})
		})

		// Postservice mandates
		r.Route("/mandates", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.adminMiddleware)
			r.Post("/", s.HandleCreateMandate)
			r.Get("/active", s.HandleGetActiveMandate)
			r.Post("/{id}/revoke", s.HandleRevokeMandate)
		})

		// Documents (tenant scoped)
		r.Route("/documents", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListDocuments)
			r.Get("/{id}", s.HandleGetDocument)
		})

		// Events
		r.Route("/events", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListEvents)
		})

		// Intake pipeline state
		r.Route("/intake", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.adminMiddleware)
			r.Get("/state", s.HandleGetIntakeState)
			r.Post("/reset", s.HandleResetIntakeState)
		})
	})
}
