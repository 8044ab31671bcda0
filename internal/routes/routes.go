package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/voltgrid/identity/internal/auth"
	"github.com/voltgrid/identity/internal/handlers"
	"github.com/voltgrid/identity/internal/middleware"
	"github.com/voltgrid/identity/internal/models"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	registrationHandler *handlers.RegistrationHandler,
	authHandler *handlers.AuthHandler,
	invitationHandler *handlers.InvitationHandler,
	userHandler *handlers.UserHandler,
	authorizer *auth.Authorizer,
) {
	registrationLimit := middleware.DefaultRegistrationRateLimit()
	loginLimit := middleware.DefaultLoginRateLimit()

	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(registrationLimit))
		r.Post("/register", registrationHandler.Register)
		r.Post("/verify", registrationHandler.Verify)
		r.Post("/verify/resend", registrationHandler.Resend)
		r.Post("/register/{id}/cancel", registrationHandler.Cancel)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(loginLimit))
		r.Post("/login", authHandler.Login)
		r.Post("/login/refresh", authHandler.Refresh)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(authorizer))

		r.Post("/logout", authHandler.Logout)
		r.Get("/users/me", userHandler.Me)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(authorizer, models.RoleAdmin))
			r.Post("/invitations", invitationHandler.Create)
		})
	})
}
