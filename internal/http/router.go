package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/trek-bookings/internal/auth"
	"github.com/robertarktes/trek-bookings/internal/idempotency"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"github.com/robertarktes/trek-bookings/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, verifier *auth.Verifier, rl *rateLimit.RateLimiter, limits RateLimits, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", h.Healthz)
		r.Get("/readyz", h.Readyz)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(verifier))
			r.Use(RateLimitMiddleware(rl, limits, logger))

			r.Route("/treks", func(r chi.Router) {
				r.Get("/", h.ListTreks)
				r.Get("/upcoming", h.UpcomingTreks)
				r.Get("/{id}", h.GetTrek)

				r.Group(func(r chi.Router) {
					r.Use(RequireAdmin)
					r.Post("/", h.CreateTrek)
					r.Put("/{id}", h.UpdateTrek)
					r.Delete("/{id}", h.DeleteTrek)
				})
			})

			r.Route("/bookings", func(r chi.Router) {
				r.Use(RequireAuth)
				r.Get("/", h.ListBookings)
				r.With(idemp.Middleware(userScope, fail)).Post("/", h.CreateBooking)
				r.Get("/{id}", h.GetBooking)
				r.Put("/{id}", h.UpdateBooking)
				r.Delete("/{id}", h.CancelBooking)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Use(RequireAuth)
				r.Get("/", h.ListNotifications)
				r.With(RequireAdmin).Post("/", h.CreateNotification)
				r.Put("/read-all", h.MarkAllNotificationsRead)
				r.Put("/{id}/read", h.MarkNotificationRead)
				r.Delete("/{id}", h.DeleteNotification)
			})

			r.Post("/contact", h.Contact)
			r.With(RequireAdmin).Get("/users", h.ListUsers)
		})
	})

	return r
}

// userScope keys idempotency records by caller so two users cannot collide.
func userScope(r *http.Request) string {
	id, _ := identityFrom(r.Context())
	return id.UserID.String()
}
