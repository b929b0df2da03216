package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"flashnotes-backend/internal/handlers"
	"flashnotes-backend/internal/metrics"
	"flashnotes-backend/internal/middleware"
	"flashnotes-backend/internal/websocket"
)

const (
	limiterKeys = 10000
	limiterTTL  = 10 * time.Minute
)

func New(
	logger *zap.Logger,
	collector *metrics.Collector,
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	flashcardHandler *handlers.FlashcardHandler,
	userHandler *handlers.UserHandler,
	jobHandler *handlers.JobHandler,
	billingHandler *handlers.BillingHandler,
	healthHandler *handlers.HealthHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	rateLimitPerMin int,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(collector.Middleware)
	r.Use(middleware.CORS(frontendURL))

	authLimiter := middleware.NewRateLimiter(10, limiterKeys, limiterTTL)
	previewLimiter := middleware.NewRateLimiter(5, limiterKeys, limiterTTL)
	apiLimiter := middleware.NewRateLimiter(rateLimitPerMin, limiterKeys, limiterTTL)

	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", collector.Handler())

	// Paths the first version of the app exposed.
	r.Group(func(r chi.Router) {
		r.Use(jwtAuth.Middleware)
		r.Use(apiLimiter.Middleware)
		r.Post("/generate-flashcards", flashcardHandler.Generate)
		r.Get("/flashcards", flashcardHandler.List)
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Flashcard Routes ────
		r.Route("/flashcards", func(r chi.Router) {
			r.With(previewLimiter.Middleware).Post("/preview", flashcardHandler.Preview)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Use(apiLimiter.Middleware)
				r.Get("/", flashcardHandler.List)
				r.Post("/generate", flashcardHandler.Generate)
				r.Post("/jobs", flashcardHandler.CreateJob)
			})
		})

		// ──── User & Job Routes ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/user/me", userHandler.GetMe)
			r.Get("/jobs/{id}", jobHandler.GetJob)
			r.Get("/billing/payments", billingHandler.ListPayments)
		})

		// ──── Billing (signed by the payment provider) ────
		r.Post("/billing/webhook", billingHandler.Webhook)

		// ──── WebSocket (token in query string) ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
