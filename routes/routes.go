package routes

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/yussieik/pazpaz-sub015/controllers"
	"github.com/yussieik/pazpaz-sub015/middleware"
)

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "pazpaz-payments",
	})
}

func InitRouter() *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint for Docker health checks (root level)
	r.Handle("/health", http.HandlerFunc(healthHandler)).Methods(http.MethodGet)

	// Add CORS middleware - origins from CORS_ALLOWED_ORIGINS (comma-separated) or defaults
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	origins := []string{
		"https://app.pazpaz.io",
		"http://localhost:3000", "http://localhost:8080", "http://127.0.0.1:3000", "http://127.0.0.1:8080",
	}
	if originsEnv != "" {
		parts := strings.Split(originsEnv, ",")
		for _, p := range parts {
			if o := strings.TrimSpace(p); o != "" {
				origins = append(origins, o)
			}
		}
	}
	r.Use(func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-CRON-KEY", "X-Requested-With", "X-Request-ID"}),
			handlers.AllowCredentials(),
		)(next)
	})

	api := r.PathPrefix("/v1").Subrouter()

	// Catch-all OPTIONS handler for CORS preflight
	api.PathPrefix("/").HandlerFunc(optionsHandler).Methods(http.MethodOptions)

	// Cron limiter: 1000/hour per IP
	cronLimiter := middleware.NewIPRateLimiter(1000, time.Hour)
	// Webhook limiter: 500/hour per IP, whitelist for known provider egress addresses
	webhookLimiter := middleware.NewWebhookLimiter(500, time.Hour, []string{"127.0.0.1"})

	// Provider callbacks: the payload is authenticated by HMAC inside the handler,
	// so these stay outside the JWT middleware.
	api.Handle("/callback/{provider}", webhookLimiter.Middleware(http.HandlerFunc(controllers.ProviderWebhookHandler))).Methods(http.MethodPost)

	// Cron endpoints (protected via X-CRON-KEY header)
	api.Handle("/cron/poll-pending", cronLimiter.Middleware(http.HandlerFunc(controllers.CronPollPendingHandler))).Methods(http.MethodPost)
	api.Handle("/cron/expire-pending", cronLimiter.Middleware(http.HandlerFunc(controllers.CronExpirePendingHandler))).Methods(http.MethodPost)

	// Authenticated workspace endpoints
	api.Handle("/payments", middleware.AuthMiddleware(http.HandlerFunc(controllers.CreatePaymentHandler))).Methods(http.MethodPost)
	api.Handle("/bookings/{id}/payments", middleware.AuthMiddleware(http.HandlerFunc(controllers.ListBookingPaymentsHandler))).Methods(http.MethodGet)

	// Health check endpoint under the API prefix
	api.Handle("/health", http.HandlerFunc(healthHandler)).Methods(http.MethodGet)

	return r
}
