// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"github.com/gorilla/mux"

	"github.com/AhmadHamada1/cal.com/internal/api/handlers"
	"github.com/AhmadHamada1/cal.com/internal/api/middleware"
	"github.com/AhmadHamada1/cal.com/internal/calendar"
	"github.com/AhmadHamada1/cal.com/internal/storage"
	"github.com/AhmadHamada1/cal.com/internal/websocket"
)

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(
	db *storage.DB,
	hub *websocket.Hub,
	subscriptionRepo *storage.SubscriptionRepository,
	events storage.EventStore,
	subscriptionService *calendar.SubscriptionService,
	webhookService *calendar.WebhookService,
) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	// Provider push endpoint
	r.HandleFunc("/api/webhook/google-calendar", handlers.GoogleWebhook(webhookService)).Methods("POST")

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(db)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(subscriptionRepo, events, hub)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(hub)).Methods("GET")

	// Subscription endpoints
	api.HandleFunc("/subscriptions", handlers.ListSubscriptions(subscriptionRepo)).Methods("GET")
	api.HandleFunc("/subscriptions/reconcile", handlers.ReconcileSubscription(subscriptionService)).Methods("POST")
	api.HandleFunc("/subscriptions/{id}/deactivate", handlers.DeactivateSubscription(subscriptionService, subscriptionRepo)).Methods("POST")

	// Availability endpoint
	api.HandleFunc("/availability", handlers.GetAvailability(events)).Methods("GET")

	return r
}
