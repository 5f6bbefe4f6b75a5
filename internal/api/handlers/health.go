package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/AhmadHamada1/cal.com/internal/storage"
	"github.com/AhmadHamada1/cal.com/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping() == nil

		status := "healthy"
		if !dbConnected {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response)
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	SubscriptionsByStatus map[string]int `json:"subscriptions_by_status"`
	CachedEvents          int            `json:"cached_events"`
	ConnectedClients      int            `json:"connected_clients"`
}

// Status returns a handler that provides system status information.
func Status(subscriptions *storage.SubscriptionRepository, events storage.EventStore, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		counts, err := subscriptions.CountByStatus(ctx)
		if err != nil {
			counts = map[string]int{}
		}

		eventCount, err := events.CountEvents(ctx)
		if err != nil {
			eventCount = 0
		}

		response := StatusResponse{
			SubscriptionsByStatus: counts,
			CachedEvents:          eventCount,
			ConnectedClients:      hub.ClientCount(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
