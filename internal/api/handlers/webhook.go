// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/AhmadHamada1/cal.com/internal/api/middleware"
	"github.com/AhmadHamada1/cal.com/internal/calendar"
)

// GoogleWebhook returns the handler for Google Calendar push
// notifications.
//
// The provider retries on non-2xx responses, so the status code decides
// retry behavior: ignorable conditions are acknowledged as success,
// authentication and consistency failures are surfaced as errors.
func GoogleWebhook(service *calendar.WebhookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := calendar.Notification{
			ChannelExpiration: r.Header.Get("X-Goog-Channel-Expiration"),
			ChannelID:         r.Header.Get("X-Goog-Channel-Id"),
			ChannelToken:      r.Header.Get("X-Goog-Channel-Token"),
			MessageNumber:     r.Header.Get("X-Goog-Message-Number"),
			ResourceID:        r.Header.Get("X-Goog-Resource-Id"),
			ResourceState:     r.Header.Get("X-Goog-Resource-State"),
			ResourceURI:       r.Header.Get("X-Goog-Resource-Uri"),
		}

		result, err := service.HandleNotification(r.Context(), n)
		if err != nil {
			writeWebhookError(w, n, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"message": "ok",
			"actions": result.Actions,
		})
	}
}

func writeWebhookError(w http.ResponseWriter, n calendar.Notification, err error) {
	var validationErr *calendar.ValidationError
	var authErr *calendar.AuthenticationError
	var consistencyErr *calendar.ConsistencyError
	var dependencyErr *calendar.DependencyError

	switch {
	case errors.As(err, &validationErr):
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())

	case calendar.IsIgnorable(err):
		// Acknowledge so the provider stops retrying.
		log.Printf("Ignorable webhook condition for channel %s: %v", n.ChannelID, err)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})

	case errors.As(err, &authErr):
		log.Printf("Webhook authentication failure for channel %s: %v", n.ChannelID, err)
		middleware.WriteError(w, http.StatusForbidden, middleware.ErrUnauthorized, "Invalid channel token")

	case errors.As(err, &consistencyErr):
		log.Printf("Webhook consistency error (channel %s, resource %s): %v", n.ChannelID, n.ResourceID, err)
		middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, err.Error())

	case errors.As(err, &dependencyErr):
		log.Printf("Webhook dependency error (channel %s, resource %s): %v", n.ChannelID, n.ResourceID, err)
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, err.Error())

	default:
		log.Printf("Unexpected webhook error (channel %s, resource %s): %v", n.ChannelID, n.ResourceID, err)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Internal server error")
	}
}
