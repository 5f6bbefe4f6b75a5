package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/AhmadHamada1/cal.com/internal/api/middleware"
	"github.com/AhmadHamada1/cal.com/internal/calendar"
	"github.com/AhmadHamada1/cal.com/internal/storage"
	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

// Subscription request/response types

type ReconcileRequest struct {
	ExternalCalendarID string `json:"external_calendar_id"`
	ProviderType       string `json:"provider_type"`
	CredentialID       int64  `json:"credential_id"`
}

type SubscriptionResponse struct {
	ID                 string     `json:"id"`
	CredentialID       int64      `json:"credential_id"`
	ExternalCalendarID string     `json:"external_calendar_id"`
	ProviderType       string     `json:"provider_type"`
	Status             string     `json:"status"`
	ChannelID          *string    `json:"channel_id,omitempty"`
	ChannelExpiration  *time.Time `json:"channel_expiration,omitempty"`
	LastSyncAt         *time.Time `json:"last_sync_at,omitempty"`
	WatchError         *string    `json:"watch_error,omitempty"`
}

func subscriptionResponse(sub models.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                 sub.ID,
		CredentialID:       sub.CredentialID,
		ExternalCalendarID: sub.ExternalCalendarID,
		ProviderType:       sub.ProviderType,
		Status:             sub.Status,
		ChannelID:          sub.ProviderSubscriptionID,
		ChannelExpiration:  sub.ProviderExpiration,
		LastSyncAt:         sub.LastSyncAt,
		WatchError:         sub.WatchError,
	}
}

// ListSubscriptions returns all subscriptions.
func ListSubscriptions(repo *storage.SubscriptionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := repo.List(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query subscriptions")
			return
		}

		responses := make([]SubscriptionResponse, 0, len(subs))
		for _, sub := range subs {
			responses = append(responses, subscriptionResponse(sub))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(responses)
	}
}

// ReconcileSubscription finds or creates the single logical subscription
// for an external calendar.
func ReconcileSubscription(service *calendar.SubscriptionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReconcileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.ExternalCalendarID == "" || req.CredentialID == 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "external_calendar_id and credential_id are required")
			return
		}
		if req.ProviderType == "" {
			req.ProviderType = models.ProviderGoogle
		}

		sub, err := service.FindOrCreateActiveSubscription(r.Context(), req.ExternalCalendarID, req.ProviderType, req.CredentialID)
		if err != nil {
			if errors.Is(err, calendar.ErrIncompleteChannel) {
				middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, err.Error())
				return
			}
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to reconcile subscription")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(subscriptionResponse(*sub))
	}
}

// DeactivateSubscription sets a subscription INACTIVE.
func DeactivateSubscription(service *calendar.SubscriptionService, repo *storage.SubscriptionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		sub, err := repo.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query subscription")
			return
		}
		if sub == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Subscription not found")
			return
		}

		if err := service.Deactivate(r.Context(), id); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to deactivate subscription")
			return
		}

		sub.Status = models.SubscriptionStatusInactive
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(subscriptionResponse(*sub))
	}
}
