package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AhmadHamada1/cal.com/internal/api/middleware"
	"github.com/AhmadHamada1/cal.com/internal/storage"
)

// BusyInterval is one busy window derived from the event cache.
type BusyInterval struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Summary *string   `json:"summary,omitempty"`
}

// GetAvailability returns busy intervals for a subscription within
// [start, end). Only opaque, non-cancelled events that have not yet
// ended count.
func GetAvailability(events storage.EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		subscriptionID := q.Get("subscription")
		if subscriptionID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "subscription is required")
			return
		}

		start, err := time.Parse(time.RFC3339, q.Get("start"))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "start must be RFC3339")
			return
		}
		end, err := time.Parse(time.RFC3339, q.Get("end"))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "end must be RFC3339")
			return
		}
		if !end.After(start) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "end must be after start")
			return
		}

		cached, err := events.GetEventsForAvailability(r.Context(), subscriptionID, start, end)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query events")
			return
		}

		busy := make([]BusyInterval, 0, len(cached))
		for _, e := range cached {
			busy = append(busy, BusyInterval{Start: e.Start, End: e.End, Summary: e.Summary})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(busy)
	}
}
