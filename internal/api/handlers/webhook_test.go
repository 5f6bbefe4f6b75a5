package handlers

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/AhmadHamada1/cal.com/internal/calendar"
	"github.com/AhmadHamada1/cal.com/internal/storage"
	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

func newWebhookHandler(t *testing.T) http.HandlerFunc {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	service := calendar.NewWebhookService(
		storage.NewSubscriptionRepository(db),
		storage.NewSelectedCalendarRepository(db),
		storage.NewEventRepository(db),
		nil, nil, nil, nil,
		"shared-secret",
		calendar.AppInfo{Type: models.ProviderGoogle, Name: "Google Calendar"},
	)
	return GoogleWebhook(service)
}

func webhookRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/google-calendar", nil)
	req.Header.Set("X-Goog-Channel-Id", "chan-1")
	req.Header.Set("X-Goog-Channel-Token", token)
	req.Header.Set("X-Goog-Channel-Expiration", "Tue, 29 Sep 2026 10:00:00 GMT")
	req.Header.Set("X-Goog-Message-Number", "1")
	req.Header.Set("X-Goog-Resource-Id", "res-1")
	req.Header.Set("X-Goog-Resource-State", "exists")
	req.Header.Set("X-Goog-Resource-Uri", "https://www.googleapis.com/calendar/v3/calendars/primary/events")
	return req
}

func TestGoogleWebhookMissingHeaders(t *testing.T) {
	handler := newWebhookHandler(t)

	req := webhookRequest("shared-secret")
	req.Header.Del("X-Goog-Resource-Id")

	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing header, got %d", rec.Code)
	}
}

func TestGoogleWebhookBadToken(t *testing.T) {
	handler := newWebhookHandler(t)

	rec := httptest.NewRecorder()
	handler(rec, webhookRequest("wrong-token"))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for bad token, got %d", rec.Code)
	}
}

func TestGoogleWebhookUnknownChannelAcknowledged(t *testing.T) {
	handler := newWebhookHandler(t)

	// No subscription or selected calendar matches the channel. The
	// provider must still get a 2xx so it stops retrying.
	rec := httptest.NewRecorder()
	handler(rec, webhookRequest("shared-secret"))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for unknown channel, got %d", rec.Code)
	}
}
