package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

// WatchConfig carries the webhook endpoint details a Google push channel
// is registered against.
type WatchConfig struct {
	// CallbackURL is the public HTTPS address Google delivers push
	// notifications to.
	CallbackURL string
	// ChannelToken is the shared secret echoed back on every notification.
	ChannelToken string
	// EventWindow bounds the full fetch when no sync token is available.
	EventWindow time.Duration
}

// GoogleClient implements Client on top of the Google Calendar API.
type GoogleClient struct {
	service *calendar.Service
	cfg     WatchConfig
}

// NewGoogleClient builds a Google Calendar client from an OAuth token
// source. Token refresh is handled by the oauth2 transport.
func NewGoogleClient(ctx context.Context, ts oauth2.TokenSource, cfg WatchConfig) (*GoogleClient, error) {
	service, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	if cfg.EventWindow <= 0 {
		cfg.EventWindow = 30 * 24 * time.Hour
	}
	return &GoogleClient{service: service, cfg: cfg}, nil
}

// Watch registers a web_hook push channel for the calendar.
func (g *GoogleClient) Watch(ctx context.Context, calendarID string) (*models.ProviderChannel, error) {
	channel := &calendar.Channel{
		Id:      uuid.NewString(),
		Type:    "web_hook",
		Address: g.cfg.CallbackURL,
		Token:   g.cfg.ChannelToken,
	}

	created, err := g.service.Events.Watch(calendarID, channel).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("watching calendar %s: %w", calendarID, err)
	}

	// Google reports channel expiration as epoch milliseconds.
	expiration := time.Unix(0, created.Expiration*int64(time.Millisecond)).UTC()

	return &models.ProviderChannel{
		ID:          created.Id,
		Kind:        created.Kind,
		ResourceID:  created.ResourceId,
		ResourceURI: created.ResourceUri,
		Expiration:  expiration,
	}, nil
}

// StopWatch tears down a push channel. A 404 from Google means the
// channel is already gone and is not an error.
func (g *GoogleClient) StopWatch(ctx context.Context, channelID, resourceID string) error {
	err := g.service.Channels.Stop(&calendar.Channel{
		Id:         channelID,
		ResourceId: resourceID,
	}).Context(ctx).Do()
	if err != nil {
		if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 404 {
			return nil
		}
		return fmt.Errorf("stopping channel %s: %w", channelID, err)
	}
	return nil
}

// OnWatchedCalendarChange fetches the event delta for the calendar when an
// events-sync action is requested. The availability-cache action has no
// provider-side work here; it is applied by the caller against the
// returned delta.
func (g *GoogleClient) OnWatchedCalendarChange(ctx context.Context, change WatchedCalendarChange) (*ChangeResult, error) {
	result := &ChangeResult{}

	wantsEvents := false
	for _, action := range change.SyncActions {
		if action == ActionEventsSync {
			wantsEvents = true
		}
	}
	if !wantsEvents {
		return result, nil
	}

	call := g.service.Events.List(change.CalendarID).
		Context(ctx).
		SingleEvents(true).
		ShowDeleted(true).
		MaxResults(250)

	if change.SyncToken != "" {
		call = call.SyncToken(change.SyncToken)
	} else {
		now := time.Now().UTC()
		call = call.TimeMin(now.Format(time.RFC3339)).
			TimeMax(now.Add(g.cfg.EventWindow).Format(time.RFC3339))
	}

	pageToken := ""
	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		events, err := call.Do()
		if err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 410 {
				// Sync token expired; the next pass performs a full fetch.
				log.Printf("Sync token expired for calendar %s, requesting full sync", change.CalendarID)
				change.SyncToken = ""
				return g.OnWatchedCalendarChange(ctx, change)
			}
			return nil, fmt.Errorf("listing events for %s: %w", change.CalendarID, err)
		}

		for _, item := range events.Items {
			if item.Status == "cancelled" {
				result.DeletedEventIDs = append(result.DeletedEventIDs, item.Id)
				continue
			}
			ev, err := convertGoogleEvent(item)
			if err != nil {
				log.Printf("Skipping unparseable event %s: %v", item.Id, err)
				continue
			}
			result.EventsToSync = append(result.EventsToSync, *ev)
		}

		if events.NextPageToken == "" {
			result.NextSyncToken = events.NextSyncToken
			break
		}
		pageToken = events.NextPageToken
	}

	return result, nil
}

func convertGoogleEvent(item *calendar.Event) (*Event, error) {
	start, err := parseEventTime(item.Start)
	if err != nil {
		return nil, fmt.Errorf("parsing start: %w", err)
	}
	end, err := parseEventTime(item.End)
	if err != nil {
		return nil, fmt.Errorf("parsing end: %w", err)
	}

	transparency := item.Transparency
	if transparency == "" {
		// Google omits transparency for busy events.
		transparency = models.TransparencyOpaque
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("serializing event: %w", err)
	}

	return &Event{
		ID:           item.Id,
		Summary:      item.Summary,
		Start:        start,
		End:          end,
		Status:       item.Status,
		Transparency: transparency,
		Raw:          string(raw),
	}, nil
}

func parseEventTime(edt *calendar.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, fmt.Errorf("missing event time")
	}
	if edt.DateTime != "" {
		return time.Parse(time.RFC3339, edt.DateTime)
	}
	if edt.Date != "" {
		// All-day events carry a date only.
		return time.Parse("2006-01-02", edt.Date)
	}
	return time.Time{}, fmt.Errorf("event time has neither dateTime nor date")
}

var _ Client = (*GoogleClient)(nil)
