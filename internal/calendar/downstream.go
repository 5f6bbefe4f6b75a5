package calendar

import (
	"context"
	"log"

	"github.com/AhmadHamada1/cal.com/internal/provider"
)

// LogDownstreamSyncer is the default downstream collaborator. It logs the
// forwarded delta; a real deployment plugs in the event-sync pipeline.
type LogDownstreamSyncer struct{}

// SyncDownstream implements DownstreamSyncer.
func (LogDownstreamSyncer) SyncDownstream(ctx context.Context, events []provider.Event, app AppInfo) error {
	log.Printf("Forwarding %d events downstream for app %s (%s)", len(events), app.Name, app.Type)
	return nil
}

var _ DownstreamSyncer = (*LogDownstreamSyncer)(nil)
