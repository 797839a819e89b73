package worker

import (
	"context"
	"time"

	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/service"
)

const enrichmentTimeout = 10 * time.Second

// StartEnrichmentWorker enriches freshly created leads with best-effort
// geolocation data. The lookup runs in the background so lead creation never
// waits on the network.
func StartEnrichmentWorker(dispatcher events.Dispatcher, leads *service.LeadService) {
	if leads == nil {
		return
	}
	dispatcher.Subscribe(events.EventLeadCreated, func(_ context.Context, event events.Event) error {
		leadID := event.LeadID
		if leadID == "" {
			return nil
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), enrichmentTimeout)
			defer cancel()
			leads.Enrich(ctx, leadID)
		}()
		return nil
	})
}
