package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/events"
)

// NotificationService turns unread-increase and delivery-failure events into
// a fire-and-forget attention ping against an optional webhook. Webhook
// failures are logged and dropped; nothing here affects ticket state.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	webhookURL string
	client     *http.Client
}

// NotificationDependencies bundles collaborators for NotificationService.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	WebhookURL string
}

// NewNotificationService constructs the service; call RegisterHandlers to
// attach it to the dispatcher.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		webhookURL: deps.WebhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// RegisterHandlers subscribes the service to the events it reacts to.
func (s *NotificationService) RegisterHandlers() {
	s.dispatcher.Subscribe(events.EventUnreadIncreased, s.onUnreadIncreased)
	s.dispatcher.Subscribe(events.EventMessageFailed, s.onMessageFailed)
}

func (s *NotificationService) onUnreadIncreased(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UnreadIncreasedPayload)
	if !ok {
		return nil
	}
	s.logger.Info("unread increased",
		zap.String("ticket_id", event.TicketID),
		zap.String("side", payload.Side),
		zap.Int("count", payload.Count),
	)
	s.ping(event.TicketID, "unread", payload.Side)
	return nil
}

func (s *NotificationService) onMessageFailed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MessageFailedPayload)
	if !ok {
		return nil
	}
	s.logger.Warn("message delivery failed",
		zap.String("ticket_id", event.TicketID),
		zap.String("message_id", payload.MessageID),
		zap.Int("retry_count", payload.RetryCount),
	)
	return nil
}

// ping posts to the sound webhook in the background when one is configured.
func (s *NotificationService) ping(ticketID, kind, side string) {
	if s.webhookURL == "" {
		return
	}
	body, err := json.Marshal(map[string]string{
		"ticket_id": ticketID,
		"kind":      kind,
		"side":      side,
	})
	if err != nil {
		return
	}
	go func() {
		resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			s.logger.Debug("sound webhook unreachable", zap.Error(err))
			return
		}
		resp.Body.Close()
	}()
}
