package service

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/bot"
	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/observability"
	"github.com/spec-kit/support-chat/internal/sched"
	"github.com/spec-kit/support-chat/internal/store"
	"github.com/spec-kit/support-chat/pkg/util"
)

// retryFailureFactor scales the base failure probability down on retries.
const retryFailureFactor = 0.25

// failMarker forces a first-attempt delivery failure for deterministic test
// scenarios.
const failMarker = "/fail"

const deliveryErrText = "Message delivery failed. Tap retry to resend."

// DeliveryService is the message delivery pipeline: optimistic append in
// sending state, simulated asynchronous resolution with probabilistic
// failure, idempotent retry, and the post-delivery side effects that drive
// lead intake, escalation and bot replies.
type DeliveryService struct {
	store      *store.Store
	tickets    *TicketService
	leads      *LeadService
	scheduler  sched.Scheduler
	clock      sched.Clock
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics

	failureRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	botDelay    time.Duration
	roll        func() float64
}

// DeliveryDependencies bundles collaborators for the pipeline.
type DeliveryDependencies struct {
	Store      *store.Store
	Tickets    *TicketService
	Leads      *LeadService
	Scheduler  sched.Scheduler
	Clock      sched.Clock
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Chat       config.ChatConfig
	// Roll overrides the failure dice, for tests. Defaults to math/rand.
	Roll func() float64
}

// NewDeliveryService constructs the pipeline.
func NewDeliveryService(deps DeliveryDependencies) *DeliveryService {
	roll := deps.Roll
	if roll == nil {
		roll = rand.Float64
	}
	minDelay := deps.Chat.MinDelay()
	maxDelay := deps.Chat.MaxDelay()
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &DeliveryService{
		store:       deps.Store,
		tickets:     deps.Tickets,
		leads:       deps.Leads,
		scheduler:   deps.Scheduler,
		clock:       deps.Clock,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		failureRate: deps.Chat.FailureRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		botDelay:    deps.Chat.BotReplyDelay(),
		roll:        roll,
	}
}

// Send appends a message in sending state so callers see it immediately,
// then schedules its asynchronous delivery resolution. Message order within
// a ticket is the order of Send calls, never of resolution completion.
func (s *DeliveryService) Send(ctx context.Context, ticketID string, sender domain.Sender, senderName, text string, attachments []domain.Attachment) (*domain.Message, error) {
	if sender != domain.SenderClient && sender != domain.SenderAgent {
		return nil, util.NewValidationError("sender must be client or agent", map[string]any{"sender": sender})
	}
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return nil, util.NewValidationError("message text or attachments required", nil)
	}

	msg := domain.Message{
		ID:             uuid.NewString(),
		Sender:         sender,
		SenderName:     senderName,
		Text:           text,
		CreatedAt:      s.clock.Now(),
		DeliveryStatus: domain.DeliverySending,
		ReadByClient:   sender == domain.SenderClient,
		ReadByAdmin:    sender == domain.SenderAgent,
		Attachments:    attachments,
	}

	found := false
	err := s.store.MutateTickets(ctx, func(tickets []domain.Ticket) []domain.Ticket {
		t := findTicket(tickets, ticketID)
		if t == nil {
			return tickets
		}
		found = true
		t.AppendMessage(msg)
		return tickets
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}

	s.scheduler.After(s.randomDelay(), func() {
		s.resolveDelivery(ticketID, msg.ID)
	})
	return &msg, nil
}

// Retry re-enters the delivery path for a failed message. Retrying a message
// that is not currently failed is a structured no-op failure.
func (s *DeliveryService) Retry(ctx context.Context, ticketID, messageID string) (*domain.Message, error) {
	var opErr error
	var retried domain.Message
	err := s.store.MutateTickets(ctx, func(tickets []domain.Ticket) []domain.Ticket {
		t := findTicket(tickets, ticketID)
		if t == nil {
			opErr = util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			return tickets
		}
		m := t.MessageByID(messageID)
		if m == nil {
			opErr = util.NewNotFound("message", map[string]any{"message_id": messageID})
			return tickets
		}
		if m.DeliveryStatus != domain.DeliveryFailed {
			opErr = util.NewInvalidState("only failed messages can be retried", map[string]any{
				"delivery_status": m.DeliveryStatus,
			})
			return tickets
		}
		m.DeliveryStatus = domain.DeliverySending
		m.DeliveryError = ""
		m.RetryCount++
		retried = *m
		return tickets
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}

	s.scheduler.After(s.randomDelay(), func() {
		s.resolveDelivery(ticketID, messageID)
	})
	return &retried, nil
}

// resolveDelivery decides the fate of one in-flight message. It runs from a
// scheduler callback with no cancellation, so it re-checks that the ticket
// and message still exist and that the message is still sending; anything
// else is a stale wakeup and a no-op.
func (s *DeliveryService) resolveDelivery(ticketID, messageID string) {
	ctx := context.Background()

	var (
		delivered bool
		sender    domain.Sender
		text      string
		retries   int
	)
	err := s.store.MutateTickets(ctx, func(tickets []domain.Ticket) []domain.Ticket {
		t := findTicket(tickets, ticketID)
		if t == nil {
			return tickets
		}
		m := t.MessageByID(messageID)
		if m == nil || m.DeliveryStatus != domain.DeliverySending {
			return tickets
		}

		if s.shouldFail(m) {
			m.DeliveryStatus = domain.DeliveryFailed
			m.DeliveryError = deliveryErrText
			sender = m.Sender
			retries = m.RetryCount
			return tickets
		}

		m.DeliveryStatus = domain.DeliverySent
		m.DeliveryError = ""
		t.ChargeUnread(m.Sender)
		now := s.clock.Now()
		if now.After(t.UpdatedAt) {
			t.UpdatedAt = now
		}
		delivered = true
		sender = m.Sender
		text = m.Text
		retries = m.RetryCount
		return tickets
	})
	if err != nil {
		s.logger.Error("delivery resolution failed to persist", zap.Error(err), zap.String("ticket_id", ticketID))
		return
	}
	if sender == "" {
		return // stale wakeup
	}
	s.metrics.RecordDelivery(delivered, retries > 0)

	if !delivered {
		s.publish(ctx, events.Event{
			Type:     events.EventMessageFailed,
			TicketID: ticketID,
			Payload:  events.MessageFailedPayload{MessageID: messageID, RetryCount: retries},
		})
		return
	}

	s.publish(ctx, events.Event{
		Type:     events.EventMessageDelivered,
		TicketID: ticketID,
		Payload:  events.MessageDeliveredPayload{MessageID: messageID, Sender: sender},
	})
	side := "client"
	if sender == domain.SenderClient {
		side = "admin"
	}
	s.publish(ctx, events.Event{
		Type:     events.EventUnreadIncreased,
		TicketID: ticketID,
		Payload:  events.UnreadIncreasedPayload{Side: side, Count: 1},
	})

	if sender == domain.SenderClient {
		s.afterClientDelivery(ctx, ticketID, text)
	}
}

// afterClientDelivery fires the post-delivery side effects exactly once per
// successful client delivery: intake advancement, else escalation detection
// on the effective text, else a scheduled bot reply on the bot channel.
func (s *DeliveryService) afterClientDelivery(ctx context.Context, ticketID, text string) {
	snap := s.store.Snapshot()
	t := findTicket(snap.Tickets, ticketID)
	if t == nil {
		return
	}

	effective := text
	if t.IsLead {
		outcome, err := s.leads.AdvanceIntake(ctx, ticketID, text)
		if err != nil {
			s.logger.Error("intake advancement failed", zap.Error(err), zap.String("ticket_id", ticketID))
			return
		}
		if outcome.Handled && !outcome.Completed {
			return
		}
		if outcome.Completed && outcome.EffectiveText != "" {
			effective = outcome.EffectiveText
		}
	}

	if bot.WantsAgent(effective) {
		if _, err := s.tickets.RequestHumanSupport(ctx, ticketID); err != nil {
			s.logger.Warn("escalation request failed", zap.Error(err), zap.String("ticket_id", ticketID))
		}
		return
	}

	if t.Status != domain.TicketStatusResolved && t.Channel == domain.ChannelBot {
		reply := bot.ReplyTo(effective)
		s.scheduler.After(s.botDelay, func() {
			s.deliverBotReply(ticketID, reply)
		})
	}
}

// deliverBotReply appends a scripted reply if the ticket is still on the bot
// channel and unresolved when the timer fires.
func (s *DeliveryService) deliverBotReply(ticketID, reply string) {
	ctx := context.Background()
	applied := false
	err := s.store.MutateTickets(ctx, func(tickets []domain.Ticket) []domain.Ticket {
		t := findTicket(tickets, ticketID)
		if t == nil || t.Status == domain.TicketStatusResolved || t.Channel != domain.ChannelBot {
			return tickets
		}
		t.AppendMessage(newBotMessage(s.clock.Now(), reply))
		applied = true
		return tickets
	})
	if err != nil {
		s.logger.Error("bot reply failed to persist", zap.Error(err), zap.String("ticket_id", ticketID))
		return
	}
	if applied {
		s.publish(ctx, events.Event{
			Type:     events.EventUnreadIncreased,
			TicketID: ticketID,
			Payload:  events.UnreadIncreasedPayload{Side: "client", Count: 1},
		})
	}
}

// shouldFail rolls the simulated transport dice. The /fail marker forces a
// first-attempt failure; retries run at a quarter of the base rate.
func (s *DeliveryService) shouldFail(m *domain.Message) bool {
	if strings.HasPrefix(m.Text, failMarker) && m.RetryCount == 0 {
		return true
	}
	p := s.failureRate
	if m.RetryCount > 0 {
		p *= retryFailureFactor
	}
	return s.roll() < p
}

func (s *DeliveryService) randomDelay() time.Duration {
	spread := s.maxDelay - s.minDelay
	if spread <= 0 {
		return s.minDelay
	}
	return s.minDelay + time.Duration(s.roll()*float64(spread))
}

func (s *DeliveryService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
