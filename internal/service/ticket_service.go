package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/bot"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/sched"
	"github.com/spec-kit/support-chat/internal/store"
	"github.com/spec-kit/support-chat/pkg/util"
)

// SLA windows for human-channel obligations.
const (
	slaAgentRequested = 2 * time.Hour
	slaAssigned       = 1 * time.Hour
)

// offlineNoticeWindow bounds how often the offline notice repeats per ticket.
const offlineNoticeWindow = 6 * time.Hour

const (
	queuedNotice   = "Thanks! You're in the queue. A support agent will join this conversation shortly."
	autoCloseNote  = "This conversation was closed automatically because a new one was started."
	reopenedNotice = "This conversation was reopened by the support team."
)

func resolvedNotice(adminName string) string {
	if adminName == "" {
		return "This conversation was marked as resolved. Start a new chat if you need anything else."
	}
	return fmt.Sprintf("This conversation was marked as resolved by %s. Start a new chat if you need anything else.", adminName)
}

func assignedNotice(adminName string) string {
	return fmt.Sprintf("This conversation was assigned to %s.", adminName)
}

func handoffGreeting(adminName string) string {
	return fmt.Sprintf("Hi, this is %s from the support team. I have your conversation history in front of me. How can I help?", adminName)
}

// ClientIdentity names the party on the client side of a conversation. Lead
// is set only for anonymous visitors.
type ClientIdentity struct {
	Email        string
	Name         string
	BusinessName string
	Lead         *domain.Lead
}

// TicketService manages the ticket lifecycle state machine: creation, status
// and channel transitions, SLA due times, and unread accounting.
type TicketService struct {
	store      *store.Store
	clock      sched.Clock
	calendar   *bot.Calendar
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      *store.Store
	Clock      sched.Clock
	Calendar   *bot.Calendar
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		store:      deps.Store,
		clock:      deps.Clock,
		calendar:   deps.Calendar,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// EnsureTicket returns the client's active non-resolved ticket, creating a
// fresh one (bot greeting, intake prompt for incomplete inquiry leads,
// offline notice) when none exists.
func (s *TicketService) EnsureTicket(ctx context.Context, id ClientIdentity) (*domain.Ticket, error) {
	email := normalizeEmail(id.Email)
	if email == "" {
		return nil, util.NewValidationError("client email required", nil)
	}

	var ticketID string
	created := false
	err := s.store.MutateTickets(ctx, func(tickets []domain.Ticket) []domain.Ticket {
		now := s.clock.Now()
		active := activeOpenTicket(tickets, email)
		if active == nil {
			t := s.newTicket(id, email, now)
			tickets = append(tickets, t)
			active = &tickets[len(tickets)-1]
			created = true
		}
		s.maybeAppendOfflineNotice(active, now)
		ticketID = active.ID
		return tickets
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.publish(ctx, events.Event{Type: events.EventTicketCreated, TicketID: ticketID})
	}
	return s.getTicket(ticketID)
}

// StartNewThread auto-resolves any non-resolved tickets for the client with
// an explanatory system message, then creates a fresh one.
func (s *TicketService) StartNewThread(ctx context.Context, id ClientIdentity) (*domain.Ticket, error) {
	email := normalizeEmail(id.Email)
	if email == "" {
		return nil, util.NewValidationError("client email required", nil)
	}

	var ticketID string
	err := s.store.MutateTickets(ctx, func(tickets []domain.Ticket) []domain.Ticket {
		now := s.clock.Now()
		for i := range tickets {
			t := &tickets[i]
			if t.ClientEmail != email || t.Status == domain.TicketStatusResolved {
				continue
			}
			t.AppendMessage(newSystemMessage(now, autoCloseNote))
			t.Status = domain.TicketStatusResolved
			resolvedAt := now
			t.ResolvedAt = &resolvedAt
			t.SLADueAt = nil
		}
		fresh := s.newTicket(id, email, now)
		s.maybeAppendOfflineNotice(&fresh, now)
		ticketID = fresh.ID
		return append(tickets, fresh)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{Type: events.EventTicketCreated, TicketID: ticketID})
	return s.getTicket(ticketID)
}

// RequestHumanSupport moves a ticket to the human channel and starts the
// 2 hour SLA window. When the support calendar reports agents offline the
// channel is forced back to bot and only an offline notice is appended.
func (s *TicketService) RequestHumanSupport(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	var noticed bool
	err := s.store.MutateTickets(ctx, func(tickets []domain.Ticket) []domain.Ticket {
		t := findTicket(tickets, ticketID)
		if t == nil {
			return tickets
		}
		now := s.clock.Now()
		if !s.calendar.IsOnline(now) {
			t.Channel = domain.ChannelBot
			t.AppendMessage(newSystemMessage(now, bot.OfflineNotice))
			noticed = true
			return tickets
		}
		t.Channel = domain.ChannelHuman
		if t.Status == domain.TicketStatusResolved {
			t.Status = domain.TicketStatusOpen
			t.ResolvedAt = nil
		}
		due := now.Add(slaAgentRequested)
		t.SLADueAt = &due
		t.AppendMessage(newSystemMessage(now, queuedNotice))
		noticed = true
		return tickets
	})
	if err != nil {
		return nil, err
	}
	ticket, err := s.getTicket(ticketID)
	if err != nil {
		return nil, err
	}
	// Both branches append a client-facing notice, so both charge unread.
	if noticed {
		s.publishUnread(ctx, ticketID, "client")
	}
	return ticket, nil
}

// Assign hands the ticket to an admin: status assigned, channel human, SLA
// one hour out. Rejected with a structured failure when the ticket is
// resolved or already assigned.
func (s *TicketService) Assign(ctx context.Context, ticketID, adminName, adminEmail string) (*domain.Ticket, error) {
	var opErr error
	err := s.store.MutateTickets(ctx, func(tickets []domain.Ticket) []domain.Ticket {
		t := findTicket(tickets, ticketID)
		if t == nil {
			opErr = util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			return tickets
		}
		if t.Status == domain.TicketStatusResolved {
			opErr = util.NewInvalidState("cannot assign a resolved ticket", map[string]any{"status": t.Status})
			return tickets
		}
		if t.Status == domain.TicketStatusAssigned {
			opErr = util.NewInvalidState("ticket already assigned", map[string]any{
				"assigned_to": t.AssignedAdminEmail,
			})
			return tickets
		}

		now := s.clock.Now()
		firstTouch := t.AssignedAdminEmail == ""
		t.Status = domain.TicketStatusAssigned
		t.Channel = domain.ChannelHuman
		t.AssignedAdminName = adminName
		t.AssignedAdminEmail = strings.ToLower(adminEmail)
		due := now.Add(slaAssigned)
		t.SLADueAt = &due

		if firstTouch {
			t.AppendMessage(newAgentMessage(now, adminName, handoffGreeting(adminName)))
		} else {
			t.AppendMessage(newSystemMessage(now, assignedNotice(adminName)))
		}
		return tickets
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticketID,
		Payload:  events.TicketAssignedPayload{AdminName: adminName, AdminEmail: adminEmail},
	})
	s.publishUnread(ctx, ticketID, "client")
	return s.getTicket(ticketID)
}

// Resolve closes out a ticket. Resolving an already-resolved ticket is a
// no-op failure result.
func (s *TicketService) Resolve(ctx context.Context, ticketID, adminName string) (*domain.Ticket, error) {
	var opErr error
	err := s.store.MutateTickets(ctx, func(tickets []domain.Ticket) []domain.Ticket {
		t := findTicket(tickets, ticketID)
		if t == nil {
			opErr = util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			return tickets
		}
		if t.Status == domain.TicketStatusResolved {
			opErr = util.NewInvalidState("ticket already resolved", nil)
			return tickets
		}
		now := s.clock.Now()
		t.Status = domain.TicketStatusResolved
		resolvedAt := now
		t.ResolvedAt = &resolvedAt
		t.SLADueAt = nil
		t.AppendMessage(newSystemMessage(now, resolvedNotice(adminName)))
		return tickets
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	s.publish(ctx, events.Event{Type: events.EventTicketResolved, TicketID: ticketID})
	s.publishUnread(ctx, ticketID, "client")
	return s.getTicket(ticketID)
}

// Reopen is only valid from resolved; the ticket returns to the human
// channel with a fresh 2 hour SLA.
func (s *TicketService) Reopen(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	var opErr error
	err := s.store.MutateTickets(ctx, func(tickets []domain.Ticket) []domain.Ticket {
		t := findTicket(tickets, ticketID)
		if t == nil {
			opErr = util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			return tickets
		}
		if t.Status != domain.TicketStatusResolved {
			opErr = util.NewInvalidState("only resolved tickets can be reopened", map[string]any{"status": t.Status})
			return tickets
		}
		now := s.clock.Now()
		t.Status = domain.TicketStatusOpen
		t.Channel = domain.ChannelHuman
		t.ResolvedAt = nil
		due := now.Add(slaAgentRequested)
		t.SLADueAt = &due
		t.AppendMessage(newSystemMessage(now, reopenedNotice))
		return tickets
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	s.publish(ctx, events.Event{Type: events.EventTicketReopened, TicketID: ticketID})
	s.publishUnread(ctx, ticketID, "client")
	return s.getTicket(ticketID)
}

// MarkReadByClient zeroes the client-side unread counter and flags messages.
func (s *TicketService) MarkReadByClient(ctx context.Context, ticketID string) error {
	return s.markRead(ctx, ticketID, true)
}

// MarkReadByAdmin zeroes the admin-side unread counter and flags messages.
func (s *TicketService) MarkReadByAdmin(ctx context.Context, ticketID string) error {
	return s.markRead(ctx, ticketID, false)
}

func (s *TicketService) markRead(ctx context.Context, ticketID string, clientSide bool) error {
	return s.store.MutateTickets(ctx, func(tickets []domain.Ticket) []domain.Ticket {
		t := findTicket(tickets, ticketID)
		if t == nil {
			return tickets
		}
		if clientSide {
			t.UnreadByClient = 0
		} else {
			t.UnreadByAdmin = 0
		}
		for i := range t.Messages {
			if clientSide {
				t.Messages[i].ReadByClient = true
			} else {
				t.Messages[i].ReadByAdmin = true
			}
		}
		return tickets
	})
}

func (s *TicketService) newTicket(id ClientIdentity, email string, now time.Time) domain.Ticket {
	t := domain.Ticket{
		ID:           uuid.NewString(),
		ClientEmail:  email,
		ClientName:   strings.TrimSpace(id.Name),
		BusinessName: strings.TrimSpace(id.BusinessName),
		Status:       domain.TicketStatusOpen,
		Channel:      domain.ChannelBot,
		CreatedAt:    now,
		UpdatedAt:    now,
		Messages:     []domain.Message{},
	}
	if id.Lead != nil {
		syncTicketLead(&t, id.Lead)
		if t.ClientName == "" {
			t.ClientName = id.Lead.Label
		}
	}

	// The very first greeting is pre-marked read on both sides and charges
	// no unread counter.
	greeting := newBotMessage(now, bot.Greeting)
	greeting.ReadByClient = true
	t.Messages = append(t.Messages, greeting)

	if id.Lead != nil && !id.Lead.IntakeComplete() {
		if prompt := bot.IntakePrompt(id.Lead.EffectiveStage()); prompt != "" {
			t.AppendMessage(newBotMessage(now, prompt))
		}
	}
	return t
}

// maybeAppendOfflineNotice appends the offline system notice at most once
// per window while agents are off the calendar.
func (s *TicketService) maybeAppendOfflineNotice(t *domain.Ticket, now time.Time) {
	if s.calendar.IsOnline(now) {
		return
	}
	for i := len(t.Messages) - 1; i >= 0; i-- {
		msg := t.Messages[i]
		if msg.Sender == domain.SenderSystem && msg.Text == bot.OfflineNotice {
			if now.Sub(msg.CreatedAt) < offlineNoticeWindow {
				return
			}
			break
		}
	}
	t.AppendMessage(newSystemMessage(now, bot.OfflineNotice))
}

// TicketForClient returns the ticket only when it belongs to the given
// client partition. A ticket owned by another client is reported as
// forbidden, not as missing.
func (s *TicketService) TicketForClient(ticketID, clientEmail string) (*domain.Ticket, error) {
	t, err := s.getTicket(ticketID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(t.ClientEmail, clientEmail) {
		return nil, util.NewForbidden("ticket belongs to another client")
	}
	return t, nil
}

func (s *TicketService) getTicket(ticketID string) (*domain.Ticket, error) {
	snap := s.store.Snapshot()
	t := findTicket(snap.Tickets, ticketID)
	if t == nil {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return t, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
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

func (s *TicketService) publishUnread(ctx context.Context, ticketID, side string) {
	s.publish(ctx, events.Event{
		Type:     events.EventUnreadIncreased,
		TicketID: ticketID,
		Payload:  events.UnreadIncreasedPayload{Side: side, Count: 1},
	})
}

// activeOpenTicket returns the first non-resolved ticket for the client in
// most-recently-updated order, or nil when every ticket is resolved.
func activeOpenTicket(tickets []domain.Ticket, email string) *domain.Ticket {
	var best *domain.Ticket
	for i := range tickets {
		t := &tickets[i]
		if t.ClientEmail != email || t.Status == domain.TicketStatusResolved {
			continue
		}
		if best == nil || t.UpdatedAt.After(best.UpdatedAt) {
			best = t
		}
	}
	return best
}
