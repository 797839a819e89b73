package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/bot"
	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/persistence"
	"github.com/spec-kit/support-chat/internal/sched"
	"github.com/spec-kit/support-chat/internal/store"
)

// testStart is a Wednesday noon UTC, well inside weekday working hours.
var testStart = time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store      *store.Store
	sched      *sched.Manual
	tickets    *TicketService
	leads      *LeadService
	delivery   *DeliveryService
	kv         *persistence.MemoryKV
	dispatcher events.Dispatcher
}

type fixtureOptions struct {
	online bool
	roll   func() float64
}

func alwaysOnlineCalendar(t *testing.T) *bot.Calendar {
	t.Helper()
	cal, err := bot.NewCalendar(config.CalendarConfig{
		Timezone:         "UTC",
		WeekdayOpenHour:  0,
		WeekdayCloseHour: 24,
		WeekendOpenHour:  0,
		WeekendCloseHour: 24,
	})
	require.NoError(t, err)
	return cal
}

func alwaysOfflineCalendar(t *testing.T) *bot.Calendar {
	t.Helper()
	cal, err := bot.NewCalendar(config.CalendarConfig{
		Timezone:     "UTC",
		SundayClosed: true,
	})
	require.NoError(t, err)
	return cal
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	ctx := context.Background()
	kv := persistence.NewMemoryKV()
	st, err := store.New(ctx, kv, persistence.NewMemoryHub(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(st.Close)

	manual := sched.NewManual(testStart)
	var calendar *bot.Calendar
	if opts.online {
		calendar = alwaysOnlineCalendar(t)
	} else {
		calendar = alwaysOfflineCalendar(t)
	}

	roll := opts.roll
	if roll == nil {
		roll = func() float64 { return 0.99 } // never fail
	}

	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher()

	tickets := NewTicketService(TicketDependencies{
		Store:      st,
		Clock:      manual,
		Calendar:   calendar,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	leads := NewLeadService(LeadDependencies{
		Store:       st,
		Clock:       manual,
		Dispatcher:  dispatcher,
		Logger:      logger,
		AliasDomain: "leads.example.com",
	})
	delivery := NewDeliveryService(DeliveryDependencies{
		Store:      st,
		Tickets:    tickets,
		Leads:      leads,
		Scheduler:  manual,
		Clock:      manual,
		Dispatcher: dispatcher,
		Logger:     logger,
		Chat: config.ChatConfig{
			AliasDomain:     "leads.example.com",
			FailureRate:     0.12,
			MinDelayMs:      320,
			MaxDelayMs:      980,
			BotReplyDelayMs: 900,
		},
		Roll: roll,
	})

	return &fixture{
		store:      st,
		sched:      manual,
		tickets:    tickets,
		leads:      leads,
		delivery:   delivery,
		kv:         kv,
		dispatcher: dispatcher,
	}
}

// newLeadTicket registers a fresh inquiry lead and opens its conversation.
func (f *fixture) newLeadTicket(t *testing.T) (*domain.Lead, *domain.Ticket) {
	t.Helper()
	ctx := context.Background()
	lead, err := f.leads.RegisterInquiryLead(ctx, "chat_widget")
	require.NoError(t, err)
	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{
		Email: lead.ClientEmail,
		Name:  lead.Label,
		Lead:  lead,
	})
	require.NoError(t, err)
	return lead, ticket
}

func (f *fixture) ticketByID(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	snap := f.store.Snapshot()
	ticket := findTicket(snap.Tickets, id)
	require.NotNil(t, ticket, "ticket %s not found", id)
	return ticket
}

func (f *fixture) leadByID(t *testing.T, id string) *domain.Lead {
	t.Helper()
	snap := f.store.Snapshot()
	return findLeadByID(snap.Leads, id)
}

func (f *fixture) lastMessage(t *testing.T, ticketID string) domain.Message {
	t.Helper()
	ticket := f.ticketByID(t, ticketID)
	require.NotEmpty(t, ticket.Messages)
	return ticket.Messages[len(ticket.Messages)-1]
}

// drain runs every scheduled callback, including ones scheduled while
// draining.
func (f *fixture) drain() {
	for f.sched.RunNext() {
	}
}
