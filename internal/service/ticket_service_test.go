package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-chat/internal/bot"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/pkg/util"
)

func TestEnsureTicketCreatesGreetingPreRead(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "Client@Example.com", Name: "Dana"})
	require.NoError(t, err)

	assert.Equal(t, "client@example.com", ticket.ClientEmail)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.ChannelBot, ticket.Channel)
	require.Len(t, ticket.Messages, 1)

	greeting := ticket.Messages[0]
	assert.Equal(t, domain.SenderBot, greeting.Sender)
	assert.Equal(t, bot.Greeting, greeting.Text)
	assert.True(t, greeting.ReadByClient)
	assert.True(t, greeting.ReadByAdmin)
	assert.Zero(t, ticket.UnreadByClient)
	assert.Zero(t, ticket.UnreadByAdmin)
}

func TestEnsureTicketReturnsExistingActive(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()
	id := ClientIdentity{Email: "dana@example.com", Name: "Dana"}

	first, err := f.tickets.EnsureTicket(ctx, id)
	require.NoError(t, err)
	second, err := f.tickets.EnsureTicket(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	snap := f.store.Snapshot()
	assert.Len(t, snap.Tickets, 1)
}

func TestEnsureTicketIncludesIntakePromptForIncompleteLead(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	_, ticket := f.newLeadTicket(t)

	require.Len(t, ticket.Messages, 2)
	assert.Equal(t, bot.NamePrompt, ticket.Messages[1].Text)
	assert.True(t, ticket.IsLead)
	assert.Equal(t, domain.StageAwaitingFullName, ticket.LeadIntakeStage)
	// The intake prompt charges unread; only the greeting is pre-read.
	assert.Equal(t, 1, ticket.UnreadByClient)
}

func TestStartNewThreadAutoResolvesPrevious(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()
	id := ClientIdentity{Email: "dana@example.com", Name: "Dana"}

	first, err := f.tickets.EnsureTicket(ctx, id)
	require.NoError(t, err)
	second, err := f.tickets.StartNewThread(ctx, id)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	old := f.ticketByID(t, first.ID)
	assert.Equal(t, domain.TicketStatusResolved, old.Status)
	last := old.Messages[len(old.Messages)-1]
	assert.Equal(t, domain.SenderSystem, last.Sender)
	assert.Equal(t, autoCloseNote, last.Text)

	fresh := f.ticketByID(t, second.ID)
	assert.Equal(t, domain.TicketStatusOpen, fresh.Status)
}

func TestRequestHumanSupportOnline(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "dana@example.com"})
	require.NoError(t, err)

	updated, err := f.tickets.RequestHumanSupport(ctx, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.ChannelHuman, updated.Channel)
	require.NotNil(t, updated.SLADueAt)
	assert.Equal(t, f.sched.Now().Add(2*time.Hour), *updated.SLADueAt)
	assert.Equal(t, queuedNotice, updated.Messages[len(updated.Messages)-1].Text)
}

func TestRequestHumanSupportOfflineStaysOnBot(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: false})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "dana@example.com"})
	require.NoError(t, err)

	updated, err := f.tickets.RequestHumanSupport(ctx, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.ChannelBot, updated.Channel)
	assert.Nil(t, updated.SLADueAt)
	assert.Equal(t, bot.OfflineNotice, updated.Messages[len(updated.Messages)-1].Text)
}

func TestRequestHumanSupportOfflinePublishesUnread(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: false})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "dana@example.com"})
	require.NoError(t, err)

	var sides []string
	f.dispatcher.Subscribe(events.EventUnreadIncreased, func(_ context.Context, e events.Event) error {
		payload, ok := e.Payload.(events.UnreadIncreasedPayload)
		require.True(t, ok)
		sides = append(sides, payload.Side)
		return nil
	})

	before := f.ticketByID(t, ticket.ID).UnreadByClient
	_, err = f.tickets.RequestHumanSupport(ctx, ticket.ID)
	require.NoError(t, err)

	// The offline notice charges the client like any other notice, so the
	// notifier has to hear about it.
	assert.Equal(t, before+1, f.ticketByID(t, ticket.ID).UnreadByClient)
	assert.Equal(t, []string{"client"}, sides)
}

func TestTicketForClientEnforcesOwnership(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "dana@example.com"})
	require.NoError(t, err)

	owned, err := f.tickets.TicketForClient(ticket.ID, "Dana@Example.com")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, owned.ID)

	_, err = f.tickets.TicketForClient(ticket.ID, "mallory@example.com")
	assert.True(t, util.IsCode(err, "FORBIDDEN"))

	_, err = f.tickets.TicketForClient("missing", "dana@example.com")
	assert.True(t, util.IsCode(err, "NOT_FOUND"))
}

func TestRequestHumanSupportReopensResolved(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "dana@example.com"})
	require.NoError(t, err)
	_, err = f.tickets.Resolve(ctx, ticket.ID, "Sam")
	require.NoError(t, err)

	updated, err := f.tickets.RequestHumanSupport(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
	assert.Nil(t, updated.ResolvedAt)
}

func TestAssignFirstTouchAppendsHandoffGreeting(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "dana@example.com"})
	require.NoError(t, err)

	assigned, err := f.tickets.Assign(ctx, ticket.ID, "Sam", "sam@support.example.com")
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusAssigned, assigned.Status)
	assert.Equal(t, domain.ChannelHuman, assigned.Channel)
	assert.Equal(t, "sam@support.example.com", assigned.AssignedAdminEmail)
	require.NotNil(t, assigned.SLADueAt)
	assert.Equal(t, f.sched.Now().Add(time.Hour), *assigned.SLADueAt)

	last := assigned.Messages[len(assigned.Messages)-1]
	assert.Equal(t, domain.SenderAgent, last.Sender)
	assert.Equal(t, handoffGreeting("Sam"), last.Text)
}

func TestAssignTwiceFailsWithInvalidState(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "dana@example.com"})
	require.NoError(t, err)

	_, err = f.tickets.Assign(ctx, ticket.ID, "Sam", "sam@support.example.com")
	require.NoError(t, err)

	_, err = f.tickets.Assign(ctx, ticket.ID, "Alex", "alex@support.example.com")
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "INVALID_STATE"))

	// First assignment stands.
	current := f.ticketByID(t, ticket.ID)
	assert.Equal(t, "sam@support.example.com", current.AssignedAdminEmail)
}

func TestAssignResolvedFails(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "dana@example.com"})
	require.NoError(t, err)
	_, err = f.tickets.Resolve(ctx, ticket.ID, "Sam")
	require.NoError(t, err)

	_, err = f.tickets.Assign(ctx, ticket.ID, "Sam", "sam@support.example.com")
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "INVALID_STATE"))
}

func TestResolveClearsSLAAndIsTerminalOnce(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "dana@example.com"})
	require.NoError(t, err)
	_, err = f.tickets.RequestHumanSupport(ctx, ticket.ID)
	require.NoError(t, err)

	resolved, err := f.tickets.Resolve(ctx, ticket.ID, "Sam")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)
	assert.Nil(t, resolved.SLADueAt)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = f.tickets.Resolve(ctx, ticket.ID, "Sam")
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "INVALID_STATE"))
}

func TestReopenOnlyFromResolved(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "dana@example.com"})
	require.NoError(t, err)

	_, err = f.tickets.Reopen(ctx, ticket.ID)
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "INVALID_STATE"))

	_, err = f.tickets.Resolve(ctx, ticket.ID, "Sam")
	require.NoError(t, err)

	reopened, err := f.tickets.Reopen(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)
	assert.Equal(t, domain.ChannelHuman, reopened.Channel)
	require.NotNil(t, reopened.SLADueAt)
	assert.Equal(t, f.sched.Now().Add(2*time.Hour), *reopened.SLADueAt)
}

func TestMarkReadZeroesCounters(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "dana@example.com"})
	require.NoError(t, err)
	_, err = f.tickets.Resolve(ctx, ticket.ID, "Sam") // appends a system notice, charges client
	require.NoError(t, err)

	current := f.ticketByID(t, ticket.ID)
	require.Equal(t, 1, current.UnreadByClient)

	require.NoError(t, f.tickets.MarkReadByClient(ctx, ticket.ID))
	current = f.ticketByID(t, ticket.ID)
	assert.Zero(t, current.UnreadByClient)
	for _, m := range current.Messages {
		assert.True(t, m.ReadByClient)
	}
}

func TestOfflineNoticeAppendedAtMostOncePerWindow(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: false})
	ctx := context.Background()
	id := ClientIdentity{Email: "dana@example.com"}

	ticket, err := f.tickets.EnsureTicket(ctx, id)
	require.NoError(t, err)
	countNotices := func() int {
		n := 0
		for _, m := range f.ticketByID(t, ticket.ID).Messages {
			if m.Sender == domain.SenderSystem && m.Text == bot.OfflineNotice {
				n++
			}
		}
		return n
	}
	require.Equal(t, 1, countNotices())

	// Re-entering the conversation inside the window adds nothing.
	_, err = f.tickets.EnsureTicket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, countNotices())

	// After the window passes, one more notice lands.
	f.sched.Advance(7 * time.Hour)
	_, err = f.tickets.EnsureTicket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, countNotices())
}
