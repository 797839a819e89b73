package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-chat/internal/domain"
)

func viewTicket(id, email string, status domain.TicketStatus, updated time.Time) domain.Ticket {
	return domain.Ticket{
		ID:          id,
		ClientEmail: email,
		Status:      status,
		UpdatedAt:   updated,
	}
}

func TestGroupThreadsPartitionsByEmailCaseInsensitively(t *testing.T) {
	base := testStart
	tickets := []domain.Ticket{
		viewTicket("t1", "Ada@Example.com", domain.TicketStatusOpen, base),
		viewTicket("t2", "ada@example.com", domain.TicketStatusResolved, base.Add(time.Hour)),
		viewTicket("t3", "bob@example.com", domain.TicketStatusOpen, base.Add(2*time.Hour)),
	}
	tickets[0].UnreadByAdmin = 2
	tickets[1].UnreadByAdmin = 1

	groups := GroupThreads(tickets)
	require.Len(t, groups, 2)

	// Bob's group is freshest and sorts first.
	assert.Equal(t, "bob@example.com", groups[0].ClientEmail)

	ada := groups[1]
	assert.Equal(t, "ada@example.com", ada.ClientEmail)
	require.Len(t, ada.Tickets, 2)
	assert.Equal(t, "t2", ada.Tickets[0].ID)
	assert.Equal(t, 3, ada.UnreadTotal)
	// Active skips the resolved ticket in favor of the older open one.
	require.NotNil(t, ada.Active)
	assert.Equal(t, "t1", ada.Active.ID)
}

func TestGroupThreadsCarriesLeadIdentity(t *testing.T) {
	ticket := viewTicket("t1", "lead-3@leads.example.com", domain.TicketStatusOpen, testStart)
	ticket.IsLead = true
	ticket.LeadLabel = "Lead 3"
	ticket.ClientName = "Lead 3"

	groups := GroupThreads([]domain.Ticket{ticket})
	require.Len(t, groups, 1)
	assert.True(t, groups[0].IsLead)
	assert.Equal(t, "Lead 3", groups[0].LeadLabel)
}

func TestActiveTicketFallsBackWhenAllResolved(t *testing.T) {
	tickets := []domain.Ticket{
		viewTicket("t1", "a@x.com", domain.TicketStatusResolved, testStart),
		viewTicket("t2", "a@x.com", domain.TicketStatusResolved, testStart.Add(time.Hour)),
	}

	active := ActiveTicket(tickets)
	require.NotNil(t, active)
	assert.Equal(t, "t2", active.ID)

	assert.Nil(t, ActiveTicket(nil))
	// The input order must survive the internal sort.
	assert.Equal(t, "t1", tickets[0].ID)
}

func TestFormatSLACountdown(t *testing.T) {
	now := testStart
	assert.Equal(t, "", FormatSLACountdown(nil, now))

	due := now.Add(2*time.Hour + 5*time.Minute)
	assert.Equal(t, "2h 5m left", FormatSLACountdown(&due, now))

	soon := now.Add(12 * time.Minute)
	assert.Equal(t, "12m left", FormatSLACountdown(&soon, now))

	past := now.Add(-90 * time.Minute)
	assert.Equal(t, "overdue by 1h 30m", FormatSLACountdown(&past, now))
}

func TestFilterTicketsByStatus(t *testing.T) {
	tickets := []domain.Ticket{
		viewTicket("t1", "a@x.com", domain.TicketStatusOpen, testStart),
		viewTicket("t2", "a@x.com", domain.TicketStatusResolved, testStart),
	}

	assert.Len(t, FilterTicketsByStatus(tickets, ""), 2)

	open := FilterTicketsByStatus(tickets, domain.TicketStatusOpen)
	require.Len(t, open, 1)
	assert.Equal(t, "t1", open[0].ID)
}

func TestSearchThreadsMatchesIdentityAndMessageText(t *testing.T) {
	invoice := viewTicket("t1", "ada@example.com", domain.TicketStatusOpen, testStart)
	invoice.Messages = []domain.Message{{Text: "Where is my invoice?"}}
	lead := viewTicket("t2", "lead-1@leads.example.com", domain.TicketStatusOpen, testStart)
	lead.LeadFullName = "Richard Mike"
	tickets := []domain.Ticket{invoice, lead}

	byText := SearchThreads(tickets, "INVOICE")
	require.Len(t, byText, 1)
	assert.Equal(t, "t1", byText[0].ID)

	byName := SearchThreads(tickets, "richard")
	require.Len(t, byName, 1)
	assert.Equal(t, "t2", byName[0].ID)

	assert.Len(t, SearchThreads(tickets, "  "), 2)
	assert.Empty(t, SearchThreads(tickets, "nomatch"))
}
