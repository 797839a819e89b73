package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-chat/internal/bot"
	"github.com/spec-kit/support-chat/internal/domain"
)

func TestRegisterInquiryLeadDerivesAliasIdentity(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	lead, err := f.leads.RegisterInquiryLead(ctx, "chat_widget")
	require.NoError(t, err)

	assert.Equal(t, int64(1), lead.LeadNumber)
	assert.Equal(t, "Lead 1", lead.Label)
	assert.Equal(t, "lead-1@leads.example.com", lead.ClientEmail)
	assert.Equal(t, domain.StageAwaitingFullName, lead.EffectiveStage())
	require.Len(t, lead.Categories, 1)
	assert.Equal(t, domain.CategoryInquiryFollowUp, lead.Categories[0])

	second, err := f.leads.RegisterInquiryLead(ctx, "chat_widget")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.LeadNumber)
	assert.Equal(t, "lead-2@leads.example.com", second.ClientEmail)
}

func TestRegisterNewsletterLeadIsIntakeComplete(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	lead, err := f.leads.RegisterNewsletterLead(ctx, "Nadia Reyes", "nadia@example.com", "newsletter")
	require.NoError(t, err)

	assert.Equal(t, "nadia@example.com", lead.ContactEmail)
	assert.True(t, lead.IntakeComplete())
	assert.True(t, lead.HasCategory(domain.CategoryNewsletterSubscriber))
}

func TestRegisterNewsletterLeadDedupesByContactEmail(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	first, err := f.leads.RegisterNewsletterLead(ctx, "", "nadia@example.com", "newsletter")
	require.NoError(t, err)
	second, err := f.leads.RegisterNewsletterLead(ctx, "Nadia Reyes", "Nadia@Example.com", "newsletter")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Nadia Reyes", second.FullName)
	assert.Len(t, f.store.Snapshot().Leads, 1)
}

// advance delivers one client message through the pipeline and lets the
// intake machine consume it.
func advance(t *testing.T, f *fixture, ticketID, text string) {
	t.Helper()
	_, err := f.delivery.Send(context.Background(), ticketID, domain.SenderClient, "Visitor", text, nil)
	require.NoError(t, err)
	f.drain()
}

func TestIntakeConversationSequence(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	lead, ticket := f.newLeadTicket(t)

	advance(t, f, ticket.ID, "My name is Richard Mike")
	current := f.leadByID(t, lead.ID)
	require.NotNil(t, current)
	assert.Equal(t, "Richard Mike", current.FullName)
	assert.Equal(t, domain.StageAwaitingEmail, current.EffectiveStage())
	assert.Equal(t, bot.EmailPrompt, f.lastMessage(t, ticket.ID).Text)

	// Invalid email repeats the prompt without advancing.
	advance(t, f, ticket.ID, "not-an-email")
	current = f.leadByID(t, lead.ID)
	assert.Equal(t, domain.StageAwaitingEmail, current.EffectiveStage())
	assert.Equal(t, bot.EmailRetryPrompt, f.lastMessage(t, ticket.ID).Text)

	advance(t, f, ticket.ID, "richard@example.com")
	current = f.leadByID(t, lead.ID)
	assert.Equal(t, "richard@example.com", current.ContactEmail)
	assert.Equal(t, domain.StageAwaitingInquiry, current.EffectiveStage())
	assert.Equal(t, bot.InquiryPrompt, f.lastMessage(t, ticket.ID).Text)

	// The completing message is evaluated for a bot reply like any other.
	advance(t, f, ticket.ID, "I need help with uploads")
	current = f.leadByID(t, lead.ID)
	assert.Equal(t, domain.StageComplete, current.EffectiveStage())
	assert.Equal(t, "I need help with uploads", current.InquiryText)

	last := f.lastMessage(t, ticket.ID)
	assert.Equal(t, domain.SenderBot, last.Sender)
	assert.Contains(t, last.Text, "upload")

	// The ticket mirrors the finished lead.
	mirrored := f.ticketByID(t, ticket.ID)
	assert.Equal(t, "Richard Mike", mirrored.LeadFullName)
	assert.Equal(t, "richard@example.com", mirrored.LeadContactEmail)
	assert.Equal(t, domain.StageComplete, mirrored.LeadIntakeStage)
}

func TestIntakeRejectsEmailAsName(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	lead, ticket := f.newLeadTicket(t)

	advance(t, f, ticket.ID, "richard@example.com")
	current := f.leadByID(t, lead.ID)
	assert.Empty(t, current.FullName)
	assert.Equal(t, domain.StageAwaitingFullName, current.EffectiveStage())
	assert.Equal(t, bot.NameRetryPrompt, f.lastMessage(t, ticket.ID).Text)
}

func TestIntakeMergeCollapsesDuplicateLeads(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	existing, err := f.leads.RegisterNewsletterLead(ctx, "Nadia Reyes", "nadia@example.com", "newsletter")
	require.NoError(t, err)

	convLead, ticket := f.newLeadTicket(t)
	advance(t, f, ticket.ID, "Nadia")
	advance(t, f, ticket.ID, "nadia@example.com")

	// The conversation lead collapses into the newsletter lead.
	snap := f.store.Snapshot()
	require.Len(t, snap.Leads, 1)
	survivor := snap.Leads[0]
	assert.Equal(t, existing.ID, survivor.ID)
	assert.Nil(t, f.leadByID(t, convLead.ID))

	// Categories union; the survivor re-enters intake to collect the inquiry.
	assert.True(t, survivor.HasCategory(domain.CategoryInquiryFollowUp))
	assert.True(t, survivor.HasCategory(domain.CategoryNewsletterSubscriber))
	assert.Equal(t, domain.StageAwaitingInquiry, survivor.EffectiveStage())
	// The newsletter name wins; the intake name only fills gaps.
	assert.Equal(t, "Nadia Reyes", survivor.FullName)

	// All tickets now reference the surviving lead, keeping their alias
	// partition key.
	current := f.ticketByID(t, ticket.ID)
	assert.Equal(t, existing.ID, current.LeadID)
	assert.Equal(t, convLead.ClientEmail, current.ClientEmail)
}

func TestResumeSessionSelfHealsAfterMerge(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	existing, err := f.leads.RegisterNewsletterLead(ctx, "Nadia Reyes", "nadia@example.com", "newsletter")
	require.NoError(t, err)

	convLead, ticket := f.newLeadTicket(t)
	require.NoError(t, f.leads.BindSession(ctx, convLead.ID, convLead))

	advance(t, f, ticket.ID, "Nadia")
	advance(t, f, ticket.ID, "nadia@example.com")

	// The bound lead merged away; the session resolves through the ticket
	// partition to the survivor.
	resumed, err := f.leads.ResumeSession(ctx, convLead.ID)
	require.NoError(t, err)
	require.NotNil(t, resumed)
	assert.Equal(t, existing.ID, resumed.ID)
}

func TestIntakeIgnoresNonLeadTickets(t *testing.T) {
	f := newFixture(t, fixtureOptions{online: true})
	ctx := context.Background()

	ticket, err := f.tickets.EnsureTicket(ctx, ClientIdentity{Email: "dana@example.com"})
	require.NoError(t, err)

	outcome, err := f.leads.AdvanceIntake(ctx, ticket.ID, "My name is Dana")
	require.NoError(t, err)
	assert.False(t, outcome.Handled)
	assert.False(t, outcome.Completed)
}
