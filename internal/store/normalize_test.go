package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
)

func TestDecodeTicketsMalformedFallsBackToEmpty(t *testing.T) {
	logger := zap.NewNop()

	assert.Empty(t, DecodeTickets(nil, logger))
	assert.Empty(t, DecodeTickets([]byte("{not json"), logger))
	assert.Empty(t, DecodeTickets([]byte(`{"object":"not an array"}`), logger))
}

func TestDecodeTicketsDefaultsUnknownEnums(t *testing.T) {
	raw := []byte(`[{
		"id": "t1",
		"clientEmail": " Dana@Example.COM ",
		"status": "weird",
		"channel": "carrier-pigeon",
		"unreadByClient": -4,
		"messages": null
	}]`)

	tickets := DecodeTickets(raw, zap.NewNop())
	require.Len(t, tickets, 1)

	got := tickets[0]
	assert.Equal(t, "dana@example.com", got.ClientEmail)
	assert.Equal(t, domain.TicketStatusOpen, got.Status)
	assert.Equal(t, domain.ChannelBot, got.Channel)
	assert.Zero(t, got.UnreadByClient)
	assert.NotNil(t, got.Messages)
}

func TestDecodeTicketsMarksInterruptedDeliveriesFailed(t *testing.T) {
	raw := []byte(`[{
		"id": "t1",
		"clientEmail": "dana@example.com",
		"status": "open",
		"channel": "bot",
		"messages": [
			{"id": "m1", "sender": "client", "text": "hi", "deliveryStatus": "sending"},
			{"id": "m2", "sender": "bot", "text": "hello", "deliveryStatus": "sent"}
		]
	}]`)

	tickets := DecodeTickets(raw, zap.NewNop())
	require.Len(t, tickets, 1)
	require.Len(t, tickets[0].Messages, 2)

	interrupted := tickets[0].Messages[0]
	assert.Equal(t, domain.DeliveryFailed, interrupted.DeliveryStatus)
	assert.NotEmpty(t, interrupted.DeliveryError)

	assert.Equal(t, domain.DeliverySent, tickets[0].Messages[1].DeliveryStatus)
}

func TestDecodeLeadsSelfHealsStage(t *testing.T) {
	raw := []byte(`[
		{"id": "l1", "leadNumber": 3, "clientEmail": "lead-3@x.dev",
		 "leadCategories": ["Inquiry_FollowUp"], "fullName": "Richard Mike",
		 "intakeStage": "bogus"},
		{"id": "l2", "leadNumber": 4, "clientEmail": "lead-4@x.dev"}
	]`)

	leads := DecodeLeads(raw, zap.NewNop())
	require.Len(t, leads, 2)

	// Name known, email missing: the machine resumes at the email question.
	assert.Equal(t, domain.StageAwaitingEmail, leads[0].IntakeStage)

	// No category survives as General, which never runs intake.
	assert.Equal(t, []domain.LeadCategory{domain.CategoryGeneral}, leads[1].Categories)
	assert.Equal(t, domain.StageComplete, leads[1].IntakeStage)
	assert.Equal(t, "Lead 4", leads[1].Label)
}
