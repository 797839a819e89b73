package store

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
)

// DecodeTickets is the single normalization boundary for persisted tickets.
// Malformed JSON falls back to an empty collection; individually malformed
// fields are defaulted here so the rest of the codebase never coerces.
func DecodeTickets(raw []byte, logger *zap.Logger) []domain.Ticket {
	if len(raw) == 0 {
		return []domain.Ticket{}
	}
	var tickets []domain.Ticket
	if err := json.Unmarshal(raw, &tickets); err != nil {
		logger.Warn("malformed ticket collection, starting empty", zap.Error(err))
		return []domain.Ticket{}
	}
	out := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		normalizeTicket(&tickets[i])
		out = append(out, tickets[i])
	}
	return out
}

// DecodeLeads normalizes the persisted lead collection.
func DecodeLeads(raw []byte, logger *zap.Logger) []domain.Lead {
	if len(raw) == 0 {
		return []domain.Lead{}
	}
	var leads []domain.Lead
	if err := json.Unmarshal(raw, &leads); err != nil {
		logger.Warn("malformed lead collection, starting empty", zap.Error(err))
		return []domain.Lead{}
	}
	out := make([]domain.Lead, 0, len(leads))
	for i := range leads {
		normalizeLead(&leads[i])
		out = append(out, leads[i])
	}
	return out
}

func normalizeTicket(t *domain.Ticket) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.ClientEmail = strings.ToLower(strings.TrimSpace(t.ClientEmail))

	switch t.Status {
	case domain.TicketStatusOpen, domain.TicketStatusAssigned, domain.TicketStatusResolved:
	default:
		t.Status = domain.TicketStatusOpen
	}
	switch t.Channel {
	case domain.ChannelBot, domain.ChannelHuman:
	default:
		t.Channel = domain.ChannelBot
	}
	if t.UnreadByClient < 0 {
		t.UnreadByClient = 0
	}
	if t.UnreadByAdmin < 0 {
		t.UnreadByAdmin = 0
	}
	if t.Messages == nil {
		t.Messages = []domain.Message{}
	}
	for i := range t.Messages {
		normalizeMessage(&t.Messages[i])
	}
}

func normalizeMessage(m *domain.Message) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	switch m.Sender {
	case domain.SenderClient, domain.SenderAgent, domain.SenderBot, domain.SenderSystem:
	default:
		m.Sender = domain.SenderSystem
	}
	switch m.DeliveryStatus {
	case domain.DeliverySent, domain.DeliveryFailed:
	case domain.DeliverySending:
		// A message persisted mid-flight belongs to a process that is
		// gone; its scheduled resolution will never fire. Surface it as
		// failed so the retry action stays available.
		m.DeliveryStatus = domain.DeliveryFailed
		if m.DeliveryError == "" {
			m.DeliveryError = "Delivery was interrupted. Tap retry to resend."
		}
	default:
		m.DeliveryStatus = domain.DeliverySent
	}
	if m.RetryCount < 0 {
		m.RetryCount = 0
	}
}

func normalizeLead(l *domain.Lead) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.ClientEmail = strings.ToLower(strings.TrimSpace(l.ClientEmail))
	l.ContactEmail = strings.ToLower(strings.TrimSpace(l.ContactEmail))

	if l.Label == "" && l.LeadNumber > 0 {
		l.Label = domain.LeadLabel(l.LeadNumber)
	}
	switch l.OrganizationType {
	case domain.OrgTypeBusiness, domain.OrgTypeNonProfit, domain.OrgTypeIndividual, domain.OrgTypeUnknown:
	default:
		l.OrganizationType = domain.OrgTypeUnknown
	}
	if len(l.Categories) == 0 {
		l.Categories = []domain.LeadCategory{domain.CategoryGeneral}
	}
	// Stage self-heals from populated fields when the stored value is
	// missing or unrecognized.
	l.IntakeStage = l.EffectiveStage()
}
