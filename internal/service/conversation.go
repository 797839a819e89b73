package service

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-chat/internal/domain"
)

var emailRx = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var namePrefixRx = regexp.MustCompile(`(?i)^\s*my name is\s+`)

func isValidEmail(text string) bool {
	return emailRx.MatchString(strings.ToLower(strings.TrimSpace(text)))
}

func looksLikeEmail(text string) bool {
	return strings.Contains(text, "@") || isValidEmail(text)
}

// cleanFullName strips a leading "my name is" phrase and surrounding space.
func cleanFullName(text string) string {
	return strings.TrimSpace(namePrefixRx.ReplaceAllString(text, ""))
}

func normalizeEmail(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// newBotMessage builds a confirmed bot utterance; appending one charges the
// client-side unread counter.
func newBotMessage(now time.Time, text string) domain.Message {
	return domain.Message{
		ID:             uuid.NewString(),
		Sender:         domain.SenderBot,
		SenderName:     "Support Bot",
		Text:           text,
		CreatedAt:      now,
		DeliveryStatus: domain.DeliverySent,
		ReadByAdmin:    true,
	}
}

// newSystemMessage builds a lifecycle notice.
func newSystemMessage(now time.Time, text string) domain.Message {
	return domain.Message{
		ID:             uuid.NewString(),
		Sender:         domain.SenderSystem,
		Text:           text,
		CreatedAt:      now,
		DeliveryStatus: domain.DeliverySent,
		ReadByAdmin:    true,
	}
}

// newAgentMessage builds a confirmed agent utterance, used for hand-off
// greetings appended outside the delivery pipeline.
func newAgentMessage(now time.Time, name, text string) domain.Message {
	return domain.Message{
		ID:             uuid.NewString(),
		Sender:         domain.SenderAgent,
		SenderName:     name,
		Text:           text,
		CreatedAt:      now,
		DeliveryStatus: domain.DeliverySent,
		ReadByAdmin:    true,
	}
}

// syncTicketLead copies a lead's identity fields onto a ticket. The ticket's
// ClientEmail is left alone: alias-based partitioning survives merges.
func syncTicketLead(t *domain.Ticket, lead *domain.Lead) {
	t.IsLead = true
	t.LeadID = lead.ID
	t.LeadLabel = lead.Label
	t.LeadFullName = lead.FullName
	t.LeadContactEmail = lead.ContactEmail
	t.LeadOrganizationType = lead.OrganizationType
	t.LeadCategories = append([]domain.LeadCategory(nil), lead.Categories...)
	t.LeadIntakeStage = lead.EffectiveStage()
	t.LeadIPAddress = lead.IPAddress
	t.LeadLocation = lead.Location
}

func findTicket(tickets []domain.Ticket, id string) *domain.Ticket {
	for i := range tickets {
		if tickets[i].ID == id {
			return &tickets[i]
		}
	}
	return nil
}

func findLeadByID(leads []domain.Lead, id string) *domain.Lead {
	for i := range leads {
		if leads[i].ID == id {
			return &leads[i]
		}
	}
	return nil
}

func findLeadByContactEmail(leads []domain.Lead, email string) *domain.Lead {
	for i := range leads {
		if leads[i].ContactEmail != "" && leads[i].ContactEmail == email {
			return &leads[i]
		}
	}
	return nil
}
