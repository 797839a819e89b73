package events

import (
	"time"

	"github.com/spec-kit/support-chat/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLeadCreated      EventType = "lead_created"
	EventLeadMerged       EventType = "lead_merged"
	EventLeadIntakeDone   EventType = "lead_intake_completed"
	EventTicketCreated    EventType = "ticket_created"
	EventTicketAssigned   EventType = "ticket_assigned"
	EventTicketResolved   EventType = "ticket_resolved"
	EventTicketReopened   EventType = "ticket_reopened"
	EventMessageDelivered EventType = "message_delivered"
	EventMessageFailed    EventType = "message_failed"
	EventUnreadIncreased  EventType = "unread_increased"
)

// Event represents a domain event emitted by the chat services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	LeadID    string      `json:"lead_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// LeadCreatedPayload payload.
type LeadCreatedPayload struct {
	LeadNumber int64  `json:"lead_number"`
	Source     string `json:"source,omitempty"`
}

// LeadMergedPayload payload.
type LeadMergedPayload struct {
	SurvivingLeadID string `json:"surviving_lead_id"`
	RemovedLeadID   string `json:"removed_lead_id"`
	ContactEmail    string `json:"contact_email"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AdminName  string `json:"admin_name"`
	AdminEmail string `json:"admin_email"`
}

// MessageDeliveredPayload payload.
type MessageDeliveredPayload struct {
	MessageID string        `json:"message_id"`
	Sender    domain.Sender `json:"sender"`
}

// MessageFailedPayload payload.
type MessageFailedPayload struct {
	MessageID  string `json:"message_id"`
	RetryCount int    `json:"retry_count"`
}

// UnreadIncreasedPayload identifies which side of the conversation gained
// unread messages; the sound notifier keys off this.
type UnreadIncreasedPayload struct {
	Side  string `json:"side"` // "client" or "admin"
	Count int    `json:"count"`
}
