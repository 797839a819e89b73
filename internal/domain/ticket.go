package domain

import (
	"sort"
	"time"
)

// TicketStatus enumerates lifecycle states for support conversations.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusAssigned TicketStatus = "assigned"
	TicketStatusResolved TicketStatus = "resolved"
)

// Channel indicates whether the scripted bot or a human agent serves the ticket.
type Channel string

const (
	ChannelBot   Channel = "bot"
	ChannelHuman Channel = "human"
)

// Ticket is one support conversation thread. Messages are append-only and
// ordered by successful enqueue, never reordered or deleted.
type Ticket struct {
	ID           string       `json:"id"`
	ClientEmail  string       `json:"clientEmail"`
	ClientName   string       `json:"clientName"`
	BusinessName string       `json:"businessName,omitempty"`
	Status       TicketStatus `json:"status"`
	Channel      Channel      `json:"channel"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	ResolvedAt   *time.Time   `json:"resolvedAt,omitempty"`

	AssignedAdminName  string `json:"assignedAdminName,omitempty"`
	AssignedAdminEmail string `json:"assignedAdminEmail,omitempty"`

	UnreadByClient int `json:"unreadByClient"`
	UnreadByAdmin  int `json:"unreadByAdmin"`

	// SLADueAt is set when a human-channel obligation is created and
	// cleared on resolution.
	SLADueAt *time.Time `json:"slaDueAt,omitempty"`

	// Lead linkage, present only when the client is an anonymous lead
	// rather than a signed-up account.
	IsLead               bool             `json:"isLead,omitempty"`
	LeadID               string           `json:"leadId,omitempty"`
	LeadLabel            string           `json:"leadLabel,omitempty"`
	LeadFullName         string           `json:"leadFullName,omitempty"`
	LeadContactEmail     string           `json:"leadContactEmail,omitempty"`
	LeadOrganizationType OrganizationType `json:"leadOrganizationType,omitempty"`
	LeadCategories       []LeadCategory   `json:"leadCategories,omitempty"`
	LeadIntakeStage      IntakeStage      `json:"leadIntakeStage,omitempty"`
	LeadIPAddress        string           `json:"leadIpAddress,omitempty"`
	LeadLocation         string           `json:"leadLocation,omitempty"`

	Messages []Message `json:"messages"`
}

// AppendMessage adds msg to the thread and stamps UpdatedAt. Unread
// accounting is charged only for messages that are already confirmed sent;
// messages still in flight are charged when their delivery resolves.
func (t *Ticket) AppendMessage(msg Message) {
	t.Messages = append(t.Messages, msg)
	if msg.CreatedAt.After(t.UpdatedAt) {
		t.UpdatedAt = msg.CreatedAt
	}
	if msg.DeliveryStatus == DeliverySent {
		t.ChargeUnread(msg.Sender)
	}
}

// ChargeUnread increments the unread counter of the side that did not author
// the message: client messages charge the admin side, everything else charges
// the client side.
func (t *Ticket) ChargeUnread(sender Sender) {
	if sender == SenderClient {
		t.UnreadByAdmin++
	} else {
		t.UnreadByClient++
	}
}

// MessageByID returns a pointer into the thread, or nil.
func (t *Ticket) MessageByID(id string) *Message {
	for i := range t.Messages {
		if t.Messages[i].ID == id {
			return &t.Messages[i]
		}
	}
	return nil
}

// SortTicketsByActivity orders tickets most-recently-updated first.
func SortTicketsByActivity(tickets []Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].UpdatedAt.After(tickets[j].UpdatedAt)
	})
}
