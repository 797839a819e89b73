package dto

import (
	"time"

	"github.com/spec-kit/support-chat/internal/domain"
)

// SendMessageRequest payload.
type SendMessageRequest struct {
	Text        string              `json:"text"`
	Attachments []AttachmentRequest `json:"attachments,omitempty"`
}

// AttachmentRequest describes one uploaded file reference.
type AttachmentRequest struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	CacheKey string `json:"cache_key,omitempty"`
	Preview  string `json:"preview,omitempty"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AdminName  string `json:"admin_name"`
	AdminEmail string `json:"admin_email"`
}

// MessageResponse represents one thread message.
type MessageResponse struct {
	ID             string               `json:"id"`
	Sender         domain.Sender        `json:"sender"`
	SenderName     string               `json:"sender_name"`
	Text           string               `json:"text"`
	CreatedAt      time.Time            `json:"created_at"`
	DeliveryStatus string               `json:"delivery_status"`
	DeliveryError  string               `json:"delivery_error,omitempty"`
	RetryCount     int                  `json:"retry_count"`
	ReadByClient   bool                 `json:"read_by_client"`
	ReadByAdmin    bool                 `json:"read_by_admin"`
	Attachments    []AttachmentResponse `json:"attachments,omitempty"`
}

// AttachmentResponse describes one stored attachment.
type AttachmentResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	CacheKey string `json:"cache_key,omitempty"`
	Preview  string `json:"preview,omitempty"`
}

// TicketSummary response for list views.
type TicketSummary struct {
	ID             string              `json:"id"`
	ClientEmail    string              `json:"client_email"`
	ClientName     string              `json:"client_name"`
	BusinessName   string              `json:"business_name,omitempty"`
	Status         domain.TicketStatus `json:"status"`
	Channel        domain.Channel      `json:"channel"`
	UnreadByClient int                 `json:"unread_by_client"`
	UnreadByAdmin  int                 `json:"unread_by_admin"`
	SLADueAt       *time.Time          `json:"sla_due_at,omitempty"`
	SLACountdown   string              `json:"sla_countdown,omitempty"`
	IsLead         bool                `json:"is_lead,omitempty"`
	LeadLabel      string              `json:"lead_label,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides the full conversation thread.
type TicketDetailResponse struct {
	TicketSummary
	AssignedAdminName  string            `json:"assigned_admin_name,omitempty"`
	AssignedAdminEmail string            `json:"assigned_admin_email,omitempty"`
	ResolvedAt         *time.Time        `json:"resolved_at,omitempty"`
	LeadFullName       string            `json:"lead_full_name,omitempty"`
	LeadContactEmail   string            `json:"lead_contact_email,omitempty"`
	LeadIntakeStage    string            `json:"lead_intake_stage,omitempty"`
	LeadLocation       string            `json:"lead_location,omitempty"`
	Messages           []MessageResponse `json:"messages"`
}

// ThreadGroupResponse is one admin inbox row.
type ThreadGroupResponse struct {
	ClientEmail  string          `json:"client_email"`
	ClientName   string          `json:"client_name"`
	BusinessName string          `json:"business_name,omitempty"`
	IsLead       bool            `json:"is_lead,omitempty"`
	LeadLabel    string          `json:"lead_label,omitempty"`
	UnreadTotal  int             `json:"unread_total"`
	Active       *TicketSummary  `json:"active,omitempty"`
	Tickets      []TicketSummary `json:"tickets"`
}

// ToMessageResponse maps a domain message.
func ToMessageResponse(m *domain.Message) MessageResponse {
	attachments := make([]AttachmentResponse, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, AttachmentResponse{
			ID:       a.ID,
			Name:     a.Name,
			MimeType: a.MimeType,
			Size:     a.Size,
			CacheKey: a.CacheKey,
			Preview:  a.Preview,
		})
	}
	return MessageResponse{
		ID:             m.ID,
		Sender:         m.Sender,
		SenderName:     m.SenderName,
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
		DeliveryStatus: string(m.DeliveryStatus),
		DeliveryError:  m.DeliveryError,
		RetryCount:     m.RetryCount,
		ReadByClient:   m.ReadByClient,
		ReadByAdmin:    m.ReadByAdmin,
		Attachments:    attachments,
	}
}

// ToTicketSummary maps a domain ticket, rendering the SLA countdown at now.
func ToTicketSummary(t *domain.Ticket, now time.Time, slaCountdown string) TicketSummary {
	return TicketSummary{
		ID:             t.ID,
		ClientEmail:    t.ClientEmail,
		ClientName:     t.ClientName,
		BusinessName:   t.BusinessName,
		Status:         t.Status,
		Channel:        t.Channel,
		UnreadByClient: t.UnreadByClient,
		UnreadByAdmin:  t.UnreadByAdmin,
		SLADueAt:       t.SLADueAt,
		SLACountdown:   slaCountdown,
		IsLead:         t.IsLead,
		LeadLabel:      t.LeadLabel,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// ToTicketDetail maps the full thread.
func ToTicketDetail(t *domain.Ticket, now time.Time, slaCountdown string) TicketDetailResponse {
	messages := make([]MessageResponse, 0, len(t.Messages))
	for i := range t.Messages {
		messages = append(messages, ToMessageResponse(&t.Messages[i]))
	}
	return TicketDetailResponse{
		TicketSummary:      ToTicketSummary(t, now, slaCountdown),
		AssignedAdminName:  t.AssignedAdminName,
		AssignedAdminEmail: t.AssignedAdminEmail,
		ResolvedAt:         t.ResolvedAt,
		LeadFullName:       t.LeadFullName,
		LeadContactEmail:   t.LeadContactEmail,
		LeadIntakeStage:    string(t.LeadIntakeStage),
		LeadLocation:       t.LeadLocation,
		Messages:           messages,
	}
}
