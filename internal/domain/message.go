package domain

import "time"

// Sender indicates who authored a message.
type Sender string

const (
	SenderClient Sender = "client"
	SenderAgent  Sender = "agent"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// DeliveryStatus tracks the per-message transport state machine:
// sending -> {sent | failed}, failed -> sending on retry.
type DeliveryStatus string

const (
	DeliverySending DeliveryStatus = "sending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Message is one utterance inside a ticket.
type Message struct {
	ID         string    `json:"id"`
	Sender     Sender    `json:"sender"`
	SenderName string    `json:"senderName,omitempty"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`

	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
	DeliveryError  string         `json:"deliveryError,omitempty"`
	RetryCount     int            `json:"retryCount,omitempty"`

	// Read flags are independent of delivery status.
	ReadByClient bool `json:"readByClient"`
	ReadByAdmin  bool `json:"readByAdmin"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment describes a file carried by a message. The bytes themselves live
// in external blob storage behind CacheKey; Preview optionally carries a small
// inline data URL when blob storage was unavailable at upload time.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"type"`
	Size     int64  `json:"size"`
	CacheKey string `json:"cacheKey,omitempty"`
	Preview  string `json:"preview,omitempty"`
}
