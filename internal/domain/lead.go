package domain

import (
	"fmt"
	"time"
)

// IntakeStage tracks a lead's progress through the required-field
// collection conversation.
type IntakeStage string

const (
	StageAwaitingFullName IntakeStage = "awaiting_full_name"
	StageAwaitingEmail    IntakeStage = "awaiting_email"
	StageAwaitingInquiry  IntakeStage = "awaiting_inquiry"
	StageComplete         IntakeStage = "complete"
)

// OrganizationType classifies the organization behind a lead.
type OrganizationType string

const (
	OrgTypeBusiness   OrganizationType = "business"
	OrgTypeNonProfit  OrganizationType = "non-profit"
	OrgTypeIndividual OrganizationType = "individual"
	OrgTypeUnknown    OrganizationType = "unknown"
)

// LeadCategory is the closed set of lead origins.
type LeadCategory string

const (
	CategoryInquiryFollowUp      LeadCategory = "Inquiry_FollowUp"
	CategoryNewsletterSubscriber LeadCategory = "Newsletter_Subscriber"
	CategoryGeneral              LeadCategory = "General"
)

// Lead is a durable identity for a visitor who has not authenticated.
// ClientEmail holds the alias address derived from LeadNumber and keeps
// serving as the ticket partition key even after the real ContactEmail is
// captured.
type Lead struct {
	ID         string `json:"id"`
	LeadNumber int64  `json:"leadNumber"`
	Label      string `json:"leadLabel"`

	ClientEmail      string           `json:"clientEmail"`
	FullName         string           `json:"fullName,omitempty"`
	ContactEmail     string           `json:"contactEmail,omitempty"`
	OrganizationType OrganizationType `json:"organizationType"`
	Categories       []LeadCategory   `json:"leadCategories,omitempty"`

	IntakeStage IntakeStage `json:"intakeStage,omitempty"`
	InquiryText string      `json:"inquiryText,omitempty"`

	// Enrichment fields are populated asynchronously from the geolocation
	// collaborator, best effort.
	IPAddress string `json:"ipAddress,omitempty"`
	City      string `json:"city,omitempty"`
	Region    string `json:"region,omitempty"`
	Country   string `json:"country,omitempty"`
	Location  string `json:"location,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Source    string    `json:"source,omitempty"`
}

// HasCategory reports membership in the lead's category set.
func (l *Lead) HasCategory(c LeadCategory) bool {
	for _, have := range l.Categories {
		if have == c {
			return true
		}
	}
	return false
}

// AddCategory appends a category unless already present.
func (l *Lead) AddCategory(c LeadCategory) {
	if !l.HasCategory(c) {
		l.Categories = append(l.Categories, c)
	}
}

// EffectiveStage returns the stored intake stage when valid, otherwise
// derives it from which fields are populated, so the machine is self-healing
// from partial data. Only Inquiry_FollowUp leads run the intake conversation;
// every other lead is considered complete.
func (l *Lead) EffectiveStage() IntakeStage {
	if !l.HasCategory(CategoryInquiryFollowUp) {
		return StageComplete
	}
	switch l.IntakeStage {
	case StageAwaitingFullName, StageAwaitingEmail, StageAwaitingInquiry, StageComplete:
		return l.IntakeStage
	}
	if l.FullName == "" {
		return StageAwaitingFullName
	}
	if l.ContactEmail == "" {
		return StageAwaitingEmail
	}
	if l.InquiryText == "" {
		return StageAwaitingInquiry
	}
	return StageComplete
}

// IntakeComplete reports whether the lead still owes intake answers.
func (l *Lead) IntakeComplete() bool {
	return l.EffectiveStage() == StageComplete
}

// AliasEmail derives the stable alias address for a lead number, used as the
// ticket partition key before a real contact email is known.
func AliasEmail(leadNumber int64, aliasDomain string) string {
	return fmt.Sprintf("lead-%d@%s", leadNumber, aliasDomain)
}

// LeadLabel derives the default display name for a lead number.
func LeadLabel(leadNumber int64) string {
	return fmt.Sprintf("Lead %d", leadNumber)
}

// SessionBinding ties an anonymous visitor back to its lead identity so a
// returning visitor resumes the same conversation partition.
type SessionBinding struct {
	LeadID      string `json:"leadId"`
	LeadLabel   string `json:"leadLabel"`
	ClientEmail string `json:"clientEmail"`
}
