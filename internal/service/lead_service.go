package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/bot"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/geo"
	"github.com/spec-kit/support-chat/internal/sched"
	"github.com/spec-kit/support-chat/internal/store"
	"github.com/spec-kit/support-chat/pkg/util"
)

// Locator is the geolocation collaborator boundary.
type Locator interface {
	Lookup(ctx context.Context) (*geo.Info, error)
}

// LeadService normalizes lead identities, runs the intake conversation
// state machine, and merges duplicates discovered mid-conversation.
type LeadService struct {
	store       *store.Store
	clock       sched.Clock
	locator     Locator
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	aliasDomain string
}

// LeadDependencies bundles collaborators for the lead service.
type LeadDependencies struct {
	Store       *store.Store
	Clock       sched.Clock
	Locator     Locator
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	AliasDomain string
}

// NewLeadService constructs the service.
func NewLeadService(deps LeadDependencies) *LeadService {
	return &LeadService{
		store:       deps.Store,
		clock:       deps.Clock,
		locator:     deps.Locator,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		aliasDomain: deps.AliasDomain,
	}
}

// IntakeOutcome reports what the intake machine did with a delivered client
// message.
type IntakeOutcome struct {
	// Handled is true when the machine consumed the text as intake data or
	// a repeated prompt; the caller takes no further action unless
	// Completed is also set.
	Handled bool
	// Completed is true when this message finished intake.
	Completed bool
	// EffectiveText is the completed inquiry text to feed the normal
	// escalation and bot-reply path.
	EffectiveText string
	// MergedLeadID is set when the message triggered a duplicate merge.
	MergedLeadID string
}

// RegisterInquiryLead creates a fresh anonymous lead with an alias address
// derived from the global lead sequence, entering the intake conversation.
func (s *LeadService) RegisterInquiryLead(ctx context.Context, source string) (*domain.Lead, error) {
	seq, err := s.store.NextLeadNumber(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	lead := domain.Lead{
		ID:               uuid.NewString(),
		LeadNumber:       seq,
		Label:            domain.LeadLabel(seq),
		ClientEmail:      domain.AliasEmail(seq, s.aliasDomain),
		OrganizationType: domain.OrgTypeUnknown,
		Categories:       []domain.LeadCategory{domain.CategoryInquiryFollowUp},
		IntakeStage:      domain.StageAwaitingFullName,
		CreatedAt:        now,
		UpdatedAt:        now,
		Source:           source,
	}
	err = s.store.MutateLeads(ctx, func(leads []domain.Lead) []domain.Lead {
		return append(leads, lead)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:    events.EventLeadCreated,
		LeadID:  lead.ID,
		Payload: events.LeadCreatedPayload{LeadNumber: seq, Source: source},
	})
	return &lead, nil
}

// RegisterNewsletterLead records a newsletter signup, which arrives with
// name and email already known and is intake-complete immediately. A signup
// matching an existing contact email augments that lead instead of creating
// a duplicate.
func (s *LeadService) RegisterNewsletterLead(ctx context.Context, fullName, email, source string) (*domain.Lead, error) {
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return nil, util.NewValidationError("valid email required", map[string]any{"email": email})
	}

	var resultID string
	created := false
	err := s.store.MutateLeads(ctx, func(leads []domain.Lead) []domain.Lead {
		now := s.clock.Now()
		if existing := findLeadByContactEmail(leads, email); existing != nil {
			existing.AddCategory(domain.CategoryNewsletterSubscriber)
			if existing.FullName == "" {
				existing.FullName = fullName
			}
			existing.UpdatedAt = now
			resultID = existing.ID
			return leads
		}

		seq, err := s.store.NextLeadNumber(ctx)
		if err != nil {
			s.logger.Error("lead sequence unavailable", zap.Error(err))
			return leads
		}
		lead := domain.Lead{
			ID:               uuid.NewString(),
			LeadNumber:       seq,
			Label:            domain.LeadLabel(seq),
			ClientEmail:      domain.AliasEmail(seq, s.aliasDomain),
			FullName:         fullName,
			ContactEmail:     email,
			OrganizationType: domain.OrgTypeUnknown,
			Categories:       []domain.LeadCategory{domain.CategoryNewsletterSubscriber},
			IntakeStage:      domain.StageComplete,
			CreatedAt:        now,
			UpdatedAt:        now,
			Source:           source,
		}
		resultID = lead.ID
		created = true
		return append(leads, lead)
	})
	if err != nil {
		return nil, err
	}
	if resultID == "" {
		return nil, util.NewInternalError(nil)
	}
	if created {
		s.publish(ctx, events.Event{Type: events.EventLeadCreated, LeadID: resultID,
			Payload: events.LeadCreatedPayload{Source: source}})
	}
	return s.getLead(resultID)
}

// BindSession persists the anonymous-visitor-to-lead binding.
func (s *LeadService) BindSession(ctx context.Context, visitorID string, lead *domain.Lead) error {
	return s.store.SaveSession(ctx, visitorID, domain.SessionBinding{
		LeadID:      lead.ID,
		LeadLabel:   lead.Label,
		ClientEmail: lead.ClientEmail,
	})
}

// ResumeSession returns the lead bound to a returning visitor, or nil when
// no binding survives. A binding whose lead merged away self-heals through
// the ticket partition.
func (s *LeadService) ResumeSession(ctx context.Context, visitorID string) (*domain.Lead, error) {
	binding, err := s.store.LoadSession(ctx, visitorID)
	if err != nil || binding == nil {
		return nil, err
	}
	snap := s.store.Snapshot()
	if lead := findLeadByID(snap.Leads, binding.LeadID); lead != nil {
		return lead, nil
	}
	for i := range snap.Tickets {
		t := &snap.Tickets[i]
		if t.ClientEmail == binding.ClientEmail && t.LeadID != "" {
			if lead := findLeadByID(snap.Leads, t.LeadID); lead != nil {
				return lead, nil
			}
		}
	}
	return nil, nil
}

// AdvanceIntake runs the intake state machine against a successfully
// delivered client message on the given ticket. Rejected input repeats the
// current prompt; accepted input advances the stage; an email matching
// another lead merges the two records and re-points every linked ticket.
func (s *LeadService) AdvanceIntake(ctx context.Context, ticketID, text string) (IntakeOutcome, error) {
	var outcome IntakeOutcome
	var mergedEvent *events.Event

	err := s.store.Mutate(ctx, func(snap *store.Snapshot) {
		t := findTicket(snap.Tickets, ticketID)
		if t == nil || !t.IsLead {
			return
		}
		lead := findLeadByID(snap.Leads, t.LeadID)
		if lead == nil {
			return
		}
		now := s.clock.Now()

		switch lead.EffectiveStage() {
		case domain.StageComplete:
			return

		case domain.StageAwaitingFullName:
			name := cleanFullName(text)
			if name == "" || looksLikeEmail(name) {
				t.AppendMessage(newBotMessage(now, bot.NameRetryPrompt))
				outcome.Handled = true
				return
			}
			lead.FullName = name
			lead.IntakeStage = domain.StageAwaitingEmail
			lead.UpdatedAt = now
			s.syncLeadTickets(snap, lead)
			t = findTicket(snap.Tickets, ticketID)
			t.AppendMessage(newBotMessage(now, bot.EmailPrompt))
			outcome.Handled = true

		case domain.StageAwaitingEmail:
			email := normalizeEmail(text)
			if !isValidEmail(email) {
				t.AppendMessage(newBotMessage(now, bot.EmailRetryPrompt))
				outcome.Handled = true
				return
			}
			target := findLeadByContactEmail(snap.Leads, email)
			if target != nil && target.ID != lead.ID {
				merged := s.mergeLeads(snap, lead, target, now)
				outcome.MergedLeadID = merged.ID
				mergedEvent = &events.Event{
					Type:   events.EventLeadMerged,
					LeadID: merged.ID,
					Payload: events.LeadMergedPayload{
						SurvivingLeadID: merged.ID,
						RemovedLeadID:   lead.ID,
						ContactEmail:    email,
					},
				}
				lead = merged
			} else {
				lead.ContactEmail = email
				lead.IntakeStage = domain.StageAwaitingInquiry
				lead.UpdatedAt = now
				s.syncLeadTickets(snap, lead)
			}
			t = findTicket(snap.Tickets, ticketID)
			t.AppendMessage(newBotMessage(now, bot.InquiryPrompt))
			outcome.Handled = true

		case domain.StageAwaitingInquiry:
			if strings.TrimSpace(text) == "" {
				t.AppendMessage(newBotMessage(now, bot.InquiryPrompt))
				outcome.Handled = true
				return
			}
			lead.InquiryText = text
			lead.IntakeStage = domain.StageComplete
			lead.UpdatedAt = now
			s.syncLeadTickets(snap, lead)
			outcome.Handled = true
			outcome.Completed = true
			outcome.EffectiveText = text
		}
	})
	if err != nil {
		return IntakeOutcome{}, err
	}
	if mergedEvent != nil {
		s.publish(ctx, *mergedEvent)
	}
	if outcome.Completed {
		s.publish(ctx, events.Event{Type: events.EventLeadIntakeDone, TicketID: ticketID})
	}
	if outcome.Handled {
		s.publishUnread(ctx, ticketID)
	}
	return outcome, nil
}

// Enrich populates a lead's location fields from the geolocation
// collaborator. Failures degrade silently; conversation flow never waits on
// this call.
func (s *LeadService) Enrich(ctx context.Context, leadID string) {
	if s.locator == nil {
		return
	}
	info, err := s.locator.Lookup(ctx)
	if err != nil {
		s.logger.Debug("geolocation enrichment skipped", zap.String("lead_id", leadID), zap.Error(err))
		return
	}
	err = s.store.Mutate(ctx, func(snap *store.Snapshot) {
		lead := findLeadByID(snap.Leads, leadID)
		if lead == nil {
			return
		}
		lead.IPAddress = info.IPAddress
		lead.City = info.City
		lead.Region = info.Region
		lead.Country = info.Country
		lead.Location = info.Location
		lead.UpdatedAt = s.clock.Now()
		s.syncLeadTickets(snap, lead)
	})
	if err != nil {
		s.logger.Warn("persisting lead enrichment failed", zap.Error(err))
	}
}

// mergeLeads keeps target (matched by contact email) as the surviving
// identity, unions the conversation lead's name and categories into it,
// re-points every ticket linked to either lead, and drops the conversation
// lead record. Returns a pointer to the survivor inside snap. Tickets keep
// their alias ClientEmail; only the lead linkage moves.
func (s *LeadService) mergeLeads(snap *store.Snapshot, conversation, target *domain.Lead, now time.Time) *domain.Lead {
	removedID := conversation.ID
	removedAlias := conversation.ClientEmail
	targetID := target.ID

	if target.FullName == "" {
		target.FullName = conversation.FullName
	}
	for _, cat := range conversation.Categories {
		target.AddCategory(cat)
	}
	target.IntakeStage = domain.StageAwaitingInquiry
	target.UpdatedAt = now

	for i := range snap.Tickets {
		t := &snap.Tickets[i]
		if t.LeadID == removedID || t.LeadID == target.ID ||
			t.ClientEmail == removedAlias || t.ClientEmail == target.ClientEmail {
			syncTicketLead(t, target)
		}
	}

	kept := snap.Leads[:0]
	for i := range snap.Leads {
		if snap.Leads[i].ID != removedID {
			kept = append(kept, snap.Leads[i])
		}
	}
	snap.Leads = kept
	return findLeadByID(snap.Leads, targetID)
}

func (s *LeadService) syncLeadTickets(snap *store.Snapshot, lead *domain.Lead) {
	for i := range snap.Tickets {
		if snap.Tickets[i].LeadID == lead.ID {
			syncTicketLead(&snap.Tickets[i], lead)
		}
	}
}

func (s *LeadService) getLead(id string) (*domain.Lead, error) {
	snap := s.store.Snapshot()
	lead := findLeadByID(snap.Leads, id)
	if lead == nil {
		return nil, util.NewNotFound("lead", map[string]any{"lead_id": id})
	}
	return lead, nil
}

func (s *LeadService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *LeadService) publishUnread(ctx context.Context, ticketID string) {
	s.publish(ctx, events.Event{
		Type:     events.EventUnreadIncreased,
		TicketID: ticketID,
		Payload:  events.UnreadIncreasedPayload{Side: "client", Count: 1},
	})
}
