package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/sched"
	"github.com/spec-kit/support-chat/internal/service"
	apperrors "github.com/spec-kit/support-chat/pkg/util"

	"github.com/google/uuid"
)

// ChatHandler serves the visitor-facing chat widget endpoints.
type ChatHandler struct {
	tickets  *service.TicketService
	leads    *service.LeadService
	delivery *service.DeliveryService
	clock    sched.Clock
}

// NewChatHandler constructs handler.
func NewChatHandler(tickets *service.TicketService, leads *service.LeadService, delivery *service.DeliveryService, clock sched.Clock) *ChatHandler {
	return &ChatHandler{tickets: tickets, leads: leads, delivery: delivery, clock: clock}
}

// GetActiveTicket GET /chat/ticket. Returns the visitor's active thread,
// creating one when none exists.
func (h *ChatHandler) GetActiveTicket(c *fiber.Ctx) error {
	identity, err := h.visitorIdentity(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.EnsureTicket(c.Context(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.detail(ticket)})
}

// StartNewThread POST /chat/ticket/new.
func (h *ChatHandler) StartNewThread(c *fiber.Ctx) error {
	identity, err := h.visitorIdentity(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.StartNewThread(c.Context(), identity)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": h.detail(ticket)})
}

// SendMessage POST /chat/ticket/:id/messages.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	identity, err := h.ownTicket(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	senderName := identity.Name
	if senderName == "" {
		senderName = "Visitor"
	}
	msg, err := h.delivery.Send(c.Context(), c.Params("id"), domain.SenderClient, senderName, req.Text, toAttachments(req.Attachments))
	if err != nil {
		return err
	}
	resp := dto.ToMessageResponse(msg)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": resp})
}

// RetryMessage POST /chat/ticket/:id/messages/:messageId/retry.
func (h *ChatHandler) RetryMessage(c *fiber.Ctx) error {
	if _, err := h.ownTicket(c); err != nil {
		return err
	}
	msg, err := h.delivery.Retry(c.Context(), c.Params("id"), c.Params("messageId"))
	if err != nil {
		return err
	}
	resp := dto.ToMessageResponse(msg)
	return c.JSON(fiber.Map{"data": resp})
}

// RequestHuman POST /chat/ticket/:id/request-human.
func (h *ChatHandler) RequestHuman(c *fiber.Ctx) error {
	if _, err := h.ownTicket(c); err != nil {
		return err
	}
	ticket, err := h.tickets.RequestHumanSupport(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.detail(ticket)})
}

// MarkRead POST /chat/ticket/:id/read.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	if _, err := h.ownTicket(c); err != nil {
		return err
	}
	if err := h.tickets.MarkReadByClient(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ownTicket resolves the caller's identity and verifies the :id ticket
// belongs to their client partition. The path parameter alone is not proof
// of ownership.
func (h *ChatHandler) ownTicket(c *fiber.Ctx) (service.ClientIdentity, error) {
	identity, err := h.visitorIdentity(c)
	if err != nil {
		return service.ClientIdentity{}, err
	}
	if _, err := h.tickets.TicketForClient(c.Params("id"), identity.Email); err != nil {
		return service.ClientIdentity{}, err
	}
	return identity, nil
}

func (h *ChatHandler) visitorIdentity(c *fiber.Ctx) (service.ClientIdentity, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Claims == nil || principal.Claims.Subject != auth.SubjectVisitor {
		return service.ClientIdentity{}, apperrors.NewUnauthorized("visitor session required")
	}

	lead, err := h.leads.ResumeSession(c.Context(), principal.Claims.LeadID)
	if err != nil {
		return service.ClientIdentity{}, err
	}
	if lead == nil {
		return service.ClientIdentity{}, apperrors.NewUnauthorized("session no longer valid, start a new visitor session")
	}
	name := lead.FullName
	if name == "" {
		name = lead.Label
	}
	return service.ClientIdentity{
		Email: lead.ClientEmail,
		Name:  name,
		Lead:  lead,
	}, nil
}

func (h *ChatHandler) detail(t *domain.Ticket) dto.TicketDetailResponse {
	now := h.clock.Now()
	return dto.ToTicketDetail(t, now, service.FormatSLACountdown(t.SLADueAt, now))
}

func toAttachments(in []dto.AttachmentRequest) []domain.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, domain.Attachment{
			ID:       uuid.NewString(),
			Name:     a.Name,
			MimeType: a.MimeType,
			Size:     a.Size,
			CacheKey: a.CacheKey,
			Preview:  a.Preview,
		})
	}
	return out
}
