package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/sched"
	"github.com/spec-kit/support-chat/internal/service"
	"github.com/spec-kit/support-chat/internal/store"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

// InboxHandler serves the admin inbox endpoints.
type InboxHandler struct {
	store    *store.Store
	tickets  *service.TicketService
	delivery *service.DeliveryService
	clock    sched.Clock
}

// NewInboxHandler constructs handler.
func NewInboxHandler(st *store.Store, tickets *service.TicketService, delivery *service.DeliveryService, clock sched.Clock) *InboxHandler {
	return &InboxHandler{store: st, tickets: tickets, delivery: delivery, clock: clock}
}

// ListThreads GET /inbox/threads?q=&status=.
func (h *InboxHandler) ListThreads(c *fiber.Ctx) error {
	snap := h.store.Snapshot()
	tickets := snap.Tickets
	tickets = service.SearchThreads(tickets, c.Query("q"))
	tickets = service.FilterTicketsByStatus(tickets, domain.TicketStatus(c.Query("status")))

	now := h.clock.Now()
	groups := service.GroupThreads(tickets)
	items := make([]dto.ThreadGroupResponse, 0, len(groups))
	for _, g := range groups {
		row := dto.ThreadGroupResponse{
			ClientEmail:  g.ClientEmail,
			ClientName:   g.ClientName,
			BusinessName: g.BusinessName,
			IsLead:       g.IsLead,
			LeadLabel:    g.LeadLabel,
			UnreadTotal:  g.UnreadTotal,
			Tickets:      make([]dto.TicketSummary, 0, len(g.Tickets)),
		}
		for i := range g.Tickets {
			t := &g.Tickets[i]
			row.Tickets = append(row.Tickets, dto.ToTicketSummary(t, now, service.FormatSLACountdown(t.SLADueAt, now)))
		}
		if g.Active != nil {
			summary := dto.ToTicketSummary(g.Active, now, service.FormatSLACountdown(g.Active.SLADueAt, now))
			row.Active = &summary
		}
		items = append(items, row)
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /inbox/tickets/:id.
func (h *InboxHandler) GetTicket(c *fiber.Ctx) error {
	snap := h.store.Snapshot()
	for i := range snap.Tickets {
		if snap.Tickets[i].ID == c.Params("id") {
			return c.JSON(fiber.Map{"data": h.detail(&snap.Tickets[i])})
		}
	}
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": c.Params("id")})
}

// Reply POST /inbox/tickets/:id/messages.
func (h *InboxHandler) Reply(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || !principal.IsAgent() {
		return apperrors.NewForbidden("agent access required")
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	msg, err := h.delivery.Send(c.Context(), c.Params("id"), domain.SenderAgent, principal.Claims.Name, req.Text, toAttachments(req.Attachments))
	if err != nil {
		return err
	}
	resp := dto.ToMessageResponse(msg)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": resp})
}

// Assign POST /inbox/tickets/:id/assign.
func (h *InboxHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || !principal.IsAgent() {
		return apperrors.NewForbidden("agent access required")
	}
	ticket, err := h.tickets.Assign(c.Context(), c.Params("id"), principal.Claims.Name, principal.Claims.Email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.detail(ticket)})
}

// Resolve POST /inbox/tickets/:id/resolve.
func (h *InboxHandler) Resolve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || !principal.IsAgent() {
		return apperrors.NewForbidden("agent access required")
	}
	ticket, err := h.tickets.Resolve(c.Context(), c.Params("id"), principal.Claims.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.detail(ticket)})
}

// Reopen POST /inbox/tickets/:id/reopen.
func (h *InboxHandler) Reopen(c *fiber.Ctx) error {
	ticket, err := h.tickets.Reopen(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.detail(ticket)})
}

// MarkRead POST /inbox/tickets/:id/read.
func (h *InboxHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.tickets.MarkReadByAdmin(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *InboxHandler) detail(t *domain.Ticket) dto.TicketDetailResponse {
	now := h.clock.Now()
	return dto.ToTicketDetail(t, now, service.FormatSLACountdown(t.SLADueAt, now))
}
