package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/service"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

// SessionHandler issues agent login sessions and visitor chat sessions.
type SessionHandler struct {
	tokens *auth.TokenManager
	leads  *service.LeadService
	agent  config.AuthConfig
}

// NewSessionHandler constructs handler.
func NewSessionHandler(tokens *auth.TokenManager, leads *service.LeadService, agent config.AuthConfig) *SessionHandler {
	return &SessionHandler{tokens: tokens, leads: leads, agent: agent}
}

// AgentLogin POST /auth/agent/login.
func (h *SessionHandler) AgentLogin(c *fiber.Ctx) error {
	var req dto.AgentLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	if email != strings.ToLower(h.agent.AgentEmail) {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(h.agent.AgentPasswordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateAgentToken(h.agent.AgentName, h.agent.AgentEmail)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.AgentLoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Name:      h.agent.AgentName,
		Email:     h.agent.AgentEmail,
	}})
}

// StartVisitorSession POST /session/visitor. Creates (or dedupes) the lead
// identity for this visitor and issues a long-lived token carrying the
// binding.
func (h *SessionHandler) StartVisitorSession(c *fiber.Ctx) error {
	var req dto.StartVisitorSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	var (
		lead *domain.Lead
		err  error
	)
	if strings.TrimSpace(req.Email) != "" {
		lead, err = h.leads.RegisterNewsletterLead(c.Context(), req.FullName, req.Email, req.Source)
	} else {
		lead, err = h.leads.RegisterInquiryLead(c.Context(), req.Source)
	}
	if err != nil {
		return err
	}

	if err := h.leads.BindSession(c.Context(), lead.ID, lead); err != nil {
		return err
	}

	binding := domain.SessionBinding{
		LeadID:      lead.ID,
		LeadLabel:   lead.Label,
		ClientEmail: lead.ClientEmail,
	}
	token, expiresAt, err := h.tokens.GenerateVisitorToken(binding)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.VisitorSessionResponse{
		Token:       token,
		ExpiresAt:   expiresAt,
		LeadID:      binding.LeadID,
		LeadLabel:   binding.LeadLabel,
		ClientEmail: binding.ClientEmail,
	}})
}

// ResumeVisitorSession GET /session/visitor. Re-reads the stored binding so
// a returning visitor lands on the surviving lead after merges.
func (h *SessionHandler) ResumeVisitorSession(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Claims == nil || principal.Claims.Subject != auth.SubjectVisitor {
		return apperrors.NewUnauthorized("visitor session required")
	}

	lead, err := h.leads.ResumeSession(c.Context(), principal.Claims.LeadID)
	if err != nil {
		return err
	}
	if lead == nil {
		// Valid token, but the durable binding is gone. The visitor has to
		// register a fresh session.
		return apperrors.NewUnauthorized("session no longer valid, start a new visitor session")
	}

	binding := domain.SessionBinding{
		LeadID:      lead.ID,
		LeadLabel:   lead.Label,
		ClientEmail: lead.ClientEmail,
	}
	token, expiresAt, err := h.tokens.GenerateVisitorToken(binding)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.VisitorSessionResponse{
		Token:       token,
		ExpiresAt:   expiresAt,
		LeadID:      binding.LeadID,
		LeadLabel:   binding.LeadLabel,
		ClientEmail: binding.ClientEmail,
	}})
}
