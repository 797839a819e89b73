package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/http/handlers"
	"github.com/spec-kit/support-chat/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Session        *handlers.SessionHandler
	Chat           *handlers.ChatHandler
	Inbox          *handlers.InboxHandler
	Attachments    *handlers.AttachmentsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/agent/login", cfg.Session.AgentLogin)

	session := app.Group("/session")
	session.Post("/visitor", cfg.Session.StartVisitorSession)
	session.Get("/visitor", cfg.AuthMiddleware.Handle, cfg.Session.ResumeVisitorSession)

	chat := app.Group("/chat", cfg.AuthMiddleware.Handle, auth.RequireVisitor())
	chat.Get("/ticket", cfg.Chat.GetActiveTicket)
	chat.Post("/ticket/new", cfg.Chat.StartNewThread)
	chat.Post("/ticket/:id/messages", cfg.Chat.SendMessage)
	chat.Post("/ticket/:id/messages/:messageId/retry", cfg.Chat.RetryMessage)
	chat.Post("/ticket/:id/request-human", cfg.Chat.RequestHuman)
	chat.Post("/ticket/:id/read", cfg.Chat.MarkRead)

	inbox := app.Group("/inbox", cfg.AuthMiddleware.Handle, auth.RequireAgent())
	inbox.Get("/threads", cfg.Inbox.ListThreads)
	inbox.Get("/tickets/:id", cfg.Inbox.GetTicket)
	inbox.Post("/tickets/:id/messages", cfg.Inbox.Reply)
	inbox.Post("/tickets/:id/assign", cfg.Inbox.Assign)
	inbox.Post("/tickets/:id/resolve", cfg.Inbox.Resolve)
	inbox.Post("/tickets/:id/reopen", cfg.Inbox.Reopen)
	inbox.Post("/tickets/:id/read", cfg.Inbox.MarkRead)

	attachments := app.Group("/attachments", cfg.AuthMiddleware.Handle)
	attachments.Post("/", cfg.Attachments.Upload)
	attachments.Get("/:cacheKey", cfg.Attachments.Download)
}
