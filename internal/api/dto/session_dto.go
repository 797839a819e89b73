package dto

import "time"

// AgentLoginRequest payload.
type AgentLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AgentLoginResponse carries the issued session token.
type AgentLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
}

// StartVisitorSessionRequest payload. Newsletter-originated visitors arrive
// with a name and email already captured; anonymous inquiry visitors with
// neither.
type StartVisitorSessionRequest struct {
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Source   string `json:"source,omitempty"`
}

// VisitorSessionResponse carries the visitor token and lead binding.
type VisitorSessionResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	LeadID      string    `json:"lead_id"`
	LeadLabel   string    `json:"lead_label"`
	ClientEmail string    `json:"client_email"`
}
