package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/support-chat/internal/domain"
)

// SubjectType distinguishes the two caller kinds.
type SubjectType string

const (
	SubjectAgent   SubjectType = "agent"
	SubjectVisitor SubjectType = "visitor"
)

// TokenManager handles issuing and validating JWT tokens. Visitor tokens are
// long-lived so an anonymous visitor keeps the same lead identity across
// page loads; agent tokens are short-lived login sessions.
type TokenManager struct {
	secret     []byte
	agentTTL   time.Duration
	visitorTTL time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, agentTTLMinutes, visitorTTLDays int) *TokenManager {
	if agentTTLMinutes <= 0 {
		agentTTLMinutes = 60
	}
	if visitorTTLDays <= 0 {
		visitorTTLDays = 30
	}
	return &TokenManager{
		secret:     []byte(secret),
		agentTTL:   time.Duration(agentTTLMinutes) * time.Minute,
		visitorTTL: time.Duration(visitorTTLDays) * 24 * time.Hour,
	}
}

// Claims describes JWT payload. Visitor tokens embed the lead session
// binding so a returning visitor resumes the same conversation identity.
type Claims struct {
	Subject     SubjectType `json:"subject"`
	Name        string      `json:"name,omitempty"`
	Email       string      `json:"email,omitempty"`
	LeadID      string      `json:"lead_id,omitempty"`
	LeadLabel   string      `json:"lead_label,omitempty"`
	ClientEmail string      `json:"client_email,omitempty"`
	jwt.RegisteredClaims
}

// Binding reconstructs the visitor's session binding from the claims.
func (c *Claims) Binding() domain.SessionBinding {
	return domain.SessionBinding{
		LeadID:      c.LeadID,
		LeadLabel:   c.LeadLabel,
		ClientEmail: c.ClientEmail,
	}
}

// GenerateAgentToken signs a login session token for the support agent.
func (tm *TokenManager) GenerateAgentToken(name, email string) (string, time.Time, error) {
	expiresAt := time.Now().Add(tm.agentTTL)
	claims := &Claims{
		Subject: SubjectAgent,
		Name:    name,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return tm.sign(claims, expiresAt)
}

// GenerateVisitorToken signs a token carrying the visitor's lead binding.
func (tm *TokenManager) GenerateVisitorToken(binding domain.SessionBinding) (string, time.Time, error) {
	expiresAt := time.Now().Add(tm.visitorTTL)
	claims := &Claims{
		Subject:     SubjectVisitor,
		LeadID:      binding.LeadID,
		LeadLabel:   binding.LeadLabel,
		ClientEmail: binding.ClientEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   binding.LeadID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return tm.sign(claims, expiresAt)
}

func (tm *TokenManager) sign(claims *Claims, expiresAt time.Time) (string, time.Time, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
