package events

import (
	"time"

	"github.com/spec-kit/token-authority/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTokenIssued     EventType = "token_issued"
	EventTokenRevoked    EventType = "token_revoked"
	EventTokenRejected   EventType = "token_rejected"
	EventLoginFailed     EventType = "login_failed"
	EventPasswordChanged EventType = "password_changed"
	EventUserCreated     EventType = "user_created"
)

// Event represents something that happened to an identity or one of its tokens.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TokenIssuedPayload payload.
type TokenIssuedPayload struct {
	TokenID   string    `json:"token_id,omitempty"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenRevokedPayload payload.
type TokenRevokedPayload struct {
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenRejectedPayload payload. Code is the failure kind, never the token.
type TokenRejectedPayload struct {
	Code     string `json:"code"`
	Method   string `json:"method"`
	Path     string `json:"path"`
	RemoteIP string `json:"remote_ip"`
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Email    string `json:"email"`
	RemoteIP string `json:"remote_ip"`
}

// UserCreatedPayload payload.
type UserCreatedPayload struct {
	UserID    string `json:"user_id"`
	CreatedBy string `json:"created_by,omitempty"`
}
