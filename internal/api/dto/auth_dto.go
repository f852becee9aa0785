package dto

import "time"

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest payload for POST /auth/password/change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AuthResponse standard response for token-issuing endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"`
}

// NewAuthResponse builds a bearer AuthResponse relative to now.
func NewAuthResponse(token string, expiresAt, now time.Time) AuthResponse {
	expiresIn := int64(expiresAt.Sub(now).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return AuthResponse{Token: token, TokenType: "Bearer", ExpiresAt: expiresAt.UTC(), ExpiresIn: expiresIn}
}
