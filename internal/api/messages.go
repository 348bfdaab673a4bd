// Package api defines the wire contract of the AuthService gRPC API: request
// and response messages, the service descriptor, and a typed client. Messages
// travel as JSON under the "json" content-subtype.
package api

import "time"

type RegisterRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type RefreshTokenRequest struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type WhoAmIRequest struct{}

type WhoAmIResponse struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}
