package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims carry the caller identity. OrganizationID scopes every tenant read
// and write; a token without one is rejected.
type Claims struct {
	jwt.RegisteredClaims

	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Role           string    `json:"role"`
	TokenType      TokenType `json:"token_type"`
}
