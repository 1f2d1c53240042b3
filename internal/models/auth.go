package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims are the session claims issued by the identity provider.
type JWTClaims struct {
	UserID   string   `json:"sub_id,omitempty"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	ImageURL string   `json:"image_url,omitempty"`
	Role     UserRole `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// CallerID returns the caller id, preferring the explicit claim over sub.
func (c *JWTClaims) CallerID() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}
