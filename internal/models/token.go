package models

import "time"

// TokenKind distinguishes access tokens from refresh tokens. A token of one
// kind is never accepted where the other is required.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// RefreshToken is the persisted record backing one issued refresh token.
// The record transitions revoked=false -> revoked=true at most once, either
// by rotation, logout, or administrative invalidation. Rows survive as the
// replay-detection trail until the token expires; only then may maintenance
// prune them.
type RefreshToken struct {
	JTI       string     `db:"jti" json:"jti"`
	UserID    string     `db:"user_id" json:"user_id"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
}
