package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role scopes what a caller may do with platform money.
type Role string

const (
	// RoleMember is a marketplace user acting on their own customer and connected account.
	RoleMember Role = "member"
	// RoleOperator is platform staff: payouts, refunds and catalog management.
	RoleOperator Role = "operator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleOperator:
		return true
	default:
		return false
	}
}

// AccessTokenClaims is the identity carried by bearer tokens from the identity provider.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role,omitempty"`
	jwt.RegisteredClaims
}
