package auth

import (
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID     uuid.UUID
	ActiveRole enums.Role
	Roles      []enums.Role
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to clients. The
// active role drives authorization for the request; the full role set
// lets clients offer a role switcher without re-authenticating.
type AccessTokenClaims struct {
	UserID     uuid.UUID    `json:"user_id"`
	ActiveRole enums.Role   `json:"active_role"`
	Roles      []enums.Role `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token grants the given role.
func (c *AccessTokenClaims) HasRole(role enums.Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
