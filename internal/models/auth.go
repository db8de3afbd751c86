package models

import "github.com/golang-jwt/jwt/v5"

// Role values carried by externally-issued access tokens.
const (
	RoleStudent = "student"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

// JWTClaims are the claims this service trusts from the identity provider.
// Token issuance lives outside this service; we only validate.
type JWTClaims struct {
	Role     string `json:"role"`
	BranchID string `json:"branch_id"`
	jwt.RegisteredClaims
}

// Staff reports whether the claims carry staff-level access.
func (c *JWTClaims) Staff() bool {
	return c.Role == RoleStaff || c.Role == RoleAdmin
}
