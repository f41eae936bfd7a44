package models

import "github.com/golang-jwt/jwt/v5"

// HostClaims is the JWT payload accepted on host-facing endpoints. Token
// issuance lives in the identity system, not here; this service only verifies.
type HostClaims struct {
	HostID string `json:"host_id"`
	Slug   string `json:"slug"`
	Email  string `json:"email"`
	Admin  bool   `json:"admin"`
	jwt.RegisteredClaims
}

// CanManage reports whether the claims grant access to the given host slug.
func (c *HostClaims) CanManage(slug string) bool {
	if c == nil {
		return false
	}
	return c.Admin || c.Slug == slug
}
