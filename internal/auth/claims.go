package auth

import "github.com/golang-jwt/jwt/v5"

// ClaimSet represents the verified payload of an access token issued by the
// identity authority, including the custom tenant claims ClaimIQ relies on.
type ClaimSet struct {
	TenantID   string `json:"custom:tenant_id,omitempty"`
	HospitalID string `json:"custom:hospital_id,omitempty"`
	Role       string `json:"custom:role,omitempty"`
	Username   string `json:"cognito:username,omitempty"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
