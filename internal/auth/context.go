package auth

import (
	"context"
	"net/http"
	"strings"
)

// Sentinel values used when claims or headers omit tenant fields. This is a
// deliberate fallback to support default-tenant flows during early
// integration, not an error. See DESIGN.md for the unresolved security
// question around the shared default bucket.
const (
	DefaultTenant   = "default-tenant"
	DefaultHospital = "default-hospital"
	DefaultRole     = "user"
)

// Header names carrying tenant context on internal, already-authenticated
// call paths.
const (
	HeaderTenantID   = "x-tenant-id"
	HeaderHospitalID = "x-hospital-id"
	HeaderUserID     = "x-user-id"
)

// Identity is the normalized tenant/user context propagated to downstream
// handlers. Both extraction paths (verified claims and trusted headers)
// converge on this shape, so consumers are agnostic to which produced it.
type Identity struct {
	UserID     string
	TenantID   string
	HospitalID string
	Role       string
	Username   string
	Email      string
}

// IdentityFromClaims maps a verified claim set into an Identity. Pure mapping,
// no I/O; calling it twice on the same claims yields identical values.
func IdentityFromClaims(claims *ClaimSet) Identity {
	id := Identity{
		UserID:     claims.Subject,
		TenantID:   fallback(claims.TenantID, DefaultTenant),
		HospitalID: fallback(claims.HospitalID, DefaultHospital),
		Role:       fallback(claims.Role, DefaultRole),
		Username:   claims.Username,
		Email:      claims.Email,
	}
	return id
}

// IdentityFromHeaders extracts a lighter-weight tenant context from inbound
// request headers, for internal call paths that bypass full token
// re-validation.
func IdentityFromHeaders(h http.Header) Identity {
	return Identity{
		UserID:     strings.TrimSpace(h.Get(HeaderUserID)),
		TenantID:   fallback(strings.TrimSpace(h.Get(HeaderTenantID)), DefaultTenant),
		HospitalID: fallback(strings.TrimSpace(h.Get(HeaderHospitalID)), DefaultHospital),
		Role:       DefaultRole,
	}
}

// IdentityFromMap rebuilds an Identity from a propagated authorizer context,
// the inverse of Identity.Map.
func IdentityFromMap(m map[string]string) Identity {
	return Identity{
		UserID:     m["userId"],
		TenantID:   fallback(m["tenantId"], DefaultTenant),
		HospitalID: fallback(m["hospitalId"], DefaultHospital),
		Role:       fallback(m["role"], DefaultRole),
		Username:   m["username"],
		Email:      m["email"],
	}
}

// Map renders the identity as the string-only context map the gateway
// propagates to downstream handler invocations.
func (id Identity) Map() map[string]string {
	m := map[string]string{
		"userId":     id.UserID,
		"tenantId":   id.TenantID,
		"hospitalId": id.HospitalID,
		"role":       id.Role,
	}
	if id.Username != "" {
		m["username"] = id.Username
	}
	if id.Email != "" {
		m["email"] = id.Email
	}
	return m
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type identityContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(Identity)
	return v, ok
}
