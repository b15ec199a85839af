package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"claimiq.io/internal/obs"
)

// signingAlg is the only algorithm accepted from the identity authority.
// An explicit allow-list of exactly one entry rules out algorithm confusion.
const signingAlg = "RS256"

// Validator verifies bearer tokens against the authority's published signing
// keys. Every verification failure collapses to a single unauthenticated
// outcome at the public contract; the underlying cause is only logged.
type Validator struct {
	keys     KeyResolver
	audience string
	issuer   string
	now      func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithValidatorClock overrides the time source (useful for tests).
func WithValidatorClock(fn func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewValidator constructs a Validator. audience is the configured client
// identifier; issuer is the authority URL.
func NewValidator(keys KeyResolver, audience, issuer string, opts ...ValidatorOption) *Validator {
	v := &Validator{
		keys:     keys,
		audience: audience,
		issuer:   issuer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate verifies the token and returns its claims, or (nil, false) on any
// failure. Callers must not distinguish failure reasons.
func (v *Validator) Validate(ctx context.Context, token string) (*ClaimSet, bool) {
	claims, err := v.validate(ctx, token)
	if err != nil {
		obs.LogEntry(map[string]any{
			"ts":    v.now().UTC().Format(time.RFC3339Nano),
			"level": "warn",
			"msg":   "token_validation_failed",
			"cause": err.Error(),
		})
		return nil, false
	}
	return claims, true
}

// validate keeps the distinct failure reasons for logging. Nothing outside
// this package may observe them.
func (v *Validator) validate(ctx context.Context, token string) (*ClaimSet, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	// Decode the header without verifying to learn which key signed it.
	unverified, _, err := jwt.NewParser().ParseUnverified(token, &ClaimSet{})
	if err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("token header has no kid")
	}

	key, err := v.keys.Key(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("resolve signing key: %w", err)
	}

	parsed, err := jwt.ParseWithClaims(token, &ClaimSet{},
		func(t *jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{signingAlg}),
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	claims, ok := parsed.Claims.(*ClaimSet)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("subject missing")
	}
	return claims, nil
}
