package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Required environment variables. Missing any of them is a startup error,
// never a per-request error.
const (
	envPoolID   = "CLAIMIQ_AUTH_POOL_ID"
	envClientID = "CLAIMIQ_AUTH_CLIENT_ID"
	envRegion   = "CLAIMIQ_AUTH_REGION"

	envAuthorityHost = "CLAIMIQ_AUTH_HOST" // overrides the derived Cognito host
	envPGDSN         = "CLAIMIQ_PG_DSN"
	envHTTPAddr      = "CLAIMIQ_HTTP_ADDR"
	envGRPCAddr      = "CLAIMIQ_GRPC_ADDR"
	envKeyCacheTTL   = "CLAIMIQ_KEY_CACHE_TTL"
)

// Config holds process-level settings resolved once at startup.
type Config struct {
	PoolID   string
	ClientID string
	Region   string

	// AuthorityHost is the identity authority host serving the JWKS document.
	// Defaults to the regional Cognito endpoint.
	AuthorityHost string

	PGDSN       string
	HTTPAddr    string
	GRPCAddr    string
	KeyCacheTTL time.Duration
}

// Issuer returns the expected token issuer URL.
func (c Config) Issuer() string {
	return fmt.Sprintf("https://%s/%s", c.AuthorityHost, c.PoolID)
}

// JWKSURL returns the well-known key-set endpoint of the identity authority.
func (c Config) JWKSURL() string {
	return fmt.Sprintf("https://%s/%s/.well-known/jwks.json", c.AuthorityHost, c.PoolID)
}

// Load reads configuration from the environment. The error names every missing
// required variable so a misconfigured deploy fails with one actionable message.
func Load() (Config, error) {
	cfg := Config{
		PoolID:      strings.TrimSpace(os.Getenv(envPoolID)),
		ClientID:    strings.TrimSpace(os.Getenv(envClientID)),
		Region:      strings.TrimSpace(os.Getenv(envRegion)),
		PGDSN:       strings.TrimSpace(os.Getenv(envPGDSN)),
		HTTPAddr:    strings.TrimSpace(os.Getenv(envHTTPAddr)),
		GRPCAddr:    strings.TrimSpace(os.Getenv(envGRPCAddr)),
		KeyCacheTTL: time.Hour,
	}

	var missing []string
	if cfg.PoolID == "" {
		missing = append(missing, envPoolID)
	}
	if cfg.ClientID == "" {
		missing = append(missing, envClientID)
	}
	if cfg.Region == "" {
		missing = append(missing, envRegion)
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: missing required environment: %s", strings.Join(missing, ", "))
	}

	cfg.AuthorityHost = strings.TrimSpace(os.Getenv(envAuthorityHost))
	if cfg.AuthorityHost == "" {
		cfg.AuthorityHost = fmt.Sprintf("cognito-idp.%s.amazonaws.com", cfg.Region)
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = ":9090"
	}
	if raw := strings.TrimSpace(os.Getenv(envKeyCacheTTL)); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", envKeyCacheTTL, err)
		}
		if ttl > 0 {
			cfg.KeyCacheTTL = ttl
		}
	}
	return cfg, nil
}
