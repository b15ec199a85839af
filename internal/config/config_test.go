package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadFailsFastOnMissingRequired(t *testing.T) {
	t.Setenv("CLAIMIQ_AUTH_POOL_ID", "")
	t.Setenv("CLAIMIQ_AUTH_CLIENT_ID", "client-1")
	t.Setenv("CLAIMIQ_AUTH_REGION", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing required environment")
	}
	if !strings.Contains(err.Error(), "CLAIMIQ_AUTH_POOL_ID") || !strings.Contains(err.Error(), "CLAIMIQ_AUTH_REGION") {
		t.Fatalf("error should name every missing variable: %v", err)
	}
	if strings.Contains(err.Error(), "CLAIMIQ_AUTH_CLIENT_ID") {
		t.Fatalf("error should not name variables that are present: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CLAIMIQ_AUTH_POOL_ID", "ap-south-1_abc123")
	t.Setenv("CLAIMIQ_AUTH_CLIENT_ID", "client-1")
	t.Setenv("CLAIMIQ_AUTH_REGION", "ap-south-1")
	t.Setenv("CLAIMIQ_AUTH_HOST", "")
	t.Setenv("CLAIMIQ_KEY_CACHE_TTL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AuthorityHost != "cognito-idp.ap-south-1.amazonaws.com" {
		t.Fatalf("unexpected authority host: %s", cfg.AuthorityHost)
	}
	if cfg.Issuer() != "https://cognito-idp.ap-south-1.amazonaws.com/ap-south-1_abc123" {
		t.Fatalf("unexpected issuer: %s", cfg.Issuer())
	}
	if cfg.JWKSURL() != "https://cognito-idp.ap-south-1.amazonaws.com/ap-south-1_abc123/.well-known/jwks.json" {
		t.Fatalf("unexpected jwks url: %s", cfg.JWKSURL())
	}
	if cfg.KeyCacheTTL != time.Hour {
		t.Fatalf("unexpected default ttl: %v", cfg.KeyCacheTTL)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GRPCAddr != ":9090" {
		t.Fatalf("unexpected listen defaults: %s %s", cfg.HTTPAddr, cfg.GRPCAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CLAIMIQ_AUTH_POOL_ID", "pool")
	t.Setenv("CLAIMIQ_AUTH_CLIENT_ID", "client")
	t.Setenv("CLAIMIQ_AUTH_REGION", "us-east-1")
	t.Setenv("CLAIMIQ_AUTH_HOST", "idp.test.local")
	t.Setenv("CLAIMIQ_KEY_CACHE_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AuthorityHost != "idp.test.local" {
		t.Fatalf("host override ignored: %s", cfg.AuthorityHost)
	}
	if cfg.KeyCacheTTL != 5*time.Minute {
		t.Fatalf("ttl override ignored: %v", cfg.KeyCacheTTL)
	}
}
