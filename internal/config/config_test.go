package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("oidc.client_id", "client-id")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "blogsite.db" {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if cfg.TokenIssuer != "blogsite-auth" || cfg.TokenAudience != "blogsite-api" {
		t.Fatalf("unexpected token identity %q/%q", cfg.TokenIssuer, cfg.TokenAudience)
	}
	if cfg.OIDCJWKSURL == "" {
		t.Fatal("expected default jwks url")
	}
}

func TestLoadRequiresSigningSecret(t *testing.T) {
	configViper := NewViper()
	configViper.Set("oidc.client_id", "client-id")

	if _, err := Load(configViper); err == nil {
		t.Fatal("expected error for missing signing secret")
	}
}

func TestLoadRequiresOIDCClientID(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")

	if _, err := Load(configViper); err == nil {
		t.Fatal("expected error for missing oidc client id")
	}
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("oidc.client_id", "client-id")
	configViper.Set("token.ttl_minutes", 0)

	if _, err := Load(configViper); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("oidc.client_id", "client-id")
	configViper.Set("http.address", "127.0.0.1:9999")
	configViper.Set("auth.admin_emails", []string{"root@example.com"})

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != "127.0.0.1:9999" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if len(cfg.AdminEmails) != 1 || cfg.AdminEmails[0] != "root@example.com" {
		t.Fatalf("unexpected admin emails %v", cfg.AdminEmails)
	}
}
