package cliconfig

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	t.Setenv(PathEnv, filepath.Join(t.TempDir(), "cli.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Credentials) != 0 {
		t.Errorf("expected no credentials, got %d", len(cfg.Credentials))
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv(PathEnv, filepath.Join(t.TempDir(), "nested", "cli.yaml"))

	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	cfg := &CLIConfig{DefaultServer: "http://localhost:8080"}
	if err := cfg.SetCredential("http://localhost:8080", &Credential{Token: "abc", Subject: "owner@example.com", ExpiresAt: exp}); err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}
	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DefaultServer != cfg.DefaultServer {
		t.Errorf("default server: got %q", loaded.DefaultServer)
	}
	cred, err := loaded.GetCredential("http://localhost:8080/some/path", exp.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if cred.Token != "abc" || cred.Subject != "owner@example.com" || !cred.ExpiresAt.Equal(exp) {
		t.Errorf("unexpected credential: %+v", cred)
	}
}

func TestGetCredential(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	cfg := &CLIConfig{Credentials: map[string]*Credential{
		"valid.example:443":   {Token: "a", ExpiresAt: now.Add(time.Minute)},
		"expired.example:443": {Token: "b", ExpiresAt: now},
		"forever.example":     {Token: "c"},
	}}

	tests := []struct {
		name    string
		server  string
		wantErr error
	}{
		{"valid", "https://valid.example:443", nil},
		{"expired at boundary", "https://expired.example:443", ErrCredentialExpired},
		{"no expiry", "https://forever.example", nil},
		{"unknown", "https://other.example", ErrCredentialNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cfg.GetCredential(tt.server, now)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := cfg.GetCredential("no-scheme", now); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestRemoveCredential(t *testing.T) {
	cfg := &CLIConfig{Credentials: map[string]*Credential{"a.example": {Token: "x"}}}

	removed, err := cfg.RemoveCredential("https://a.example")
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	removed, err = cfg.RemoveCredential("https://a.example")
	if err != nil || removed {
		t.Fatalf("expected nothing to remove, got %v %v", removed, err)
	}
}

func TestCredentialFromToken(t *testing.T) {
	exp := time.Date(2031, 6, 1, 12, 0, 0, 0, time.UTC)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "owner@example.com",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	cred, err := CredentialFromToken(raw)
	if err != nil {
		t.Fatalf("CredentialFromToken failed: %v", err)
	}
	if cred.Subject != "owner@example.com" || !cred.ExpiresAt.Equal(exp) || cred.Token != raw {
		t.Errorf("unexpected credential: %+v", cred)
	}

	if _, err := CredentialFromToken("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}
