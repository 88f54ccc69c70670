package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/darmiel/lastword/internal/crypto"
)

func newManager(t *testing.T, secret string, now func() time.Time) *Manager {
	t.Helper()
	signer, err := crypto.NewSigner([]byte(secret))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	m, err := NewManager(signer)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m.WithClock(now)
}

const secret = "0123456789abcdef0123456789abcdef"

func TestMintAndAuthorize(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(t, secret, func() time.Time { return now })

	tok, err := m.Mint("owner@example.com", 0)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if !tok.ExpiresAt.Equal(now.Add(DefaultTTL)) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, now.Add(DefaultTTL))
	}
	if tok.Fingerprint == "" {
		t.Error("expected fingerprint")
	}

	claims, err := m.Authorize(tok.Value)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if claims.Subject != "owner@example.com" || !claims.HasRole(OwnerRole) {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestParseRejections(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	m := newManager(t, secret, func() time.Time { return clock })
	other := newManager(t, strings.Repeat("x", 32), func() time.Time { return clock })

	valid, err := m.Mint("owner@example.com", time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	foreign, err := other.Mint("owner@example.com", time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	tests := []struct {
		name    string
		raw     string
		at      time.Time
		wantErr error
	}{
		{name: "empty", raw: "", at: now, wantErr: ErrMissingToken},
		{name: "garbage", raw: "not-a-jwt", at: now, wantErr: ErrInvalidToken},
		{name: "other secret", raw: foreign.Value, at: now, wantErr: ErrInvalidToken},
		{name: "expired", raw: valid.Value, at: now.Add(2 * time.Minute), wantErr: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock = tt.at
			if _, err := m.Parse(tt.raw); !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthorizeRequiresOwnerRole(t *testing.T) {
	now := time.Now()
	m := newManager(t, secret, func() time.Time { return now })

	claims := Claims{
		Roles: []string{"viewer"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "someone",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Authorize(raw); !errors.Is(err, ErrInsufficientRoles) {
		t.Errorf("Authorize() error = %v, want ErrInsufficientRoles", err)
	}
}

func TestMintRequiresSubject(t *testing.T) {
	m := newManager(t, secret, time.Now)
	if _, err := m.Mint("", time.Hour); err == nil {
		t.Error("expected error for empty subject")
	}
}
