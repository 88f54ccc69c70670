// Package session mints and parses owner session tokens for the admin API.
package session

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/darmiel/lastword/internal/audit"
	"github.com/darmiel/lastword/internal/crypto"
)

const (
	Issuer    = "lastword"
	OwnerRole = "owner"

	// KeyPurpose binds the session signing key to this use of the shared secret.
	KeyPurpose = "session"

	DefaultTTL = time.Hour
)

var (
	ErrMissingToken      = errors.New("login required")
	ErrInvalidToken      = errors.New("invalid session token")
	ErrInsufficientRoles = errors.New("insufficient privileges")
)

type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// Token is a minted session.
type Token struct {
	Value       string    `json:"value"`
	Subject     string    `json:"subject"`
	ExpiresAt   time.Time `json:"expires_at"`
	Fingerprint string    `json:"fingerprint"`
}

// Manager signs sessions with HS256 under a key derived from the shared secret.
type Manager struct {
	key []byte
	now func() time.Time
}

func NewManager(signer *crypto.Signer) (*Manager, error) {
	key, err := signer.DeriveKey(KeyPurpose, 32)
	if err != nil {
		return nil, err
	}
	return &Manager{key: key, now: time.Now}, nil
}

// WithClock replaces the time source used for iat/exp and validation.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Mint issues a session for subject with the owner role.
func (m *Manager) Mint(subject string, ttl time.Duration) (*Token, error) {
	if subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := m.now().Truncate(time.Second)
	exp := now.Add(ttl)

	claims := Claims{
		Roles: []string{OwnerRole},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return &Token{
		Value:       signed,
		Subject:     subject,
		ExpiresAt:   exp,
		Fingerprint: audit.Fingerprint(audit.SessionFingerprintType, signed),
	}, nil
}

// Parse validates signature, issuer and expiry of raw and returns its claims.
func (m *Manager) Parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return m.key, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &claims, nil
}

// Authorize parses raw and requires the owner role.
func (m *Manager) Authorize(raw string) (*Claims, error) {
	claims, err := m.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !claims.HasRole(OwnerRole) {
		return nil, ErrInsufficientRoles
	}
	return claims, nil
}
