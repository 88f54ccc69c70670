package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/lastword/internal/audit"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/crypto"
	"github.com/darmiel/lastword/internal/logging"
)

const (
	// TokenPrefix starts the wire form of every trigger token: lw1.<payload>.<mac>
	TokenPrefix = "lw1"

	// TokenVersion is bound into the signed payload.
	TokenVersion = "1"
)

var tokenEncoding = base64.RawURLEncoding

// TokenDefaults are the configured day counts used when a request does not specify its own.
type TokenDefaults struct {
	NotBeforeDays  float64
	ExpirationDays float64
}

// IssueOptions override the defaults for one token. Zero means "use the default".
type IssueOptions struct {
	NotBeforeDays  float64
	ExpirationDays float64
}

// TokenService issues and verifies time-bound trigger tokens. It keeps no state:
// a token carries everything needed to verify it.
type TokenService struct {
	signer   *crypto.Signer
	defaults TokenDefaults
	auditor  core.Auditor
	now      func() time.Time
}

func NewTokenService(signer *crypto.Signer, defaults TokenDefaults, auditor core.Auditor) *TokenService {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	defaults.NotBeforeDays = core.DaysOrDefault(defaults.NotBeforeDays, core.MaxWaitDays, core.DefaultNotBeforeDays)
	defaults.ExpirationDays = core.DaysOrDefault(defaults.ExpirationDays, core.MaxExpirationDays, core.DefaultExpirationDays)
	return &TokenService{
		signer:   signer,
		defaults: defaults,
		auditor:  auditor,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests and tooling.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Window resolves the validity window in days for opts. The expiration always lies at least
// MinValidityDays after notBefore, so the window is never empty.
func (s *TokenService) Window(opts IssueOptions) (notBeforeDays, expirationDays float64) {
	notBeforeDays = core.DaysOrDefault(opts.NotBeforeDays, core.MaxWaitDays, s.defaults.NotBeforeDays)
	expirationDays = core.DaysOrDefault(opts.ExpirationDays, core.MaxExpirationDays, s.defaults.ExpirationDays)
	if minimum := notBeforeDays + core.MinValidityDays; expirationDays < minimum {
		expirationDays = minimum
	}
	return notBeforeDays, expirationDays
}

// Issue creates a trigger token for identity. Both bounds are measured from now.
func (s *TokenService) Issue(ctx context.Context, identity string, opts IssueOptions) (*core.TriggerToken, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		return nil, invalidInput(fmt.Errorf("identity is required"))
	}

	nbfDays, expDays := s.Window(opts)
	issuedAt := s.now().UTC()
	// the payload carries whole seconds; rounding up keeps a fresh token not yet valid
	notBefore := ceilSecond(issuedAt.Add(core.DaysToDuration(nbfDays)))
	if !notBefore.After(issuedAt) {
		notBefore = ceilSecond(issuedAt.Add(time.Nanosecond))
	}
	expiresAt := ceilSecond(issuedAt.Add(core.DaysToDuration(expDays)))
	if !expiresAt.After(notBefore) {
		expiresAt = notBefore.Add(time.Second)
	}

	payload, err := crypto.Canonicalize(map[string]string{
		"exp":     strconv.FormatInt(expiresAt.Unix(), 10),
		"nbf":     strconv.FormatInt(notBefore.Unix(), 10),
		"sub":     identity,
		"usage":   core.UsageTrigger,
		"version": TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding token payload: %w", err)
	}
	sig := s.signer.Sign(payload)

	tok := &core.TriggerToken{
		Identity:  identity,
		NotBefore: notBefore,
		ExpiresAt: expiresAt,
		Signature: sig,
		Value:     TokenPrefix + "." + tokenEncoding.EncodeToString(payload) + "." + tokenEncoding.EncodeToString(sig),
	}

	s.log(ctx, core.AuditEntry{
		Action:      "trigger.issue",
		Identity:    identity,
		Success:     true,
		Fingerprint: audit.Fingerprint(audit.TriggerFingerprintType, tok.Value),
		Metadata: map[string]any{
			"not_before": notBefore,
			"expires_at": expiresAt,
		},
	})
	log.Ctx(ctx).Info().
		Str("identity", identity).
		Time("not_before", notBefore).
		Time("expires_at", expiresAt).
		Msg("issued trigger token")
	return tok, nil
}

func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); r.Before(t) {
		return r.Add(time.Second)
	}
	return t
}

// Verify checks raw against the current time and records the attempt in the audit log.
func (s *TokenService) Verify(ctx context.Context, raw string) (*core.TriggerClaims, error) {
	claims, err := s.VerifyAt(raw, s.now())

	entry := core.AuditEntry{
		Action:      "trigger.verify",
		Success:     err == nil,
		Fingerprint: audit.Fingerprint(audit.TriggerFingerprintType, strings.TrimSpace(raw)),
	}
	if claims != nil {
		entry.Identity = claims.Identity
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.log(ctx, entry)
	return claims, err
}

// VerifyAt checks raw as of now. It has no side effects.
//
// The signature is checked before anything in the payload is interpreted, so a tampered token
// yields ErrInvalidSignature or ErrMalformedToken and never reveals its time bounds.
// A correctly signed token outside its window yields NotYetValidError or ExpiredError.
func (s *TokenService) VerifyAt(raw string, now time.Time) (*core.TriggerClaims, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 || parts[0] != TokenPrefix {
		return nil, core.ErrMalformedToken
	}
	payload, err := tokenEncoding.DecodeString(parts[1])
	if err != nil || len(payload) == 0 {
		return nil, core.ErrMalformedToken
	}
	sig, err := tokenEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, core.ErrMalformedToken
	}
	if !s.signer.Verify(payload, sig) {
		return nil, core.ErrInvalidSignature
	}

	claims, err := parseTriggerPayload(payload)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	if now.Before(claims.NotBefore) {
		return nil, core.NotYetValidError{NotBefore: claims.NotBefore}
	}
	if !now.Before(claims.ExpiresAt) {
		return nil, core.ExpiredError{ExpiresAt: claims.ExpiresAt}
	}
	return claims, nil
}

func parseTriggerPayload(payload []byte) (*core.TriggerClaims, error) {
	fields, err := crypto.Decanonicalize(payload)
	if err != nil || len(fields) != 5 {
		return nil, core.ErrMalformedToken
	}
	if fields["usage"] != core.UsageTrigger || fields["version"] != TokenVersion || fields["sub"] == "" {
		return nil, core.ErrMalformedToken
	}
	nbf, err := strconv.ParseInt(fields["nbf"], 10, 64)
	if err != nil {
		return nil, core.ErrMalformedToken
	}
	exp, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil || nbf >= exp {
		return nil, core.ErrMalformedToken
	}
	return &core.TriggerClaims{
		Identity:  fields["sub"],
		NotBefore: time.Unix(nbf, 0).UTC(),
		ExpiresAt: time.Unix(exp, 0).UTC(),
	}, nil
}

// IsTokenRejection reports whether err is one of the discriminated verification errors.
func IsTokenRejection(err error) bool {
	var nyv core.NotYetValidError
	var exp core.ExpiredError
	return errors.Is(err, core.ErrInvalidSignature) ||
		errors.Is(err, core.ErrMalformedToken) ||
		errors.As(err, &nyv) ||
		errors.As(err, &exp)
}

func (s *TokenService) log(ctx context.Context, entry core.AuditEntry) {
	entry.ID = logging.CorrelationID(ctx)
	entry.Time = s.now().UTC()
	if err := s.auditor.Log(entry); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to write audit log entry")
	}
}
