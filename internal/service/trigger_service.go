package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/lastword/internal/allowlist"
	"github.com/darmiel/lastword/internal/audit"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/logging"
	"github.com/darmiel/lastword/internal/messages"
	"github.com/darmiel/lastword/internal/workflow"
)

// TriggerService turns a verified trigger request into a countdown workflow.
// It accepts either an invitation signature or a trigger token, whichever the sender presents.
type TriggerService struct {
	owner       string
	tokens      *TokenService
	invitations *InvitationService
	engine      *workflow.Engine
	allow       *allowlist.List
	auditor     core.Auditor
	now         func() time.Time
}

func NewTriggerService(
	owner string,
	tokens *TokenService,
	invitations *InvitationService,
	engine *workflow.Engine,
	allow *allowlist.List,
	auditor core.Auditor,
) *TriggerService {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return &TriggerService{
		owner:       normalizeAddress(owner),
		tokens:      tokens,
		invitations: invitations,
		engine:      engine,
		allow:       allow,
		auditor:     auditor,
		now:         time.Now,
	}
}

// Start verifies the credential in req and starts a countdown for the sender.
func (s *TriggerService) Start(ctx context.Context, req StartRequest) (*StartResponse, error) {
	sender := normalizeAddress(req.Sender)
	if sender == "" {
		return nil, invalidInput(fmt.Errorf("sender is required"))
	}

	logger := log.Ctx(ctx).With().Str("sender", sender).Logger()

	entry := core.AuditEntry{
		ID:       logging.CorrelationID(ctx),
		Time:     s.now().UTC(),
		Action:   "workflow.trigger",
		Identity: sender,
	}
	defer func() {
		if err := s.auditor.Log(entry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry")
		}
	}()

	if sender == s.owner {
		entry.Error = "owner cannot trigger"
		return nil, denied(fmt.Errorf("the owner cannot trigger a release"))
	}
	if !s.allow.Allowed(sender) {
		entry.Error = "sender not allowed"
		logger.Warn().Msg("trigger from sender outside the allow-list")
		return nil, denied(fmt.Errorf("sender '%s' is not allowed", sender))
	}

	origin, fingerprint, err := s.authenticate(ctx, sender, req)
	entry.Fingerprint = fingerprint
	if err != nil {
		entry.Error = err.Error()
		return nil, err
	}

	_, domain := allowlist.Split(sender)
	inst, created, err := s.engine.Start(ctx, workflow.StartRequest{
		Identity: sender,
		Domain:   domain,
		Origin:   origin,
		Policy:   workflow.PolicyForOrigin(origin),
	})
	if err != nil {
		entry.Error = "workflow start failed"
		return nil, httpError(http.StatusInternalServerError, fmt.Errorf("starting workflow: %w", err))
	}

	entry.Success = true
	entry.Instance = inst.ID
	entry.State = inst.State
	entry.Metadata = map[string]any{"origin": origin, "policy": string(inst.Policy), "created": created}
	return &StartResponse{Instance: inst, Created: created, Origin: origin}, nil
}

// authenticate checks the presented credential and returns the workflow origin.
// Errors carry a status and wrap the discriminated verification error.
func (s *TriggerService) authenticate(ctx context.Context, sender string, req StartRequest) (string, string, error) {
	token, signature := req.Token, req.Signature
	if token == "" && signature == "" && req.Text != "" {
		if t, ok := messages.ExtractToken(req.Text); ok {
			token = t
		} else if sig, ok := messages.ExtractInvitationSignature(req.Text); ok {
			signature = sig
		}
	}

	switch {
	case token != "":
		fingerprint := audit.Fingerprint(audit.TriggerFingerprintType, token)
		claims, err := s.tokens.Verify(ctx, token)
		if err != nil {
			return "", fingerprint, verificationError(err)
		}
		if claims.Identity != sender {
			// a token presented by someone else is indistinguishable from a forged one
			return "", fingerprint, verificationError(core.ErrInvalidSignature)
		}
		return core.UsageTrigger, fingerprint, nil
	case signature != "":
		fingerprint := audit.Fingerprint(audit.InvitationFingerprintType, messages.StripInvitationPrefix(signature))
		if !s.invitations.Verify(s.owner, sender, signature) {
			return "", fingerprint, verificationError(core.ErrInvalidSignature)
		}
		return core.UsageInvitation, fingerprint, nil
	default:
		return "", "", invalidInput(fmt.Errorf("a trigger token or an invitation signature is required"))
	}
}

// verificationError maps a verification error to a status. Invalid and malformed tokens share
// one status so the response does not tell them apart.
func verificationError(err error) error {
	var nyv core.NotYetValidError
	var exp core.ExpiredError
	switch {
	case errors.As(err, &nyv), errors.As(err, &exp):
		return denied(err)
	default:
		return unauthenticated(err)
	}
}
