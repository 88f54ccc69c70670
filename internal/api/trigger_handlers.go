package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/lastword/internal/api/presenter"
	"github.com/darmiel/lastword/internal/audit"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/service"
)

type IssueTriggerPayload struct {
	Identity string `json:"identity"`

	// NotBeforeDays and ExpirationDays override the configured defaults. Zero keeps them.
	NotBeforeDays  float64 `json:"not_before_days,omitempty"`
	ExpirationDays float64 `json:"expiration_days,omitempty"`

	// Deliver sends the token to the identity through the dispatcher.
	Deliver bool `json:"deliver,omitempty"`
}

type IssueTriggerResponse struct {
	Token       *core.TriggerToken `json:"token"`
	Fingerprint string             `json:"fingerprint"`
	Delivered   bool               `json:"delivered"`
}

type VerifyTriggerPayload struct {
	Token string `json:"token"`
}

const (
	ReasonNotYetValid = "not_yet_valid"
	ReasonExpired     = "expired"
	ReasonInvalid     = "invalid"
)

type VerifyTriggerResponse struct {
	Valid  bool                `json:"valid"`
	Claims *core.TriggerClaims `json:"claims,omitempty"`

	// Reason is one of not_yet_valid, expired or invalid.
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`

	// NotBefore or ExpiresAt are only revealed for correctly signed tokens.
	NotBefore *time.Time `json:"not_before,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// handleIssueTrigger issues a trigger token and optionally delivers it.
func (s *Server) handleIssueTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload IssueTriggerPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode issue request payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	tok, err := s.tokens.Issue(ctx, payload.Identity, service.IssueOptions{
		NotBeforeDays:  payload.NotBeforeDays,
		ExpirationDays: payload.ExpirationDays,
	})
	if err != nil {
		presenter.Err(w, r, err, "issuing trigger token failed")
		return
	}

	resp := IssueTriggerResponse{
		Token:       tok,
		Fingerprint: audit.Fingerprint(audit.TriggerFingerprintType, tok.Value),
	}
	if payload.Deliver {
		if s.dispatcher == nil || s.composer == nil {
			presenter.Error(w, r, "no dispatcher configured", http.StatusServiceUnavailable)
			return
		}
		if err := s.dispatcher.Send(ctx, s.composer.TriggerToken(tok)); err != nil {
			logger.Error().Err(err).Str("identity", tok.Identity).Msg("failed to deliver trigger token")
			presenter.Error(w, r, "token issued but delivery failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		resp.Delivered = true
	}

	presenter.JSON(w, r, resp, http.StatusCreated)
}

// handleVerifyTrigger checks a trigger token without starting anything.
func (s *Server) handleVerifyTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload VerifyTriggerPayload
	if err := DecodePayload(r, &payload, false); err != nil || payload.Token == "" {
		presenter.Error(w, r, "a token is required", http.StatusBadRequest)
		return
	}

	claims, err := s.tokens.Verify(ctx, payload.Token)
	if err == nil {
		presenter.JSON(w, r, VerifyTriggerResponse{Valid: true, Claims: claims}, http.StatusOK)
		return
	}
	if !service.IsTokenRejection(err) {
		log.Ctx(ctx).Error().Err(err).Msg("trigger verification failed")
		presenter.Error(w, r, "verification failed", http.StatusInternalServerError)
		return
	}

	resp := VerifyTriggerResponse{
		Valid:   false,
		Reason:  ReasonInvalid,
		Message: service.Explain(err),
	}
	var nyv core.NotYetValidError
	var exp core.ExpiredError
	switch {
	case errors.As(err, &nyv):
		resp.Reason = ReasonNotYetValid
		resp.NotBefore = &nyv.NotBefore
	case errors.As(err, &exp):
		resp.Reason = ReasonExpired
		resp.ExpiresAt = &exp.ExpiresAt
	}
	presenter.JSON(w, r, resp, http.StatusOK)
}
