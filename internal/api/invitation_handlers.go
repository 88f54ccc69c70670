package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/lastword/internal/api/presenter"
	"github.com/darmiel/lastword/internal/core"
)

type InvitePayload struct {
	Contacts []string `json:"contacts"`
}

type InviteResponse struct {
	Results []core.InviteResult `json:"results"`
}

type VerifyInvitationPayload struct {
	// Owner defaults to the configured owner.
	Owner     string `json:"owner,omitempty"`
	Contact   string `json:"contact"`
	Signature string `json:"signature"`
}

type VerifyInvitationResponse struct {
	Valid bool `json:"valid"`
}

// handleInvite fans out invitations to the given contacts on behalf of the owner.
func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload InvitePayload
	if err := DecodePayload(r, &payload, false); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to decode invite request payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	results, err := s.invitations.Invite(ctx, s.owner, payload.Contacts)
	if err != nil {
		presenter.Err(w, r, err, "sending invitations failed")
		return
	}
	presenter.JSON(w, r, InviteResponse{Results: results}, http.StatusOK)
}

// handleVerifyInvitation tells a contact whether their invitation signature is genuine.
func (s *Server) handleVerifyInvitation(w http.ResponseWriter, r *http.Request) {
	var payload VerifyInvitationPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	owner := payload.Owner
	if owner == "" {
		owner = s.owner
	}
	presenter.JSON(w, r, VerifyInvitationResponse{
		Valid: s.invitations.Verify(owner, payload.Contact, payload.Signature),
	}, http.StatusOK)
}
