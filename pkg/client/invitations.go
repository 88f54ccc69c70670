package client

import (
	"context"

	"github.com/darmiel/lastword/internal/api"
	"github.com/darmiel/lastword/internal/core"
)

// Invite sends invitations to contacts on behalf of the owner.
func (c *Client) Invite(ctx context.Context, contacts []string) ([]core.InviteResult, string, error) {
	var res api.InviteResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.InvitationsRoute).
		build(), api.InvitePayload{Contacts: contacts}, &res)
	return res.Results, correlation, err
}

func (c *Client) VerifyInvitation(ctx context.Context, payload api.VerifyInvitationPayload) (bool, string, error) {
	var res api.VerifyInvitationResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.VerifyInvitationRoute).
		build(), payload, &res)
	return res.Valid, correlation, err
}
