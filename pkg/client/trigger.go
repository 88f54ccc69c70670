package client

import (
	"context"

	"github.com/darmiel/lastword/internal/api"
)

// IssueTrigger asks the server to issue a trigger token for an identity.
func (c *Client) IssueTrigger(ctx context.Context, payload api.IssueTriggerPayload) (*api.IssueTriggerResponse, string, error) {
	var res api.IssueTriggerResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.IssueTriggerRoute).
		build(), payload, &res)
	return &res, correlation, err
}

// VerifyTrigger checks a token against the server's clock and secret.
func (c *Client) VerifyTrigger(ctx context.Context, token string) (*api.VerifyTriggerResponse, string, error) {
	var res api.VerifyTriggerResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.VerifyTriggerRoute).
		build(), api.VerifyTriggerPayload{Token: token}, &res)
	return &res, correlation, err
}
