package client

import (
	"context"

	"github.com/darmiel/lastword/internal/api"
	"github.com/darmiel/lastword/internal/core"
)

type ListAuditsOpts struct {
	Limit uint

	CorrelationID string
	Identity      string
	Instance      string
	Action        string
	Fingerprint   string
}

// ListAudits retrieves the latest audit entries from the server, limited to the specified number.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.ListAuditsRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	for key, value := range map[string]string{
		"correlation_id": opts.CorrelationID,
		"identity":       opts.Identity,
		"instance":       opts.Instance,
		"action":         opts.Action,
		"fingerprint":    opts.Fingerprint,
	} {
		if value != "" {
			ub = ub.addQueryParam(key, value)
		}
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}
