package client

import (
	"context"
	"strings"

	"github.com/darmiel/lastword/internal/api"
	"github.com/darmiel/lastword/internal/core"
)

type ListWorkflowsOpts struct {
	Identity string
	States   []string
	Limit    uint
}

func (c *Client) ListWorkflows(ctx context.Context, opts ListWorkflowsOpts) ([]*core.Instance, string, error) {
	ub := c.url().setPath(api.WorkflowsRoute)
	if opts.Identity != "" {
		ub = ub.addQueryParam("identity", opts.Identity)
	}
	if len(opts.States) > 0 {
		ub = ub.addQueryParam("state", strings.Join(opts.States, ","))
	}
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	var res []*core.Instance
	correlation, err := c.get(ctx, ub.build(), &res)
	return res, correlation, err
}

func (c *Client) GetWorkflow(ctx context.Context, id string) (*core.Instance, string, error) {
	var res core.Instance
	correlation, err := c.get(ctx, c.url().
		setPath(api.WorkflowRoute).
		setPathParam("id", id).
		build(), &res)
	return &res, correlation, err
}

func (c *Client) CancelWorkflow(ctx context.Context, id string) (*api.CancelWorkflowResponse, string, error) {
	var res api.CancelWorkflowResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.CancelWorkflowRoute).
		setPathParam("id", id).
		build(), nil, &res)
	return &res, correlation, err
}

// StartWorkflow forwards a trigger request the way the message router does.
func (c *Client) StartWorkflow(ctx context.Context, payload api.StartWorkflowPayload) (*api.StartWorkflowResponse, string, error) {
	var res api.StartWorkflowResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.WorkflowsRoute).
		build(), payload, &res)
	return &res, correlation, err
}
