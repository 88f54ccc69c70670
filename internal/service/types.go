package service

import "github.com/darmiel/lastword/internal/core"

type StartRequest struct {
	// Sender is the identity of the requester, as established by the message router.
	Sender string

	// Token is a raw trigger token, if the sender presented one.
	Token string

	// Signature is an invitation signature (with or without the "lwi_" prefix).
	Signature string

	// Text is free-form message text. It is searched for a token marker or an invitation
	// reference when neither Token nor Signature is set.
	Text string
}

type StartResponse struct {
	Instance *core.Instance

	// Created is false if an already active countdown was returned.
	Created bool

	// Origin is "trigger" or "invitation".
	Origin string
}
