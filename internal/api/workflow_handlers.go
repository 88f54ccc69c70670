package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/lastword/internal/api/presenter"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/service"
)

// StartWorkflowPayload is what the message router forwards for an inbound trigger request.
type StartWorkflowPayload struct {
	Sender    string `json:"sender"`
	Token     string `json:"token,omitempty"`
	Signature string `json:"signature,omitempty"`
	Text      string `json:"text,omitempty"`
}

type StartWorkflowResponse struct {
	Instance *core.Instance `json:"instance"`
	Created  bool           `json:"created"`
	Origin   string         `json:"origin"`
}

type CancelWorkflowResponse struct {
	Instance *core.Instance `json:"instance"`
	Changed  bool           `json:"changed"`
}

const defaultListLimit = 50

// handleStartWorkflow verifies the sender's credential and starts a countdown.
func (s *Server) handleStartWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload StartWorkflowPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to decode start request payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	resp, err := s.triggers.Start(ctx, service.StartRequest{
		Sender:    payload.Sender,
		Token:     payload.Token,
		Signature: payload.Signature,
		Text:      payload.Text,
	})
	if err != nil {
		presenter.Err(w, r, err, "")
		return
	}

	status := http.StatusCreated
	if !resp.Created {
		status = http.StatusOK
	}
	presenter.JSON(w, r, StartWorkflowResponse{
		Instance: resp.Instance,
		Created:  resp.Created,
		Origin:   resp.Origin,
	}, status)
}

// handleListWorkflows lists instances, filtered by identity and state.
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := core.InstanceFilter{
		Identity: strings.ToLower(strings.TrimSpace(q.Get("identity"))),
		Limit:    defaultListLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		filter.Limit = v
	}
	for _, raw := range q["state"] {
		for _, part := range strings.Split(raw, ",") {
			state := core.State(strings.TrimSpace(part))
			if !state.IsValid() {
				presenter.Error(w, r, "unknown state '"+string(state)+"'", http.StatusBadRequest)
				return
			}
			filter.States = append(filter.States, state)
		}
	}

	instances, err := s.engine.List(ctx, filter)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list workflows")
		presenter.Error(w, r, "failed to list workflows", http.StatusInternalServerError)
		return
	}
	if instances == nil {
		instances = []*core.Instance{}
	}
	presenter.JSON(w, r, instances, http.StatusOK)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	inst, err := s.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.workflowError(w, r, err)
		return
	}
	presenter.JSON(w, r, inst, http.StatusOK)
}

// handleCancelWorkflow cancels a countdown. Cancelling a finished or releasing instance is not
// an error, the response reports Changed=false.
func (s *Server) handleCancelWorkflow(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		s.workflowError(w, r, err)
		return
	}
	presenter.JSON(w, r, CancelWorkflowResponse{
		Instance: res.Instance,
		Changed:  res.Changed,
	}, http.StatusOK)
}

func (s *Server) workflowError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInstanceNotFound):
		presenter.Error(w, r, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrConflict):
		presenter.Error(w, r, err.Error(), http.StatusConflict)
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("workflow request failed")
		presenter.Error(w, r, "internal error", http.StatusInternalServerError)
	}
}
