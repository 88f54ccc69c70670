package api

import (
	"net/http"
	"time"

	"github.com/darmiel/lastword/internal/api/middleware"
	"github.com/darmiel/lastword/internal/audit"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/messages"
	"github.com/darmiel/lastword/internal/service"
	"github.com/darmiel/lastword/internal/session"
	"github.com/darmiel/lastword/internal/tasks"
	"github.com/darmiel/lastword/internal/workflow"
)

// Services bundles what the HTTP layer delegates to.
type Services struct {
	Owner       string
	Tokens      *service.TokenService
	Invitations *service.InvitationService
	Triggers    *service.TriggerService
	Engine      *workflow.Engine
	Tasks       *tasks.Manager
	Sessions    *session.Manager

	// Dispatcher and Composer deliver freshly issued trigger tokens when asked to.
	Dispatcher core.Dispatcher
	Composer   *messages.Composer

	Auditor core.Auditor
}

type Server struct {
	owner       string
	tokens      *service.TokenService
	invitations *service.InvitationService
	triggers    *service.TriggerService
	engine      *workflow.Engine
	taskManager *tasks.Manager
	sessions    *session.Manager
	dispatcher  core.Dispatcher
	composer    *messages.Composer
	auditor     core.Auditor
	startedAt   time.Time
}

func NewServer(svc Services) *Server {
	auditor := svc.Auditor
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return &Server{
		owner:       svc.Owner,
		tokens:      svc.Tokens,
		invitations: svc.Invitations,
		triggers:    svc.Triggers,
		engine:      svc.Engine,
		taskManager: svc.Tasks,
		sessions:    svc.Sessions,
		dispatcher:  svc.Dispatcher,
		composer:    svc.Composer,
		auditor:     auditor,
		startedAt:   time.Now(),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.HandleFunc("POST "+VerifyTriggerRoute, s.handleVerifyTrigger)
	mux.HandleFunc("POST "+VerifyInvitationRoute, s.handleVerifyInvitation)
	mux.HandleFunc("POST "+WorkflowsRoute, s.handleStartWorkflow)

	// owner routes
	owner := middleware.OwnerAuth(s.sessions)
	admin := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, owner(fn))
	}
	admin("POST "+IssueTriggerRoute, s.handleIssueTrigger)
	admin("POST "+InvitationsRoute, s.handleInvite)
	admin("GET "+WorkflowsRoute, s.handleListWorkflows)
	admin("GET "+WorkflowRoute, s.handleGetWorkflow)
	admin("POST "+CancelWorkflowRoute, s.handleCancelWorkflow)
	admin("GET "+ListTasksRoute, s.handleListTasks)
	admin("POST "+TriggerTaskRoute, s.handleTriggerTask)
	admin("GET "+LogsForTaskRoute, s.handleLogsForTask)
	admin("GET "+ListAuditsRoute, s.handleAdminAudit)

	return middleware.CorrelationIDMiddleware(
		middleware.RecoverMiddleware(
			middleware.LoggingMiddleware(
				middleware.LimitBody(middleware.MaxBodyBytes)(
					mux))))
}
