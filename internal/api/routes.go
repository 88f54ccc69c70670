package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/about"

	TriggerParent      = "/v1/trigger/"
	IssueTriggerRoute  = TriggerParent + "issue"
	VerifyTriggerRoute = TriggerParent + "verify"

	InvitationsRoute      = "/v1/invitations"
	VerifyInvitationRoute = InvitationsRoute + "/verify"

	WorkflowsRoute      = "/v1/workflows"
	WorkflowRoute       = WorkflowsRoute + "/{id}"
	CancelWorkflowRoute = WorkflowRoute + "/cancel"

	AuditParent     = "/v1/audit/"
	ListAuditsRoute = AuditParent + "audits"

	TaskParent       = "/v1/tasks/"
	ListTasksRoute   = TaskParent
	TriggerTaskRoute = TaskParent + "{name}/trigger"
	LogsForTaskRoute = TaskParent + "{name}/logs"
)
