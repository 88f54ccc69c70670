package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/darmiel/lastword/internal/allowlist"
	"github.com/darmiel/lastword/internal/api/presenter"
	"github.com/darmiel/lastword/internal/audit"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/crypto"
	"github.com/darmiel/lastword/internal/logging"
	"github.com/darmiel/lastword/internal/messages"
	"github.com/darmiel/lastword/internal/service"
	"github.com/darmiel/lastword/internal/session"
	"github.com/darmiel/lastword/internal/store"
	"github.com/darmiel/lastword/internal/tasks"
	"github.com/darmiel/lastword/internal/workflow"
)

const (
	owner  = "owner@example.com"
	alice  = "alice@example.com"
	secret = "0123456789abcdef0123456789abcdef"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []core.Message
}

func (d *recordingDispatcher) Name() string { return "recording" }

func (d *recordingDispatcher) Send(_ context.Context, msg core.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return nil
}

type staticContent []byte

func (c staticContent) Load(context.Context) ([]byte, error) { return c, nil }

type fixture struct {
	handler     http.Handler
	invitations *service.InvitationService
	sessions    *session.Manager
	dispatcher  *recordingDispatcher
	auditor     *audit.InMemoryAuditor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := crypto.NewSigner([]byte(secret))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	sessions, err := session.NewManager(signer)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	allow, err := allowlist.New(nil, "")
	if err != nil {
		t.Fatalf("allowlist: %v", err)
	}

	auditor := audit.NewInMemoryAuditor()
	dispatcher := &recordingDispatcher{}
	composer := messages.NewComposer(owner, owner, "https://lastword.example.com/accept")

	engine := workflow.NewEngine(store.NewMemoryStore(), dispatcher, staticContent("secret"), composer, auditor, workflow.Options{})
	tokens := service.NewTokenService(signer, service.TokenDefaults{}, auditor)
	invitations := service.NewInvitationService(signer, dispatcher, composer, auditor, 0, 0)
	triggers := service.NewTriggerService(owner, tokens, invitations, engine, allow, auditor)

	taskManager := tasks.NewManager()
	taskManager.Register(tasks.TaskDefinition{
		Name: workflow.ResumeTaskName,
		Handler: func(ctx context.Context, logger logging.InternalLogger) error {
			return engine.ResumeDue(ctx, logger)
		},
	})

	srv := NewServer(Services{
		Owner:       owner,
		Tokens:      tokens,
		Invitations: invitations,
		Triggers:    triggers,
		Engine:      engine,
		Tasks:       taskManager,
		Sessions:    sessions,
		Dispatcher:  dispatcher,
		Composer:    composer,
		Auditor:     auditor,
	})
	return &fixture{
		handler:     srv.Routes(),
		invitations: invitations,
		sessions:    sessions,
		dispatcher:  dispatcher,
		auditor:     auditor,
	}
}

func (f *fixture) ownerToken(t *testing.T) string {
	t.Helper()
	tok, err := f.sessions.Mint(owner, 0)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return tok.Value
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthAndCorrelation(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, HealthCheckRoute, nil)
	req.Header.Set(logging.CorrelationIDHeader, "req-1")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get(logging.CorrelationIDHeader); got != "req-1" {
		t.Errorf("correlation header = %q, want req-1", got)
	}

	health := decode[HealthResponse](t, rec)
	if health.Status != healthOK || health.Resume == nil || health.Resume.Name != workflow.ResumeTaskName {
		t.Errorf("health = %+v", health)
	}

	rec = f.do(t, http.MethodGet, HealthCheckRoute, "", nil)
	if rec.Header().Get(logging.CorrelationIDHeader) == "" {
		t.Error("expected a generated correlation id")
	}
}

func TestHealthReportsResumeTask(t *testing.T) {
	failing := tasks.NewManager()
	failing.Register(tasks.TaskDefinition{
		Name: workflow.ResumeTaskName,
		Handler: func(context.Context, logging.InternalLogger) error {
			return errors.New("store unavailable")
		},
	})
	if err := failing.RunSync(context.Background(), workflow.ResumeTaskName); err == nil {
		t.Fatal("expected the resume run to fail")
	}

	tests := []struct {
		name           string
		svc            Services
		wantCode       int
		wantStatus     string
		wantDispatcher string
	}{
		{
			name:       "no dispatcher",
			svc:        Services{Tasks: tasks.NewManager()},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: healthDegraded,
		},
		{
			name:           "failed resume run",
			svc:            Services{Dispatcher: &recordingDispatcher{}, Tasks: failing},
			wantCode:       http.StatusServiceUnavailable,
			wantStatus:     healthDegraded,
			wantDispatcher: "recording",
		},
		{
			name:           "healthy",
			svc:            Services{Dispatcher: &recordingDispatcher{}},
			wantCode:       http.StatusOK,
			wantStatus:     healthOK,
			wantDispatcher: "recording",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewServer(tt.svc).handleHealth(rec, httptest.NewRequest(http.MethodGet, HealthCheckRoute, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			got := decode[HealthResponse](t, rec)
			if got.Status != tt.wantStatus || got.Dispatcher != tt.wantDispatcher {
				t.Errorf("health = %+v", got)
			}
			if tt.wantStatus == healthDegraded && len(got.Reasons) == 0 {
				t.Error("degraded health without reasons")
			}
		})
	}
}

func TestAboutIncludesStartTime(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, AboutRoute, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[AboutResponse](t, rec)
	if got.Service != "lastword" || got.StartedAt.IsZero() {
		t.Errorf("about = %+v", got)
	}
}

func TestAdminRoutesRequireOwnerSession(t *testing.T) {
	f := newFixture(t)
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, IssueTriggerRoute},
		{http.MethodPost, InvitationsRoute},
		{http.MethodGet, WorkflowsRoute},
		{http.MethodGet, WorkflowsRoute + "/abc"},
		{http.MethodPost, WorkflowsRoute + "/abc/cancel"},
		{http.MethodGet, ListTasksRoute},
		{http.MethodPost, TaskParent + "x/trigger"},
		{http.MethodGet, TaskParent + "x/logs"},
		{http.MethodGet, ListAuditsRoute},
	}
	for _, tt := range routes {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if rec := f.do(t, tt.method, tt.path, "", nil); rec.Code != http.StatusUnauthorized {
				t.Errorf("without token: status = %d, want 401", rec.Code)
			}
			if rec := f.do(t, tt.method, tt.path, "garbage", nil); rec.Code != http.StatusUnauthorized {
				t.Errorf("with garbage token: status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestStartWorkflowWithInvitation(t *testing.T) {
	f := newFixture(t)
	inv, err := f.invitations.Issue(owner, alice)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec := f.do(t, http.MethodPost, WorkflowsRoute, "", StartWorkflowPayload{
		Sender: alice,
		Text:   "yes, I accept: " + messages.InvitationRef(inv.Signature),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	started := decode[StartWorkflowResponse](t, rec)
	if started.Origin != core.UsageInvitation || started.Instance.State != core.StateCreated {
		t.Fatalf("unexpected response: %+v", started)
	}

	token := f.ownerToken(t)

	rec = f.do(t, http.MethodGet, WorkflowsRoute+"/"+started.Instance.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, WorkflowsRoute+"?identity="+alice+"&state=created", token, nil)
	if list := decode[[]*core.Instance](t, rec); len(list) != 1 {
		t.Fatalf("list returned %d instances, want 1", len(list))
	}

	rec = f.do(t, http.MethodPost, WorkflowsRoute+"/"+started.Instance.ID+"/cancel", token, nil)
	cancelled := decode[CancelWorkflowResponse](t, rec)
	if !cancelled.Changed || cancelled.Instance.State != core.StateCancelled {
		t.Fatalf("unexpected cancel response: %+v", cancelled)
	}

	// a second cancel is a no-op, not an error
	rec = f.do(t, http.MethodPost, WorkflowsRoute+"/"+started.Instance.ID+"/cancel", token, nil)
	if rec.Code != http.StatusOK || decode[CancelWorkflowResponse](t, rec).Changed {
		t.Fatal("second cancel should report Changed=false")
	}

	rec = f.do(t, http.MethodPost, WorkflowsRoute+"/missing/cancel", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cancel unknown: status = %d, want 404", rec.Code)
	}
}

func TestStartWorkflowRejections(t *testing.T) {
	f := newFixture(t)
	inv, err := f.invitations.Issue(owner, alice)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name    string
		payload StartWorkflowPayload
		status  int
		message string
	}{
		{
			name:    "no sender",
			payload: StartWorkflowPayload{Signature: inv.Signature},
			status:  http.StatusBadRequest,
		},
		{
			name:    "owner",
			payload: StartWorkflowPayload{Sender: owner, Signature: inv.Signature},
			status:  http.StatusForbidden,
		},
		{
			name:    "signature of someone else",
			payload: StartWorkflowPayload{Sender: "mallory@example.com", Signature: inv.Signature},
			status:  http.StatusUnauthorized,
			message: service.GenericInvalidTokenMessage,
		},
		{
			name:    "malformed token",
			payload: StartWorkflowPayload{Sender: alice, Token: "lw1.nope"},
			status:  http.StatusUnauthorized,
			message: service.GenericInvalidTokenMessage,
		},
		{
			name:    "no credential",
			payload: StartWorkflowPayload{Sender: alice},
			status:  http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, WorkflowsRoute, "", tt.payload)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			resp := decode[presenter.ErrorResponse](t, rec)
			if tt.message != "" && resp.Error != tt.message {
				t.Errorf("message = %q, want %q", resp.Error, tt.message)
			}
			if resp.CorrelationID == "" {
				t.Error("expected correlation id in error response")
			}
		})
	}
}

func TestIssueAndVerifyTrigger(t *testing.T) {
	f := newFixture(t)
	token := f.ownerToken(t)

	rec := f.do(t, http.MethodPost, IssueTriggerRoute, token, IssueTriggerPayload{
		Identity: alice,
		Deliver:  true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	issued := decode[IssueTriggerResponse](t, rec)
	if !issued.Delivered || issued.Token.Identity != alice {
		t.Fatalf("unexpected issue response: %+v", issued)
	}
	if len(f.dispatcher.sent) != 1 || !strings.Contains(f.dispatcher.sent[0].Body, issued.Token.Value) {
		t.Fatalf("token was not delivered: %+v", f.dispatcher.sent)
	}

	rec = f.do(t, http.MethodPost, VerifyTriggerRoute, "", VerifyTriggerPayload{Token: issued.Token.Value})
	verified := decode[VerifyTriggerResponse](t, rec)
	if verified.Valid || verified.Reason != ReasonNotYetValid || verified.NotBefore == nil {
		t.Fatalf("fresh token should not be valid yet: %+v", verified)
	}

	tampered := issued.Token.Value[:len(issued.Token.Value)-2] + "AA"
	if tampered == issued.Token.Value {
		tampered = issued.Token.Value[:len(issued.Token.Value)-2] + "BB"
	}
	rec = f.do(t, http.MethodPost, VerifyTriggerRoute, "", VerifyTriggerPayload{Token: tampered})
	rejected := decode[VerifyTriggerResponse](t, rec)
	if rejected.Valid || rejected.Reason != ReasonInvalid || rejected.Message != service.GenericInvalidTokenMessage {
		t.Fatalf("tampered token: %+v", rejected)
	}
	if rejected.NotBefore != nil || rejected.ExpiresAt != nil {
		t.Error("tampered token must not reveal its window")
	}

	// a not yet valid token cannot start a countdown
	rec = f.do(t, http.MethodPost, WorkflowsRoute, "", StartWorkflowPayload{Sender: alice, Token: issued.Token.Value})
	if rec.Code != http.StatusForbidden {
		t.Errorf("start with early token: status = %d, want 403", rec.Code)
	}
}

func TestInviteAndVerifyInvitation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, InvitationsRoute, f.ownerToken(t), InvitePayload{
		Contacts: []string{"c1@example.com", "C1@example.com", "c2@example.com"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("invite: status = %d", rec.Code)
	}
	results := decode[InviteResponse](t, rec).Results
	if len(results) != 2 || !results[0].Sent || !results[1].Sent {
		t.Fatalf("unexpected results: %+v", results)
	}

	tests := []struct {
		name    string
		payload VerifyInvitationPayload
		want    bool
	}{
		{"genuine", VerifyInvitationPayload{Contact: "c1@example.com", Signature: results[0].Signature}, true},
		{"with prefix", VerifyInvitationPayload{Contact: "c1@example.com", Signature: messages.InvitationRef(results[0].Signature)}, true},
		{"other contact", VerifyInvitationPayload{Contact: "c2@example.com", Signature: results[0].Signature}, false},
		{"other owner", VerifyInvitationPayload{Owner: "x@example.com", Contact: "c1@example.com", Signature: results[0].Signature}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, VerifyInvitationRoute, "", tt.payload)
			if got := decode[VerifyInvitationResponse](t, rec).Valid; got != tt.want {
				t.Errorf("Valid = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTasksAndAudit(t *testing.T) {
	f := newFixture(t)
	token := f.ownerToken(t)

	rec := f.do(t, http.MethodGet, ListTasksRoute, token, nil)
	statuses := decode[[]tasks.TaskStatus](t, rec)
	if len(statuses) != 1 || statuses[0].Name != workflow.ResumeTaskName {
		t.Fatalf("unexpected tasks: %+v", statuses)
	}

	if rec := f.do(t, http.MethodPost, TaskParent+"missing/trigger", token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("trigger unknown task: status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, TaskParent+workflow.ResumeTaskName+"/logs", token, nil); rec.Code != http.StatusOK {
		t.Errorf("task logs: status = %d", rec.Code)
	}

	f.do(t, http.MethodPost, VerifyTriggerRoute, "", VerifyTriggerPayload{Token: "lw1.a.b"})

	rec = f.do(t, http.MethodGet, ListAuditsRoute+"?action=trigger.verify", token, nil)
	entries := decode[[]core.AuditEntry](t, rec)
	if len(entries) != 1 || entries[0].Success {
		t.Fatalf("unexpected audit entries: %+v", entries)
	}
	if entries[0].ID == "" {
		t.Error("audit entry should carry the correlation id")
	}
}
