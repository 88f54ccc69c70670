package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/darmiel/lastword/internal/config"
	"github.com/darmiel/lastword/internal/core"
)

func TestInMemoryAuditor_Find(t *testing.T) {
	a := NewInMemoryAuditor()
	for _, action := range []string{"trigger.issue", "workflow.start", "trigger.issue", "workflow.cancel"} {
		if err := a.Log(core.AuditEntry{Action: action, Time: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := a.Find(func(e core.AuditEntry) bool { return e.Action == "trigger.issue" }, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}

	got, _ = a.Find(func(core.AuditEntry) bool { return true }, 1)
	if len(got) != 1 || got[0].Action != "workflow.cancel" {
		t.Fatalf("limit should keep the most recent entry, got %+v", got)
	}
}

func TestFileAuditor_LogAndFind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.jsonl")
	a, err := NewFileAuditor(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Log(core.AuditEntry{ID: "1", Action: "workflow.start", Instance: "i-1", Success: true}); err != nil {
		t.Fatal(err)
	}
	if err := a.Log(core.AuditEntry{ID: "2", Action: "workflow.cancel", Instance: "i-1", Success: true}); err != nil {
		t.Fatal(err)
	}

	got, err := a.Find(func(e core.AuditEntry) bool { return e.Instance == "i-1" }, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Action != "workflow.cancel" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(TriggerFingerprintType, "value")
	if a == "" || a != Fingerprint(TriggerFingerprintType, "value") {
		t.Fatal("fingerprint must be stable and non-empty")
	}
	if a == Fingerprint(InvitationFingerprintType, "value") {
		t.Error("fingerprint types must not collide")
	}
	if Fingerprint(TriggerFingerprintType, "") != "" {
		t.Error("empty value should have empty fingerprint")
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.AuditConfig
		want    any
		wantErr bool
	}{
		{name: "disabled", cfg: config.AuditConfig{}, want: &NoopAuditor{}},
		{name: "memory", cfg: config.AuditConfig{Enabled: true, Type: "memory"}, want: &InMemoryAuditor{}},
		{name: "file without path", cfg: config.AuditConfig{Enabled: true, Type: "file"}, wantErr: true},
		{name: "unknown", cfg: config.AuditConfig{Enabled: true, Type: "kafka"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Build() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch tt.want.(type) {
			case *NoopAuditor:
				if _, ok := got.(*NoopAuditor); !ok {
					t.Errorf("got %T", got)
				}
			case *InMemoryAuditor:
				if _, ok := got.(*InMemoryAuditor); !ok {
					t.Errorf("got %T", got)
				}
			}
		})
	}
}
