package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"

	"github.com/darmiel/lastword/internal/config"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFileSource(t *testing.T) {
	p := writeFile(t, t.TempDir(), "letter.txt", []byte("dear alice"))
	src, err := NewFileSource(p)
	if err != nil {
		t.Fatal(err)
	}
	data, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != "dear alice" {
		t.Errorf("unexpected content %q", data)
	}

	missing, _ := NewFileSource(filepath.Join(t.TempDir(), "nope"))
	if _, err := missing.Load(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAgeSource(t *testing.T) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	other, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		armored  bool
		identity *age.X25519Identity
		wantErr  bool
	}{
		{name: "binary", identity: id},
		{name: "armored", armored: true, identity: id},
		{name: "wrong identity", identity: other, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			sealed, err := Seal([]byte("the letter"), []string{id.Recipient().String()}, tt.armored)
			if err != nil {
				t.Fatalf("seal: %v", err)
			}
			contentPath := writeFile(t, dir, "letter.age", sealed)
			idPath := writeFile(t, dir, "key.txt", []byte("# test key\n"+tt.identity.String()+"\n"))

			src, err := Build(config.ContentConfig{
				Type:   AgeType,
				Config: map[string]any{"path": contentPath, "identity_file": idPath},
			})
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			data, err := src.Load(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected decryption error")
				}
				return
			}
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if string(data) != "the letter" {
				t.Errorf("unexpected content %q", data)
			}
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ContentConfig
	}{
		{name: "missing type", cfg: config.ContentConfig{}},
		{name: "unknown type", cfg: config.ContentConfig{Type: "vault"}},
		{name: "file without path", cfg: config.ContentConfig{Type: FileType}},
		{name: "age without identity", cfg: config.ContentConfig{Type: AgeType, Config: map[string]any{"path": "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSeal_RequiresRecipient(t *testing.T) {
	if _, err := Seal([]byte("x"), nil, false); err == nil {
		t.Error("expected error without recipients")
	}
}
