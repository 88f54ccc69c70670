package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/darmiel/lastword/internal/config"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/crypto"
)

var testMessage = core.Message{
	Sender:         "owner@example.com",
	Recipient:      "alice@example.com",
	Subject:        "hello",
	Body:           "body",
	IdempotencyKey: "abc/release",
}

func TestWebhookDispatcher_Send(t *testing.T) {
	var (
		gotBody    []byte
		gotHeaders http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d, err := NewWebhookDispatcher("router", WebhookConfig{URL: srv.URL, Secret: "hook-secret", Token: "t0k"}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := d.Send(context.Background(), testMessage); err != nil {
		t.Fatalf("send: %v", err)
	}

	var decoded core.Message
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if decoded != testMessage {
		t.Errorf("unexpected payload: %+v", decoded)
	}
	if want := SignBody([]byte("hook-secret"), gotBody); gotHeaders.Get(SignatureHeader) != want {
		t.Errorf("expected signature %s, got %s", want, gotHeaders.Get(SignatureHeader))
	}
	if gotHeaders.Get(IdempotencyKeyHeader) != "abc/release" {
		t.Errorf("missing idempotency key, got %q", gotHeaders.Get(IdempotencyKeyHeader))
	}
	if gotHeaders.Get("Authorization") != "Bearer t0k" {
		t.Errorf("missing bearer token")
	}
	if !strings.Contains(gotHeaders.Get("User-Agent"), "dispatcher=router") {
		t.Errorf("unexpected user agent %q", gotHeaders.Get("User-Agent"))
	}
}

func TestWebhookDispatcher_Non2xxIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "router down", http.StatusBadGateway)
	}))
	defer srv.Close()

	d, err := NewWebhookDispatcher("", WebhookConfig{URL: srv.URL, Secret: "s"}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = d.Send(context.Background(), testMessage)

	var de core.DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if de.Recipient != testMessage.Recipient || !strings.Contains(de.Error(), "502") {
		t.Errorf("unexpected delivery error: %v", de)
	}
}

func TestWebhookDispatcher_DerivedKey(t *testing.T) {
	signer, err := crypto.NewSigner([]byte(strings.Repeat("k", 32)))
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewWebhookDispatcher("", WebhookConfig{URL: "http://localhost"}, signer)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	want, _ := signer.DeriveKey(webhookKeyPurpose, 32)
	if string(d.key) != string(want) {
		t.Error("expected the webhook key to be derived from the shared secret")
	}
	if _, err := NewWebhookDispatcher("", WebhookConfig{URL: "http://localhost"}, nil); err == nil {
		t.Error("expected error without any signing key")
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DispatcherConfig
		wantType string
		wantErr  bool
	}{
		{
			name:     "log",
			cfg:      config.DispatcherConfig{Name: "dev", Type: "log", Config: map[string]any{"include_body": true}},
			wantType: "*dispatch.LogDispatcher",
		},
		{
			name: "webhook",
			cfg: config.DispatcherConfig{Name: "router", Type: "webhook", Config: map[string]any{
				"url":     "https://router.example.com/outbound",
				"secret":  "x",
				"timeout": "3s",
			}},
			wantType: "*dispatch.WebhookDispatcher",
		},
		{
			name:    "webhook without url",
			cfg:     config.DispatcherConfig{Name: "router", Type: "webhook", Config: map[string]any{"secret": "x"}},
			wantErr: true,
		},
		{
			name:    "unknown",
			cfg:     config.DispatcherConfig{Name: "smtp", Type: "smtp"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Build(tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Name() != tt.cfg.Name {
				t.Errorf("expected name %s, got %s", tt.cfg.Name, d.Name())
			}
			switch v := d.(type) {
			case *LogDispatcher:
				if tt.wantType != "*dispatch.LogDispatcher" || !v.includeBody {
					t.Errorf("unexpected log dispatcher %+v", v)
				}
			case *WebhookDispatcher:
				if tt.wantType != "*dispatch.WebhookDispatcher" || v.httpClient.Timeout.Seconds() != 3 {
					t.Errorf("unexpected webhook dispatcher %+v", v)
				}
			}
		})
	}
}
