package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/lastword/internal/audit"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/crypto"
	"github.com/darmiel/lastword/internal/logging"
)

const (
	WebhookType = "webhook"

	SignatureHeader      = "X-Lastword-Signature"
	IdempotencyKeyHeader = "Idempotency-Key"

	defaultWebhookTimeout = 10 * time.Second
	webhookKeyPurpose     = "webhook"
)

type WebhookConfig struct {
	URL string `mapstructure:"url"`

	// Secret signs request bodies. If empty, a key derived from the shared secret is used.
	Secret string `mapstructure:"secret"`

	// Token is sent as bearer token, if set.
	Token string `mapstructure:"token"`

	Timeout time.Duration `mapstructure:"timeout"`
}

var _ core.Dispatcher = (*WebhookDispatcher)(nil)

// WebhookDispatcher POSTs every message as JSON to the router.
// Any non-2xx response is reported as a retryable DeliveryError.
type WebhookDispatcher struct {
	name       string
	url        string
	key        []byte
	token      string
	httpClient *http.Client
}

func NewWebhookDispatcher(name string, conf WebhookConfig, signer *crypto.Signer) (*WebhookDispatcher, error) {
	url := strings.TrimSpace(conf.URL)
	if url == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}
	if name == "" {
		name = WebhookType
	}

	var key []byte
	switch {
	case conf.Secret != "":
		key = []byte(conf.Secret)
	case signer != nil:
		derived, err := signer.DeriveKey(webhookKeyPurpose, 32)
		if err != nil {
			return nil, fmt.Errorf("deriving webhook key: %w", err)
		}
		key = derived
	default:
		return nil, fmt.Errorf("either a secret or the shared secret is required to sign requests")
	}

	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookDispatcher{
		name:       name,
		url:        url,
		key:        key,
		token:      conf.Token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (d *WebhookDispatcher) Name() string {
	return d.name
}

// SignBody returns the hex HMAC-SHA256 of body under key, as sent in SignatureHeader.
func SignBody(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *WebhookDispatcher) Send(ctx context.Context, msg core.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", audit.CreateUserAgent(d.name, msg.IdempotencyKey))
	req.Header.Set(SignatureHeader, SignBody(d.key, data))
	if msg.IdempotencyKey != "" {
		req.Header.Set(IdempotencyKeyHeader, msg.IdempotencyKey)
	}
	if id := logging.CorrelationID(ctx); id != "" {
		req.Header.Set(logging.CorrelationIDHeader, id)
	}
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return core.DeliveryError{Recipient: msg.Recipient, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.DeliveryError{
			Recipient: msg.Recipient,
			Err:       fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	log.Ctx(ctx).Debug().
		Str("dispatcher", d.name).
		Str("recipient", msg.Recipient).
		Str("idempotency_key", msg.IdempotencyKey).
		Int("status", resp.StatusCode).
		Msg("message delivered")
	return nil
}
