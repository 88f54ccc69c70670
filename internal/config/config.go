package config

import (
	"fmt"
	"math"
	"net/mail"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/darmiel/lastword/internal/core"
)

// SecretEnv is consulted when neither secret nor secret_file is configured.
const SecretEnv = "LASTWORD_SECRET"

type Config struct {
	// Owner is the identity whose content is protected and who may cancel countdowns.
	Owner string `yaml:"owner"`

	// Sender is the address outbound messages are sent from.
	Sender string `yaml:"sender"`

	// Secret is the shared signing secret. Prefer SecretFile or the LASTWORD_SECRET env var.
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"`

	// CallbackURL is embedded into invitation messages so contacts can reply with their signature.
	CallbackURL string `yaml:"callback_url"`

	Tokens      TokensConfig      `yaml:"tokens"`
	Workflow    WorkflowConfig    `yaml:"workflow"`
	Invitations InvitationsConfig `yaml:"invitations"`
	AllowList   AllowListConfig   `yaml:"allow_list"`
	Store       StoreConfig       `yaml:"store"`
	Dispatcher  DispatcherConfig  `yaml:"dispatcher"`
	Content     ContentConfig     `yaml:"content"`
	Audit       AuditConfig       `yaml:"audit"`
}

// Days is a floating-point day count. It accepts YAML numbers and strings; anything that
// does not parse is kept as NaN and later treated as "use the default".
type Days float64

func (d *Days) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Days(v)
	case uint64:
		*d = Days(v)
	case int64:
		*d = Days(v)
	case int:
		*d = Days(v)
	case string:
		f, ok := parseFloat(v)
		if !ok {
			*d = Days(math.NaN())
			return nil
		}
		*d = Days(f)
	default:
		*d = Days(math.NaN())
	}
	return nil
}

// Resolve sanitizes d against ceiling and substitutes def when the result is 0.
func (d Days) Resolve(ceiling, def float64) float64 {
	return core.DaysOrDefault(float64(d), ceiling, def)
}

type TokensConfig struct {
	NotBeforeDays  Days `yaml:"not_before_days"`
	ExpirationDays Days `yaml:"expiration_days"`
}

type WorkflowConfig struct {
	WaitDays Days `yaml:"wait_days"`

	// PollInterval is how often the resume task looks for due instances.
	PollInterval time.Duration `yaml:"poll_interval"`

	// LeaseTTL bounds how long a crashed runner can block an instance.
	LeaseTTL time.Duration `yaml:"lease_ttl"`

	// DedupeActive makes a trigger for an identity with an active countdown return that countdown.
	DedupeActive bool `yaml:"dedupe_active"`

	Notify  RetryConfig `yaml:"notify"`
	Release RetryConfig `yaml:"release"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay"`

	// OnExhausted is "fail" or "continue".
	OnExhausted string `yaml:"on_exhausted"`
}

type InvitationsConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Stagger     time.Duration `yaml:"stagger"`
}

type AllowListConfig struct {
	// Entries are exact addresses or "*@domain" wildcards.
	Entries []string `yaml:"entries"`

	// Expr is an optional boolean expression over sender, local and domain.
	Expr string `yaml:"expr"`
}

type StoreConfig struct {
	Driver  string `yaml:"driver"` // e.g., "memory", "sqlite"
	DataDir string `yaml:"data_dir"`
}

// DispatcherConfig holds configuration for the outbound message transport.
type DispatcherConfig struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`    // e.g., "log", "webhook"
	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

// ContentConfig holds configuration for the protected content source.
type ContentConfig struct {
	Type   string         `yaml:"type"`    // e.g., "file", "age"
	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

const redacted = "<redacted>"

// sensitiveKeys marks transport and content options whose values are never echoed back.
var sensitiveKeys = []string{"secret", "password", "token", "identity", "key"}

// Redacted returns a copy that is safe to print: the signing secret and any dispatcher or
// content option whose name looks sensitive are replaced.
func (c *Config) Redacted() Config {
	out := *c
	if out.Secret != "" {
		out.Secret = redacted
	}
	out.AllowList.Entries = slices.Clone(c.AllowList.Entries)
	out.Dispatcher.Config = redactOptions(c.Dispatcher.Config)
	out.Content.Config = redactOptions(c.Content.Config)
	return out
}

func redactOptions(opts map[string]any) map[string]any {
	if opts == nil {
		return nil
	}
	out := make(map[string]any, len(opts))
	for k, v := range opts {
		lower := strings.ToLower(k)
		if slices.ContainsFunc(sensitiveKeys, func(s string) bool { return strings.Contains(lower, s) }) {
			v = redacted
		}
		out[k] = v
	}
	return out
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Sender == "" {
		c.Sender = c.Owner
	}
	if c.Workflow.PollInterval <= 0 {
		c.Workflow.PollInterval = 30 * time.Second
	}
	if c.Workflow.LeaseTTL <= 0 {
		c.Workflow.LeaseTTL = 2 * time.Minute
	}
	if c.Workflow.Notify.OnExhausted == "" {
		c.Workflow.Notify.OnExhausted = "fail"
	}
	if c.Workflow.Release.OnExhausted == "" {
		c.Workflow.Release.OnExhausted = "continue"
	}
	if c.Invitations.Concurrency <= 0 {
		c.Invitations.Concurrency = 3
	}
	if c.Invitations.Stagger < 0 {
		c.Invitations.Stagger = 0
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Dispatcher.Type == "" {
		c.Dispatcher.Type = "log"
	}
	if c.Dispatcher.Name == "" {
		c.Dispatcher.Name = c.Dispatcher.Type
	}
}

func (c *Config) Validate() error {
	if _, err := mail.ParseAddress(c.Owner); err != nil {
		return fmt.Errorf("owner must be an address: %w", err)
	}
	if _, err := mail.ParseAddress(c.Sender); err != nil {
		return fmt.Errorf("sender must be an address: %w", err)
	}
	if c.Secret != "" && c.SecretFile != "" {
		return fmt.Errorf("only one of secret and secret_file may be set")
	}
	for name, r := range map[string]RetryConfig{"notify": c.Workflow.Notify, "release": c.Workflow.Release} {
		if r.OnExhausted != "fail" && r.OnExhausted != "continue" {
			return fmt.Errorf("workflow.%s.on_exhausted must be 'fail' or 'continue', got '%s'", name, r.OnExhausted)
		}
		if r.MaxAttempts < 0 {
			return fmt.Errorf("workflow.%s.max_attempts must not be negative", name)
		}
	}
	for idx, entry := range c.AllowList.Entries {
		if !strings.Contains(entry, "@") {
			return fmt.Errorf("allow_list entry at index %d ('%s') is not an address or *@domain", idx, entry)
		}
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver '%s'", c.Store.Driver)
	}
	return nil
}

// ResolveSecret returns the shared secret from the config, the secret file or the environment.
func (c *Config) ResolveSecret() ([]byte, error) {
	switch {
	case c.Secret != "":
		return []byte(c.Secret), nil
	case c.SecretFile != "":
		data, err := os.ReadFile(c.SecretFile)
		if err != nil {
			return nil, fmt.Errorf("reading secret file: %w", err)
		}
		return []byte(strings.TrimSpace(string(data))), nil
	default:
		if env := os.Getenv(SecretEnv); env != "" {
			return []byte(env), nil
		}
		return nil, fmt.Errorf("no shared secret configured (set secret, secret_file or %s)", SecretEnv)
	}
}

// WaitDuration is the resolved waiting period of a countdown.
func (c *Config) WaitDuration() time.Duration {
	return core.DaysToDuration(c.Workflow.WaitDays.Resolve(core.MaxWaitDays, core.DefaultWaitDays))
}

func parseFloat(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
