// Package cliconfig persists the CLI's own state: saved owner sessions per server.
package cliconfig

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialExpired  = errors.New("saved session has expired, run 'lastword login' again")
)

// PathEnv overrides the location of the CLI state file.
const PathEnv = "LASTWORD_CLI_CONFIG"

type Credential struct {
	Token     string    `yaml:"token"`
	Subject   string    `yaml:"subject,omitempty"`
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`
}

// Expired reports whether the session is known to have expired at now.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// CredentialFromToken reads subject and expiry from a session token without verifying it.
// The server remains the only party that checks the signature.
func CredentialFromToken(raw string) (*Credential, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("malformed session token: %w", err)
	}
	cred := &Credential{Token: raw, Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred, nil
}

type CLIConfig struct {
	// DefaultServer is used when neither --server nor LASTWORD_ADDR is set.
	DefaultServer string                 `yaml:"default_server,omitempty"`
	Credentials   map[string]*Credential `yaml:"credentials"`
}

func GetConfigPath() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home directory: %w", err)
	}
	return filepath.Join(home, ".lastword", "cli.yaml"), nil
}

// Load reads the CLI state. A missing file yields an empty config.
func Load() (*CLIConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &CLIConfig{Credentials: map[string]*Credential{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cli config '%s': %w", path, err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding cli config '%s': %w", path, err)
	}
	if cfg.Credentials == nil {
		cfg.Credentials = map[string]*Credential{}
	}
	return &cfg, nil
}

func Save(cfg *CLIConfig) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating cli config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding cli config: %w", err)
	}
	// sessions are bearer credentials
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing cli config '%s': %w", path, err)
	}
	return nil
}

func hostOf(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parsing server URL '%s': %w", server, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server URL '%s' has no host", server)
	}
	return u.Host, nil
}

// GetCredential returns the saved, unexpired session for server.
func (c *CLIConfig) GetCredential(server string, now time.Time) (*Credential, error) {
	host, err := hostOf(server)
	if err != nil {
		return nil, err
	}
	cred, ok := c.Credentials[host]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	if cred.Expired(now) {
		return nil, ErrCredentialExpired
	}
	return cred, nil
}

// SetCredential stores cred for server, replacing any previous session.
func (c *CLIConfig) SetCredential(server string, cred *Credential) error {
	host, err := hostOf(server)
	if err != nil {
		return err
	}
	if c.Credentials == nil {
		c.Credentials = map[string]*Credential{}
	}
	c.Credentials[host] = cred
	return nil
}

// RemoveCredential forgets the session for server and reports whether one existed.
func (c *CLIConfig) RemoveCredential(server string) (bool, error) {
	host, err := hostOf(server)
	if err != nil {
		return false, err
	}
	_, ok := c.Credentials[host]
	delete(c.Credentials, host)
	return ok, nil
}
