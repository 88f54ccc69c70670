package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/darmiel/lastword/internal/audit"
	"github.com/darmiel/lastword/internal/cliconfig"
	"github.com/darmiel/lastword/internal/config"
	"github.com/darmiel/lastword/internal/crypto"
	"github.com/darmiel/lastword/internal/dispatch"
	"github.com/darmiel/lastword/internal/messages"
	"github.com/darmiel/lastword/internal/service"
	"github.com/darmiel/lastword/internal/session"
	"github.com/darmiel/lastword/pkg/client"
)

type Factory struct {
	// RemoteAddr is the address of the lastword server to connect to.
	RemoteAddr string

	// ConfigPath is the server configuration used by serve and by local commands.
	ConfigPath string
}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) serverAddr() string {
	if f.RemoteAddr != "" { // prio 1: command-line flag
		return f.RemoteAddr
	}
	if addr := viper.GetString(ServerAddrKey); addr != "" { // prio 2: config/env
		return addr
	}
	if cfg, err := cliconfig.Load(); err == nil { // prio 3: saved default
		return cfg.DefaultServer
	}
	return ""
}

// GetClient returns an authenticated HTTP client for remote operations.
func (f *Factory) GetClient() (*client.Client, error) {
	server := f.serverAddr()
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set LASTWORD_ADDR)")
	}

	var token string
	if cfg, err := cliconfig.Load(); err == nil {
		cred, err := cfg.GetCredential(server, time.Now())
		switch {
		case err == nil: // token prio 1: saved credential
			token = cred.Token
		case errors.Is(err, cliconfig.ErrCredentialExpired):
			log.Warn().Msg(err.Error())
		}
	}

	if envToken := os.Getenv(TokenEnv); envToken != "" { // token prio 2: env var
		token = envToken
	}

	return client.New(server, client.WithAuthToken(token)), nil
}

func (f *Factory) LoadConfig() (*config.Config, error) {
	path := f.ConfigPath
	if path == "" {
		path = viper.GetString(ConfigPathKey)
	}
	if path == "" {
		return nil, fmt.Errorf("config file not specified (use --config or set LASTWORD_CONFIG)")
	}
	return config.Load(path)
}

func (f *Factory) Signer(cfg *config.Config) (*crypto.Signer, error) {
	secret, err := cfg.ResolveSecret()
	if err != nil {
		return nil, err
	}
	return crypto.NewSigner(secret)
}

// LocalServices are the stateless services usable without a running server.
type LocalServices struct {
	Config      *config.Config
	Signer      *crypto.Signer
	Tokens      *service.TokenService
	Invitations *service.InvitationService
	Sessions    *session.Manager
}

// GetLocalServices builds the token, invitation and session services from the config file.
// Local operations are not audited and do not dispatch anything.
func (f *Factory) GetLocalServices() (*LocalServices, error) {
	cfg, err := f.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	signer, err := f.Signer(cfg)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewManager(signer)
	if err != nil {
		return nil, err
	}
	composer := messages.NewComposer(cfg.Sender, cfg.Owner, cfg.CallbackURL)
	return &LocalServices{
		Config:      cfg,
		Signer:      signer,
		Tokens:      service.NewTokenService(signer, tokenDefaults(cfg), audit.NewNoopAuditor()),
		Invitations: service.NewInvitationService(signer, dispatch.NewLogDispatcher("local", dispatch.LogConfig{}), composer, audit.NewNoopAuditor(), 1, 0),
		Sessions:    sessions,
	}, nil
}

func tokenDefaults(cfg *config.Config) service.TokenDefaults {
	return service.TokenDefaults{
		NotBeforeDays:  float64(cfg.Tokens.NotBeforeDays),
		ExpirationDays: float64(cfg.Tokens.ExpirationDays),
	}
}

// bindRemoteFlag adds --remote to commands that work either locally or against the server.
func bindRemoteFlag(flags *pflag.FlagSet, target *bool) {
	flags.BoolVar(target, "remote", false, "Use the server instead of the local config")
}

// bindWindowFlags adds the trigger token validity window flags.
func bindWindowFlags(flags *pflag.FlagSet, notBefore, expiration *float64) {
	flags.Float64Var(notBefore, "not-before", 0, "Days until the token becomes valid (0 = configured default)")
	flags.Float64Var(expiration, "expiration", 0, "Days until the token expires (0 = configured default)")
}
