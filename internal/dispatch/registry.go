// Package dispatch hands outbound messages to the external message router.
package dispatch

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/darmiel/lastword/internal/config"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/crypto"
)

// Build creates the dispatcher described by cfg. signer provides the default webhook signing key.
func Build(cfg config.DispatcherConfig, signer *crypto.Signer) (core.Dispatcher, error) {
	switch cfg.Type {
	case LogType, "":
		var conf LogConfig
		if err := decode(cfg.Config, &conf); err != nil {
			return nil, fmt.Errorf("decoding config of %s dispatcher '%s': %w", LogType, cfg.Name, err)
		}
		return NewLogDispatcher(cfg.Name, conf), nil
	case WebhookType:
		var conf WebhookConfig
		if err := decode(cfg.Config, &conf); err != nil {
			return nil, fmt.Errorf("decoding config of %s dispatcher '%s': %w", WebhookType, cfg.Name, err)
		}
		d, err := NewWebhookDispatcher(cfg.Name, conf, signer)
		if err != nil {
			return nil, fmt.Errorf("building %s dispatcher '%s': %w", WebhookType, cfg.Name, err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown dispatcher type %q for dispatcher %q", cfg.Type, cfg.Name)
	}
}

func decode(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
