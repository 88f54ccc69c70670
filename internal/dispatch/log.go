package dispatch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/lastword/internal/core"
)

const LogType = "log"

type LogConfig struct {
	// IncludeBody logs the full message body. The release body is the protected content,
	// so this should only be enabled for local testing.
	IncludeBody bool `mapstructure:"include_body"`
}

var _ core.Dispatcher = (*LogDispatcher)(nil)

// LogDispatcher writes outbound messages to the log instead of delivering them.
type LogDispatcher struct {
	name        string
	includeBody bool
}

func NewLogDispatcher(name string, conf LogConfig) *LogDispatcher {
	if name == "" {
		name = LogType
	}
	return &LogDispatcher{
		name:        name,
		includeBody: conf.IncludeBody,
	}
}

func (d *LogDispatcher) Name() string {
	return d.name
}

func (d *LogDispatcher) Send(ctx context.Context, msg core.Message) error {
	ev := log.Ctx(ctx).Info().
		Str("dispatcher", d.name).
		Str("sender", msg.Sender).
		Str("recipient", msg.Recipient).
		Str("subject", msg.Subject).
		Str("idempotency_key", msg.IdempotencyKey).
		Int("body_bytes", len(msg.Body))
	if d.includeBody {
		ev = ev.Str("body", msg.Body)
	}
	ev.Msg("outbound message")
	return nil
}
