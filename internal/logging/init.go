package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	LevelKey   = "log.level"
	FormatKey  = "log.format"
	NoColorKey = "log.no_color"
)

// InitDefault installs a console logger before flags and config are parsed.
func InitDefault() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}).With().Timestamp().Logger()
}

// Init configures the global logger from viper (log.level, log.format, log.no_color).
// A nil out writes to stderr.
func Init(out io.Writer) {
	if out == nil {
		out = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString(LevelKey)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = out
	if viper.GetString(FormatKey) != "json" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    viper.GetBool(NoColorKey),
			TimeFormat: time.Kitchen,
		}
	}

	l := zerolog.New(w).With().Timestamp()
	if level <= zerolog.DebugLevel {
		l = l.Caller()
	}
	log.Logger = l.Logger()
	zerolog.DefaultContextLogger = &log.Logger
}
