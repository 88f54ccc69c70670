// Package content loads the protected content that is delivered on release.
// Sources are read lazily, at release time, so the plaintext never sits in memory for the
// whole waiting period.
package content

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/darmiel/lastword/internal/config"
	"github.com/darmiel/lastword/internal/core"
)

const (
	FileType = "file"
	AgeType  = "age"
)

// FileConfig configures a plaintext file source.
type FileConfig struct {
	Path string `mapstructure:"path"`
}

// AgeConfig configures an age-encrypted file source.
type AgeConfig struct {
	Path         string `mapstructure:"path"`
	IdentityFile string `mapstructure:"identity_file"`
}

// Build creates the content source described by cfg.
func Build(cfg config.ContentConfig) (core.ContentSource, error) {
	switch cfg.Type {
	case FileType:
		var conf FileConfig
		if err := decode(cfg.Config, &conf); err != nil {
			return nil, fmt.Errorf("decoding %s content config: %w", FileType, err)
		}
		return NewFileSource(conf.Path)
	case AgeType:
		var conf AgeConfig
		if err := decode(cfg.Config, &conf); err != nil {
			return nil, fmt.Errorf("decoding %s content config: %w", AgeType, err)
		}
		return NewAgeSource(conf.Path, conf.IdentityFile)
	case "":
		return nil, fmt.Errorf("content.type is required")
	default:
		return nil, fmt.Errorf("unknown content type '%s'", cfg.Type)
	}
}

func decode(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

var _ core.ContentSource = (*FileSource)(nil)

// FileSource reads plaintext content from disk.
type FileSource struct {
	path string
}

func NewFileSource(path string) (*FileSource, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("content path cannot be empty")
	}
	return &FileSource{path: path}, nil
}

func (s *FileSource) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading content file: %w", err)
	}
	return data, nil
}
