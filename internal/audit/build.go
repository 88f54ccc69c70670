package audit

import (
	"fmt"

	"github.com/darmiel/lastword/internal/config"
	"github.com/darmiel/lastword/internal/core"
)

// Build creates the auditor described by cfg. A disabled audit config yields a NoopAuditor.
func Build(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "memory", "":
		return NewInMemoryAuditor(), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("audit type 'file' requires a path")
		}
		return NewFileAuditor(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown audit type '%s'", cfg.Type)
	}
}
