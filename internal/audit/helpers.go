package audit

import (
	"fmt"

	"github.com/darmiel/lastword/internal/buildinfo"
)

func CreateUserAgent(dispatcher, idempotencyKey string) string {
	if idempotencyKey == "" {
		return fmt.Sprintf("lastword/%s (dispatcher=%s)", buildinfo.Version, dispatcher)
	}
	return fmt.Sprintf("lastword/%s (dispatcher=%s; key=%s)", buildinfo.Version, dispatcher, idempotencyKey)
}
