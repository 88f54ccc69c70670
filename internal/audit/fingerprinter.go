package audit

import (
	"crypto/sha256"
	"encoding/base64"
)

const (
	TriggerFingerprintType    = "trigger"
	InvitationFingerprintType = "invitation"
	SessionFingerprintType    = "session"
)

// Fingerprint returns a stable, non-reversible identifier for a credential so that audit
// entries can be correlated without storing the credential itself.
// The type is mixed in so a trigger token and an invitation signature never collide.
func Fingerprint(credentialType, value string) string {
	if value == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(credentialType + ":" + value))
	return base64.RawURLEncoding.EncodeToString(hash[:12])
}
