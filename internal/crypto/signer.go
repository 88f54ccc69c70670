package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the minimum accepted length of the shared secret in bytes.
const MinSecretLength = 32

// Signer signs and verifies payloads with HMAC-SHA256 under the shared secret.
// It holds no mutable state and is safe for concurrent use.
type Signer struct {
	secret []byte
}

func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("shared secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	cpy := make([]byte, len(secret))
	copy(cpy, secret)
	return &Signer{secret: cpy}, nil
}

func (s *Signer) Sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

// Verify recomputes the MAC of payload and compares it to signature in constant time.
func (s *Signer) Verify(payload, signature []byte) bool {
	return hmac.Equal(s.Sign(payload), signature)
}

// DeriveKey derives a purpose-bound subkey from the shared secret (HKDF-SHA256).
// It keeps e.g. the owner session key apart from the token MAC key.
func (s *Signer) DeriveKey(purpose string, length int) ([]byte, error) {
	key := make([]byte, length)
	r := hkdf.New(sha256.New, s.secret, nil, []byte("lastword/"+purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving '%s' key: %w", purpose, err)
	}
	return key, nil
}
