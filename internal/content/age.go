package content

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/darmiel/lastword/internal/core"
)

var _ core.ContentSource = (*AgeSource)(nil)

// AgeSource decrypts an age-encrypted file (binary or ASCII-armored) with the identities
// in an identity file. Both files are read on every Load.
type AgeSource struct {
	path         string
	identityFile string
}

func NewAgeSource(path, identityFile string) (*AgeSource, error) {
	path = strings.TrimSpace(path)
	identityFile = strings.TrimSpace(identityFile)
	if path == "" {
		return nil, fmt.Errorf("content path cannot be empty")
	}
	if identityFile == "" {
		return nil, fmt.Errorf("identity_file cannot be empty for age content")
	}
	return &AgeSource{path: path, identityFile: identityFile}, nil
}

func (s *AgeSource) Load(_ context.Context) ([]byte, error) {
	idFile, err := os.Open(s.identityFile)
	if err != nil {
		return nil, fmt.Errorf("opening identity file: %w", err)
	}
	defer func() {
		_ = idFile.Close()
	}()
	identities, err := age.ParseIdentities(idFile)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file: %w", err)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening content file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	br := bufio.NewReader(f)
	var src io.Reader = br
	if head, _ := br.Peek(len(armor.Header)); string(head) == armor.Header {
		src = armor.NewReader(br)
	}

	plain, err := age.Decrypt(src, identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting content: %w", err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted content: %w", err)
	}
	return data, nil
}

// Seal encrypts plaintext to the given age recipients (age1... public keys).
func Seal(plaintext []byte, recipientKeys []string, armored bool) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		r, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, r)
	}

	var buf bytes.Buffer
	var dst io.Writer = &buf
	var armorWriter io.WriteCloser
	if armored {
		armorWriter = armor.NewWriter(&buf)
		dst = armorWriter
	}

	w, err := age.Encrypt(dst, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	if armorWriter != nil {
		if err := armorWriter.Close(); err != nil {
			return nil, fmt.Errorf("finalizing armor: %w", err)
		}
	}
	return buf.Bytes(), nil
}
