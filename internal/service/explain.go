package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/darmiel/lastword/internal/core"
)

// GenericInvalidTokenMessage is shown for tampered, unrelated and malformed credentials alike.
const GenericInvalidTokenMessage = "This token is invalid. Please check that you copied it completely, or ask the owner for a new one."

// Explain turns a verification error into a message for the requester. Only errors of
// correctly signed tokens are explained in detail.
func Explain(err error) string {
	if err == nil {
		return ""
	}

	var nyv core.NotYetValidError
	if errors.As(err, &nyv) {
		return fmt.Sprintf("This token is not valid yet. It can be used from %s on.",
			nyv.NotBefore.UTC().Format(time.RFC1123))
	}

	var exp core.ExpiredError
	if errors.As(err, &exp) {
		return fmt.Sprintf("This token expired on %s. Please ask the owner for a new one.",
			exp.ExpiresAt.UTC().Format(time.RFC1123))
	}

	if errors.Is(err, core.ErrInvalidSignature) || errors.Is(err, core.ErrMalformedToken) {
		return GenericInvalidTokenMessage
	}
	return err.Error()
}
