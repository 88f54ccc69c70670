package messages

import (
	"regexp"
	"strings"
)

const (
	// TokenMarkerOpen and TokenMarkerClose delimit a trigger token inside free-form text.
	TokenMarkerOpen  = "[[lastword:"
	TokenMarkerClose = "]]"

	// InvitationPrefix precedes the hex invitation signature in links and bodies.
	InvitationPrefix = "lwi_"
)

var invitationRefPattern = regexp.MustCompile(InvitationPrefix + `([0-9a-fA-F]{64})\b`)

// WrapToken places a trigger token value inside its marker.
func WrapToken(value string) string {
	return TokenMarkerOpen + value + TokenMarkerClose
}

// ExtractToken returns the first marker-wrapped token found in text.
// Quoted reply prefixes and line breaks inside the marker are tolerated.
func ExtractToken(text string) (string, bool) {
	start := strings.Index(text, TokenMarkerOpen)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(TokenMarkerOpen):]
	end := strings.Index(rest, TokenMarkerClose)
	if end < 0 {
		return "", false
	}
	token := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n', '>':
			return -1
		}
		return r
	}, rest[:end])
	if token == "" {
		return "", false
	}
	return token, true
}

// InvitationRef formats a hex signature for transport.
func InvitationRef(signature string) string {
	return InvitationPrefix + strings.ToLower(signature)
}

// ExtractInvitationSignature returns the hex signature of the first invitation reference in text.
func ExtractInvitationSignature(text string) (string, bool) {
	m := invitationRefPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// StripInvitationPrefix accepts either a bare hex signature or a prefixed reference.
func StripInvitationPrefix(ref string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ref), InvitationPrefix))
}
