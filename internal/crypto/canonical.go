package crypto

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode encodes with CBOR Core Deterministic Encoding (RFC 8949 §4.2.1):
// map keys are sorted by the length of their encoding first, then bytewise.
// Signing and verifying both go through Canonicalize, so the key order is fixed
// for any given set of field names. Changing it invalidates every issued credential.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("crypto: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("crypto: CBOR decoder initialization failed: " + err.Error())
	}
}

// Canonicalize encodes fields as a deterministic CBOR map of text strings.
//
// For the invitation payload {contact, owner, usage} the encoded order is
// owner, usage, contact. For the trigger payload {exp, nbf, sub, usage, version}
// it is exp, nbf, sub, usage, version.
func Canonicalize(fields map[string]string) ([]byte, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("canonicalize: no fields")
	}
	out, err := encMode.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

// Decanonicalize decodes a payload produced by Canonicalize.
// It rejects duplicate keys and anything that is not a text→text map.
func Decanonicalize(data []byte) (map[string]string, error) {
	var fields map[string]string
	if err := decMode.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decanonicalize: %w", err)
	}
	return fields, nil
}
