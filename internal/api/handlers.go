package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DecodePayload strictly decodes a JSON request body into dest.
func DecodePayload(r *http.Request, dest any, allowEmpty bool) error {
	mediaType := r.Header.Get("Content-Type")
	if mediaType != "" {
		var err error
		if mediaType, _, err = mime.ParseMediaType(mediaType); err != nil {
			return fmt.Errorf("invalid content type: %w", err)
		}
	}
	switch mediaType {
	case "application/json", "":
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dest); err != nil {
			if !errors.Is(err, io.EOF) || !allowEmpty {
				return err
			}
		}
		// ensure there's no extra data
		if dec.More() {
			return errors.New("extra data in request body")
		}
		return nil
	default:
		return errors.New("unsupported content type")
	}
}
