package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/lastword/internal/logging"
	"github.com/darmiel/lastword/internal/service"
)

type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	resp := ErrorResponse{
		Error:         msg,
		CorrelationID: logging.CorrelationID(r.Context()),
	}
	JSON(w, r, resp, status)
}

// StatusOf returns the status carried by a service error, or fallback.
func StatusOf(err error, fallback int) int {
	var httpError *service.HTTPError
	if errors.As(err, &httpError) {
		return httpError.StatusCode
	}
	return fallback
}

// Err writes err with the status it carries. Verification errors are replaced by their
// requester-facing explanation so invalid and malformed tokens read the same.
func Err(w http.ResponseWriter, r *http.Request, err error, short string) {
	status := StatusOf(err, http.StatusBadRequest)
	msg := err.Error()
	if service.IsTokenRejection(err) {
		msg = service.Explain(err)
	}
	if short != "" {
		msg = short + ": " + msg
	}
	Error(w, r, msg, status)
}
