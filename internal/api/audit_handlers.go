package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/lastword/internal/api/presenter"
	"github.com/darmiel/lastword/internal/core"
)

// handleAdminAudit processes requests to retrieve audit log entries.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	reader, ok := s.auditor.(core.AuditReader)
	if !ok {
		presenter.Error(w, r, "the configured auditor cannot be queried", http.StatusNotImplemented)
		return
	}

	// filters
	q := r.URL.Query()
	limitStr := q.Get("limit")

	filterCorrelationID := q.Get("correlation_id")
	filterIdentity := q.Get("identity")
	filterInstance := q.Get("instance")
	filterAction := q.Get("action")
	filterFingerprint := q.Get("fingerprint")

	limit := 50
	if limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil {
			logger.Warn().Err(err).Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	entries, err := reader.Find(func(entry core.AuditEntry) bool {
		if filterCorrelationID != "" && entry.ID != filterCorrelationID {
			return false
		}
		if filterIdentity != "" && entry.Identity != filterIdentity {
			return false
		}
		if filterInstance != "" && entry.Instance != filterInstance {
			return false
		}
		if filterAction != "" && entry.Action != filterAction {
			return false
		}
		if filterFingerprint != "" && entry.Fingerprint != filterFingerprint {
			return false
		}
		return true
	}, limit)
	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve audit logs")
		presenter.Error(w, r, "failed to retrieve audit logs", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}

	presenter.JSON(w, r, entries, http.StatusOK)
}
