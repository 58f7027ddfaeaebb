package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"soldi/internal/core"
	"soldi/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", log.FieldError, err)
	}
}

// writeError maps domain sentinels to HTTP statuses. Anything unmapped
// is a 500 with a generic body; the detail goes to the log, not the
// client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, core.ErrNotAReceipt):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrInsightsDisabled):
		s.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: err.Error()})
	case isValidationError(err):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			log.FieldError, err,
		)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidAmount,
		core.ErrInvalidType,
		core.ErrInvalidInterval,
		core.ErrEmptyName,
		core.ErrEmptyCategory,
		core.ErrMissingAccount,
		core.ErrMissingDate,
		core.ErrMissingInterval,
		core.ErrEmptyDescription,
		core.ErrMissingUser,
		core.ErrDescriptionTooLong,
		core.ErrUnexpectedInterval,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
