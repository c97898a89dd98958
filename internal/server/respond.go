package server

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/amcolab/sell-bot/internal/common/errors"
	"github.com/amcolab/sell-bot/internal/common/validation"
	"github.com/amcolab/sell-bot/internal/form"
)

const maxRequestBytes = 64 << 10

type errorBody struct {
	Error  *apperrors.StandardError     `json:"error"`
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeInvalidRequest, apperrors.ErrCodeInvalidFieldPath:
		return http.StatusBadRequest
	case apperrors.ErrCodeFormValidationFailed, apperrors.ErrCodeSubmissionRejected:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeSubmissionFailed, apperrors.ErrCodeVoucherLookupFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Failed to write response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeErrorWith(w, err, nil)
}

func (s *Server) writeErrorWith(w http.ResponseWriter, err error, fieldErrors []validation.ValidationError) {
	stdErr := apperrors.AsStandard(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", map[string]interface{}{
			"code":    stdErr.Code,
			"details": stdErr.Details,
		})
	}
	s.writeJSON(w, status, errorBody{Error: stdErr, Errors: fieldErrors})
}

// pathError maps a bad field path to INVALID_FIELD_PATH and passes other
// errors through.
func pathError(raw string, err error) error {
	if errors.Is(err, form.ErrInvalidPath) {
		stdErr := apperrors.NewInvalidFieldPathError(raw)
		stdErr.Details = err.Error()
		return stdErr
	}
	return err
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
