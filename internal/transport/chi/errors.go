package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/domain"
)

// ErrorCode is the machine-readable code carried in error responses.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodeVectorDimMismatch ErrorCode = "vector_dim_mismatch"
	CodeUnauthenticated   ErrorCode = "unauthenticated"
	CodeForbidden         ErrorCode = "forbidden"
	CodePetNotFound       ErrorCode = "pet_not_found"
	CodeMatchNotFound     ErrorCode = "match_not_found"
	CodeInvalidPetState   ErrorCode = "invalid_pet_state"
	CodeDuplicateMatch    ErrorCode = "duplicate_match"
	CodeAlreadyProcessed  ErrorCode = "already_processed"
	CodeFeatureProvider   ErrorCode = "feature_provider_error"
	CodeStoreUnavailable  ErrorCode = "store_unavailable"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// defaultErrorHandlers is ordered: specific sentinels precede the ones they wrap.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrPetNotFound, http.StatusNotFound, CodePetNotFound),
		sentinelHandler(domain.ErrMatchNotFound, http.StatusNotFound, CodeMatchNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeMatchNotFound),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidPetState, http.StatusUnprocessableEntity, CodeInvalidPetState),
		sentinelHandler(domain.ErrDuplicateMatch, http.StatusConflict, CodeDuplicateMatch),
		sentinelHandler(domain.ErrAlreadyProcessed, http.StatusConflict, CodeAlreadyProcessed),
		sentinelHandler(domain.ErrUnauthorized, http.StatusForbidden, CodeForbidden),
		sentinelHandler(domain.ErrFeatureProvider, http.StatusBadGateway, CodeFeatureProvider),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, CodeStoreUnavailable),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message for err. Validation errors keep
// their detail since it describes the caller's own input.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return validationDetail(err)
	}
	sentinels := []error{
		domain.ErrPetNotFound,
		domain.ErrMatchNotFound,
		domain.ErrNotFound,
		domain.ErrVectorDimMismatch,
		domain.ErrInvalidPetState,
		domain.ErrDuplicateMatch,
		domain.ErrAlreadyProcessed,
		domain.ErrUnauthorized,
		domain.ErrFeatureProvider,
		domain.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// validationDetail drops outer wrapping so only "validation failed: <detail>" remains.
func validationDetail(err error) string {
	msg := domain.ErrValidation.Error()
	for e := err; e != nil && e != domain.ErrValidation; e = errors.Unwrap(e) {
		msg = e.Error()
	}
	return msg
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
