package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxBodyBytes    = 1 << 20
)

// Error codes returned in the "error" field of JSON error bodies.
const (
	errorCodeNoCredential       = "no_credential"
	errorCodeInvalidToken       = "invalid_token"
	errorCodeInvalidRequest     = "invalid_request"
	errorCodeInvalidCredentials = "invalid_credentials"
	errorCodeForbidden          = "forbidden"
	errorCodeNotFound           = "not_found"
	errorCodeAlreadyExists      = "already_exists"
	errorCodeUnavailable        = "service_unavailable"
	errorCodeInternal           = "server_error"
)

type validationErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse carries the description twice: error_description for OAuth
// style clients and message for the desktop and mobile apps.
type errorResponse struct {
	Error       string                  `json:"error"`
	Description string                  `json:"error_description,omitempty"`
	Message     string                  `json:"message,omitempty"`
	Fields      []validationErrorDetail `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, errorResponse{Error: errorCode, Description: description, Message: description})
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags. It
// writes the 400 response itself and returns false on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		writeJSONError(w, errorCodeInvalidRequest, "malformed JSON body", http.StatusBadRequest)
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:       errorCodeInvalidRequest,
				Description: "request validation failed",
				Message:     "request validation failed",
				Fields:      formatValidationErrors(validationErrs),
			})
			return false
		}
		writeJSONError(w, errorCodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func formatValidationErrors(errs validator.ValidationErrors) []validationErrorDetail {
	details := make([]validationErrorDetail, 0, len(errs))
	for _, err := range errs {
		var message string
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("Field '%s' is required", err.Field())
		case "email":
			message = fmt.Sprintf("Field '%s' must be a valid email address", err.Field())
		case "min":
			message = fmt.Sprintf("Field '%s' must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("Field '%s' must not exceed %s", err.Field(), err.Param())
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", err.Field(), err.Tag())
		}
		details = append(details, validationErrorDetail{Field: err.Field(), Message: message})
	}
	return details
}

// writeServiceError maps a domain error onto an HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case autherrors.Is(err, autherrors.ErrInvalidArgument), autherrors.Is(err, autherrors.ErrWeakPassword):
		writeJSONError(w, errorCodeInvalidRequest, err.Error(), http.StatusBadRequest)
	case autherrors.Is(err, autherrors.ErrInvalidCredentials):
		writeJSONError(w, errorCodeInvalidCredentials, "invalid username or password", http.StatusUnauthorized)
	case autherrors.Is(err, autherrors.ErrForbidden):
		writeJSONError(w, errorCodeForbidden, "access to this resource is not allowed", http.StatusForbidden)
	case autherrors.Is(err, autherrors.ErrNotFound):
		writeJSONError(w, errorCodeNotFound, "resource not found", http.StatusNotFound)
	case autherrors.Is(err, autherrors.ErrAlreadyExists):
		writeJSONError(w, errorCodeAlreadyExists, "username or email already registered", http.StatusConflict)
	case autherrors.Is(err, autherrors.ErrLedgerUnavailable):
		writeJSONError(w, errorCodeUnavailable, "authentication temporarily unavailable", http.StatusServiceUnavailable)
	default:
		log.Err(err).Msg("request failed")
		writeJSONError(w, errorCodeInternal, "internal server error", http.StatusInternalServerError)
	}
}
