package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/teamsync/pkg/teamsync"
)

// ErrorResponse is the JSON body returned for rejected requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps core errors to HTTP status codes
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case teamsync.IsValidationError(err), errors.Is(err, errMalformedUpload):
		return http.StatusBadRequest
	case errors.Is(err, teamsync.ErrDisallowedExtension):
		return http.StatusForbidden
	case errors.Is(err, teamsync.ErrEmptyName), errors.Is(err, teamsync.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, teamsync.ErrAssetNotFound), errors.Is(err, teamsync.ErrUnknownNamespace):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// rejectReason labels a failed upload for metrics
func rejectReason(err error) string {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return "too_large"
	case errors.Is(err, teamsync.ErrDisallowedExtension):
		return "disallowed_extension"
	case errors.Is(err, teamsync.ErrEmptyName), errors.Is(err, teamsync.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, errMalformedUpload):
		return "bad_request"
	case errors.Is(err, teamsync.ErrStorageFailure):
		return "storage_failure"
	default:
		return "bad_request"
	}
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}
