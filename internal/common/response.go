package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// APIError is the structured failure body returned for every rejection.
type APIError struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusFor maps an error kind to its HTTP status and category label.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrAuthenticationFailed),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrInvalidRefreshTokenType),
		errors.Is(err, ErrTokenNotRecognized),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenOwnershipMismatch),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrMissingToken):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, ErrAccountDisabled), errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "Validation Error"
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrAlreadyAdmin):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Resource Not Found"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// WriteError renders err as an APIError. Unknown errors never leak their text.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, label := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Something went wrong"
	}
	WriteJSON(w, status, APIError{
		Status:    status,
		Error:     label,
		Message:   msg,
		Path:      r.URL.Path,
		Timestamp: time.Now().UTC(),
	})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
