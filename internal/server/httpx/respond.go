package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/videotube/internal/common"
	"github.com/dmitrijs2005/videotube/internal/logging"
)

// envelope is the body of every API response. Data is omitted on failure.
type envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeData sends a success envelope. A nil data is sent as an empty object.
func writeData(w http.ResponseWriter, status int, data any, msg string) {
	if data == nil {
		data = struct{}{}
	}
	writeJSON(w, status, envelope{Success: true, StatusCode: status, Data: data, Message: msg})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, StatusCode: status, Message: msg})
}

// writeError maps err to a status code and writes the failure envelope.
// Unclassified errors are logged and reported without detail.
func writeError(ctx context.Context, w http.ResponseWriter, logger logging.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(ctx, "request failed", "error", err)
		writeFailure(w, status, "internal server error")
		return
	}
	writeFailure(w, status, common.PublicMessage(err, http.StatusText(status)))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrStaleToken),
		errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
