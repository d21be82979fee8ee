package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"timeledger/internal/platform/apperr"
)

type Error struct {
	Code    string         `json:"code"`
	Kind    apperr.Kind    `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	FailWithDetails(w, status, code, message, nil, requestID)
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any, requestID string) {
	WriteJSON(w, status, Envelope{
		Success:   false,
		Error:     &Error{Code: code, Kind: KindForStatus(status), Message: message, Details: details},
		RequestID: requestID,
	})
}

// FailError writes err using the status bound to its apperr.Kind. Internal
// errors are logged and replaced with a generic message.
func FailError(w http.ResponseWriter, err error, requestID string) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		slog.Error("request failed", "requestId", requestID, "err", err)
		Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
		return
	}

	status := StatusForKind(appErr.Kind)
	message := appErr.Message
	if appErr.Kind == apperr.KindInternal {
		slog.Error("request failed", "requestId", requestID, "err", err)
		message = "internal server error"
	}
	var details map[string]any
	if len(appErr.Fields) > 0 {
		details = map[string]any{"fields": appErr.Fields}
	}
	WriteJSON(w, status, Envelope{
		Success:   false,
		Error:     &Error{Code: codeForKind(appErr.Kind), Kind: appErr.Kind, Message: message, Details: details},
		RequestID: requestID,
	})
}

func StatusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindPermission:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func KindForStatus(status int) apperr.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return apperr.KindValidation
	case http.StatusUnauthorized:
		return apperr.KindUnauthorized
	case http.StatusForbidden:
		return apperr.KindPermission
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusConflict:
		return apperr.KindConflict
	case http.StatusTooManyRequests:
		return apperr.KindRateLimited
	default:
		return apperr.KindInternal
	}
}

func codeForKind(kind apperr.Kind) string {
	switch kind {
	case apperr.KindValidation:
		return "validation_error"
	case apperr.KindInvalidState:
		return "invalid_state"
	case apperr.KindPermission:
		return "forbidden"
	case apperr.KindUnauthorized:
		return "unauthorized"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindConflict:
		return "conflict"
	case apperr.KindRateLimited:
		return "rate_limited"
	default:
		return "internal_error"
	}
}
