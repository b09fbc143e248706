package transport

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/domain"
	"github.com/introlink/messaging/internal/observability"
)

// MapError translates a domain error into the HTTP response the API
// contract promises: 400 validation, 403 authorization, 404 unknown ids,
// 409 state conflicts. Anything else is a masked 500.
func MapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		WriteError(w, http.StatusBadRequest, "empty_message", err.Error())
	case errors.Is(err, domain.ErrMessageTooLarge):
		WriteError(w, http.StatusBadRequest, "message_too_large", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_input", err.Error())

	case errors.Is(err, domain.ErrNotAuthorized),
		errors.Is(err, domain.ErrNotParticipant):
		WriteError(w, http.StatusForbidden, "not_authorized", "access denied")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", err.Error())

	case errors.Is(err, domain.ErrRequestNotFound),
		errors.Is(err, domain.ErrConversationNotFound),
		errors.Is(err, domain.ErrMessageNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, domain.ErrRequestAlreadyPending):
		WriteError(w, http.StatusConflict, "request_already_pending", err.Error())
	case errors.Is(err, domain.ErrAlreadyConnected):
		WriteError(w, http.StatusConflict, "already_connected", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		WriteError(w, http.StatusConflict, "invalid_state", err.Error())

	default:
		observability.GetLogger(context.Background()).Error("internal error", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}
