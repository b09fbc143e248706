package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/introlink/messaging/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrEmptyMessage, http.StatusBadRequest, "empty_message"},
		{domain.ErrMessageTooLarge, http.StatusBadRequest, "message_too_large"},
		{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{domain.ErrNotAuthorized, http.StatusForbidden, "not_authorized"},
		{domain.ErrNotParticipant, http.StatusForbidden, "not_authorized"},
		{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{domain.ErrRequestNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrConversationNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrMessageNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrRequestAlreadyPending, http.StatusConflict, "request_already_pending"},
		{domain.ErrAlreadyConnected, http.StatusConflict, "already_connected"},
		{domain.ErrInvalidState, http.StatusConflict, "invalid_state"},
		{errors.New("driver: bad connection"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			MapError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestInternalErrorsAreMasked(t *testing.T) {
	rec := httptest.NewRecorder()
	MapError(rec, errors.New("password=hunter2 leaked into error"))

	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestWrappedErrorsStillMap(t *testing.T) {
	rec := httptest.NewRecorder()
	MapError(rec, errors.Join(errors.New("context"), domain.ErrRequestAlreadyPending))

	assert.Equal(t, http.StatusConflict, rec.Code)
}
