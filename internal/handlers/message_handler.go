package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/introlink/messaging/internal/application"
	"github.com/introlink/messaging/internal/domain"
	"github.com/introlink/messaging/internal/middleware"
	"github.com/introlink/messaging/internal/storage"
	"github.com/introlink/messaging/internal/transport"
)

const maxUploadMemory = 32 << 20

type MessageHandler struct {
	app   *application.Service
	store storage.Store
}

func NewMessageHandler(app *application.Service, store storage.Store) *MessageHandler {
	return &MessageHandler{app: app, store: store}
}

type postMessageBody struct {
	ConversationID string              `json:"conversation_id"`
	Text           string              `json:"text"`
	IdempotencyKey string              `json:"idempotency_key"`
	Attachments    []domain.Attachment `json:"attachments,omitempty"`
}

// Post handles POST /api/messages. JSON bodies carry text and already
// uploaded attachment metadata; multipart bodies upload the files inline.
// Clients that retry on timeout must resend the same idempotency key to get
// the stored response instead of a duplicate message.
func (h *MessageHandler) Post(w http.ResponseWriter, r *http.Request) {
	var cmd application.PostMessageCommand
	var err error

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		cmd, err = h.parseMultipart(r)
		if err != nil {
			transport.WriteError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
	} else {
		var body postMessageBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			transport.WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
		cmd = application.PostMessageCommand{
			ConversationID: body.ConversationID,
			IdempotencyKey: body.IdempotencyKey,
			Text:           body.Text,
			Attachments:    body.Attachments,
		}
	}

	cmd.SenderID = middleware.UserID(r.Context())
	if cmd.IdempotencyKey == "" {
		cmd.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	if cmd.IdempotencyKey == "" {
		cmd.IdempotencyKey = uuid.NewString()
	}

	msg, err := h.app.PostMessage(r.Context(), cmd)
	if err != nil {
		transport.MapError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) parseMultipart(r *http.Request) (application.PostMessageCommand, error) {
	cmd := application.PostMessageCommand{}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return cmd, err
	}

	cmd.ConversationID = r.FormValue("conversation_id")
	cmd.Text = r.FormValue("text")
	cmd.IdempotencyKey = r.FormValue("idempotency_key")

	for _, header := range r.MultipartForm.File["attachments"] {
		f, err := header.Open()
		if err != nil {
			return cmd, err
		}

		att, err := h.store.Put(
			r.Context(),
			header.Filename,
			header.Header.Get("Content-Type"),
			header.Size,
			f,
		)
		f.Close()
		if err != nil {
			return cmd, err
		}
		cmd.Attachments = append(cmd.Attachments, att)
	}

	return cmd, nil
}

// Delete handles DELETE /api/messages/{id}. Only the sender may delete,
// and deleting an already deleted message is a no-op.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.app.DeleteMessage(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		transport.MapError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
