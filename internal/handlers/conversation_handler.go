package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/introlink/messaging/internal/application"
	"github.com/introlink/messaging/internal/middleware"
	"github.com/introlink/messaging/internal/transport"
)

type ConversationHandler struct {
	app *application.Service
}

func NewConversationHandler(app *application.Service) *ConversationHandler {
	return &ConversationHandler{app: app}
}

type openConversationBody struct {
	UserID string `json:"user_id"`
}

// Open handles POST /api/conversations. It resolves or lazily creates the
// direct conversation between the caller and a connected peer.
func (h *ConversationHandler) Open(w http.ResponseWriter, r *http.Request) {
	var body openConversationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	conv, err := h.app.OpenConversation(r.Context(), middleware.UserID(r.Context()), body.UserID)
	if err != nil {
		transport.MapError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, conv)
}

// List handles GET /api/conversations.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	convs, err := h.app.ListConversations(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		transport.MapError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"conversations": convs})
}

// Messages handles GET /api/conversations/{id}/messages. Pagination is
// cursor based: after_sequence is the last sequence the client already has.
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	afterSequence, _ := strconv.ParseInt(r.URL.Query().Get("after_sequence"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.app.ListMessages(
		r.Context(),
		chi.URLParam(r, "id"),
		middleware.UserID(r.Context()),
		afterSequence,
		limit,
	)
	if err != nil {
		transport.MapError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// MarkRead handles POST /api/conversations/{id}/read.
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	err := h.app.MarkRead(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		transport.MapError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Unread handles GET /api/conversations/unread, the authoritative counters
// clients reconcile their local badges against.
func (h *ConversationHandler) Unread(w http.ResponseWriter, r *http.Request) {
	counts, err := h.app.UnreadSnapshot(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		transport.MapError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"unread": counts})
}
