package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/introlink/messaging/internal/application"
	"github.com/introlink/messaging/internal/domain"
	"github.com/introlink/messaging/internal/middleware"
	"github.com/introlink/messaging/internal/transport"
)

// RequestHandler exposes the connection gate: first-contact sends, the
// receiver's pending inbox, and accept/reject resolution.
type RequestHandler struct {
	app *application.Service
}

func NewRequestHandler(app *application.Service) *RequestHandler {
	return &RequestHandler{app: app}
}

type attemptSendBody struct {
	ReceiverID  string              `json:"receiver_id"`
	Text        string              `json:"text"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
}

// Create handles POST /api/requests. The response kind tells the caller
// whether the message went straight through or opened a pending request.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body attemptSendBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	result, err := h.app.AttemptSend(r.Context(), application.AttemptSendCommand{
		SenderID:    middleware.UserID(r.Context()),
		ReceiverID:  body.ReceiverID,
		Text:        body.Text,
		Attachments: body.Attachments,
	})
	if err != nil {
		transport.MapError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Kind == application.AttemptSent {
		status = http.StatusOK
	}
	transport.WriteJSON(w, status, result)
}

// List handles GET /api/requests and returns the caller's pending inbox.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	requests, err := h.app.ListIncomingRequests(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		transport.MapError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

// Accept handles POST /api/requests/{id}/accept.
func (h *RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	req, err := h.app.AcceptRequest(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		transport.MapError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, req)
}

// Reject handles POST /api/requests/{id}/reject.
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	req, err := h.app.RejectRequest(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		transport.MapError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, req)
}

// CheckStatus handles GET /api/requests/check/{userId}.
func (h *RequestHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.app.CheckStatus(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "userId"))
	if err != nil {
		transport.MapError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}
