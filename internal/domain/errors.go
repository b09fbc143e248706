package domain

import "errors"

var (
	// Validation
	ErrEmptyMessage    = errors.New("message has no text or attachments")
	ErrMessageTooLarge = errors.New("message too large")
	ErrInvalidInput    = errors.New("invalid input")

	// State conflicts
	ErrRequestAlreadyPending = errors.New("message request already pending")
	ErrAlreadyConnected      = errors.New("users already connected")
	ErrInvalidState          = errors.New("request is not in a transitionable state")

	// Authorization
	ErrNotAuthorized  = errors.New("user not authorized for this action")
	ErrNotParticipant = errors.New("user not a conversation participant")
	ErrForbidden      = errors.New("messaging relationship not accepted")

	// Not found
	ErrRequestNotFound      = errors.New("message request not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)
