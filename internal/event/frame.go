package event

import (
	"encoding/json"
	"fmt"
)

// Client->server frame types.
const (
	FrameSetup      = "setup"
	FrameJoinChat   = "join_chat"
	FrameLeaveChat  = "leave_chat"
	FrameTyping     = "typing"
	FrameStopTyping = "stop_typing"
)

// ClientFrame is what a connected client may send over the socket.
// setup binds the connection to the user channel; join_chat/leave_chat
// manage conversation room membership; typing frames are republished
// to the room and never persisted.
type ClientFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func ParseClientFrame(raw []byte) (ClientFrame, error) {
	var f ClientFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return ClientFrame{}, fmt.Errorf("parse client frame: %w", err)
	}
	switch f.Type {
	case FrameSetup:
	case FrameJoinChat, FrameLeaveChat, FrameTyping, FrameStopTyping:
		if f.ConversationID == "" {
			return ClientFrame{}, fmt.Errorf("frame %s requires conversation_id", f.Type)
		}
	default:
		return ClientFrame{}, fmt.Errorf("unknown client frame type %q", f.Type)
	}
	return f, nil
}
