package model

import (
	"time"

	"github.com/questx-lab/chatsync/internal/entity"
)

type GetMessagesRequest struct {
	ChannelID string `json:"channel_id"`

	// Before is the exclusive upper bound of created_at. Nil fetches the
	// newest page.
	Before *time.Time `json:"before,omitempty"`
	Limit  int        `json:"limit"`
}

// GetMessagesResponse lists top-level messages newest first.
type GetMessagesResponse struct {
	Result
	Messages []entity.Message `json:"messages"`
}

type GetThreadRequest struct {
	ParentID string `json:"parent_id"`
}

// GetThreadResponse lists the replies of a thread oldest first.
type GetThreadResponse struct {
	Result
	Parent  entity.Message   `json:"parent"`
	Replies []entity.Message `json:"replies"`
}

type SendMessageRequest struct {
	ChannelID string   `json:"channel_id"`
	Body      string   `json:"body"`
	Kind      string   `json:"kind"`
	ThreadID  *string  `json:"thread_id,omitempty"`
	Mentions  []string `json:"mentions,omitempty"`
}

type SendMessageResponse struct {
	Result
	Message entity.Message `json:"message"`
}

type EditMessageRequest struct {
	MessageID string `json:"message_id"`
	Body      string `json:"body"`
}

type EditMessageResponse struct {
	Result
}

type DeleteMessageRequest struct {
	MessageID string `json:"message_id"`
}

type DeleteMessageResponse struct {
	Result
}

type ToggleReactionRequest struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type ToggleReactionResponse struct {
	Result
}

type PinMessageRequest struct {
	MessageID string `json:"message_id"`
	Pinned    bool   `json:"pinned"`
}

type PinMessageResponse struct {
	Result
}
