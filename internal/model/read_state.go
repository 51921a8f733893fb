package model

import "github.com/questx-lab/chatsync/internal/entity"

type GetUnreadRequest struct{}

type GetUnreadResponse struct {
	Result
	Statuses []entity.UnreadStatus `json:"statuses"`
}

type MarkChannelReadRequest struct {
	ChannelID string `json:"channel_id"`
}

type MarkChannelReadResponse struct {
	Result
}

type MarkMessagesReadRequest struct {
	ChannelID  string   `json:"channel_id"`
	MessageIDs []string `json:"message_ids"`
}

type MarkMessagesReadResponse struct {
	Result
}

type GetReceiptsRequest struct {
	MessageIDs []string `json:"message_ids"`
}

type GetReceiptsResponse struct {
	Result
	Receipts []entity.ReadReceipt `json:"receipts"`
}
