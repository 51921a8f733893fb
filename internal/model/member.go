package model

import "github.com/questx-lab/chatsync/internal/entity"

type GetMembersRequest struct {
	ChannelID string `json:"channel_id"`
}

type GetMembersResponse struct {
	Result
	Members []entity.ChannelMember `json:"members"`
}

type AddMemberRequest struct {
	ChannelID   string `json:"channel_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type AddMemberResponse struct {
	Result
}

type SetRoleRequest struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
}

type SetRoleResponse struct {
	Result
}

type KickRequest struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

type KickResponse struct {
	Result
}
