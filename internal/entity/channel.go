package entity

import (
	"time"

	"github.com/questx-lab/chatsync/pkg/enum"
)

type ChannelKind string

var (
	ChannelPublic  = enum.New(ChannelKind("public"))
	ChannelPrivate = enum.New(ChannelKind("private"))
	ChannelDirect  = enum.New(ChannelKind("direct"))
	ChannelSupport = enum.New(ChannelKind("support"))
)

type Channel struct {
	ID          string        `json:"id" gorm:"primaryKey"`
	Kind        ChannelKind   `json:"kind"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	CreatedBy   string        `json:"created_by"`
	Members     Array[string] `json:"members"`
	Archived    bool          `json:"archived"`

	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (t *Channel) TableName() string {
	return "channels"
}

// IsMember reports whether userID can see the channel. Public channels have
// no member list and are visible to everyone.
func (t *Channel) IsMember(userID string) bool {
	if t.Kind == ChannelPublic {
		return true
	}

	for _, id := range t.Members {
		if id == userID {
			return true
		}
	}

	return false
}
