package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/questx-lab/chatsync/pkg/enum"
)

type MessageKind string

var (
	MessageText   = enum.New(MessageKind("text"))
	MessageFile   = enum.New(MessageKind("file"))
	MessageSystem = enum.New(MessageKind("system"))
)

// Reactions maps an emoji to the ids of the users who reacted with it.
type Reactions map[string][]string

func (r *Reactions) Scan(obj any) error {
	switch t := obj.(type) {
	case string:
		return json.Unmarshal([]byte(t), r)
	case []byte:
		return json.Unmarshal(t, r)
	case nil:
		*r = nil
		return nil
	}

	return fmt.Errorf("cannot scan invalid data type %T", obj)
}

func (r Reactions) Value() (driver.Value, error) {
	if r == nil {
		return "{}", nil
	}

	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}

	return string(b), nil
}

// Clone returns a deep copy. A nil map stays nil so that a restored copy is
// indistinguishable from the original.
func (r Reactions) Clone() Reactions {
	if r == nil {
		return nil
	}

	clone := make(Reactions, len(r))
	for emoji, users := range r {
		if users == nil {
			clone[emoji] = nil
			continue
		}
		clone[emoji] = append([]string{}, users...)
	}

	return clone
}

// Toggle returns a copy of r with userID added to or removed from the set of
// emoji. Emojis left without users are removed.
func (r Reactions) Toggle(emoji, userID string) Reactions {
	result := r.Clone()
	if result == nil {
		result = Reactions{}
	}

	users := result[emoji]
	for i, id := range users {
		if id == userID {
			users = append(users[:i:i], users[i+1:]...)
			if len(users) == 0 {
				delete(result, emoji)
			} else {
				result[emoji] = users
			}
			return result
		}
	}

	result[emoji] = append(users, userID)
	return result
}

func (r Reactions) Has(emoji, userID string) bool {
	for _, id := range r[emoji] {
		if id == userID {
			return true
		}
	}

	return false
}

type Message struct {
	ID         string        `json:"id" gorm:"primaryKey"`
	ChannelID  string        `json:"channel_id" gorm:"index"`
	SenderID   string        `json:"sender_id"`
	SenderName string        `json:"sender_name"`
	Body       string        `json:"body"`
	Kind       MessageKind   `json:"kind"`
	ThreadID   *string       `json:"thread_id" gorm:"index"`
	Reactions  Reactions     `json:"reactions"`
	Mentions   Array[string] `json:"mentions"`
	Pinned     bool          `json:"pinned"`
	Edited     bool          `json:"edited"`
	ReplyCount int           `json:"reply_count"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Message) TableName() string {
	return "messages"
}

func (t *Message) IsReply() bool {
	return t.ThreadID != nil && *t.ThreadID != ""
}

func (t *Message) Mentioned(userID string) bool {
	for _, id := range t.Mentions {
		if id == userID {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the message.
func (t Message) Clone() Message {
	if t.ThreadID != nil {
		id := *t.ThreadID
		t.ThreadID = &id
	}
	t.Reactions = t.Reactions.Clone()
	t.Mentions = t.Mentions.Clone()
	return t
}
