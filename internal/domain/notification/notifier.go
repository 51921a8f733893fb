package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/pubsub"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

const maxBodyLength = 100

type Notification struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Mention   bool   `json:"mention"`
}

func newNotification(msg entity.Message, channel entity.Channel, mention bool) Notification {
	title := msg.SenderName
	if channel.Kind != entity.ChannelDirect && channel.Name != "" {
		title = fmt.Sprintf("%s in #%s", msg.SenderName, channel.Name)
	}

	body := []rune(msg.Body)
	if len(body) > maxBodyLength {
		body = append(body[:maxBodyLength-1], '…')
	}

	return Notification{
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		Title:     title,
		Body:      string(body),
		Mention:   mention,
	}
}

// Notifier shows a notification to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type logNotifier struct{}

// NewLogNotifier writes notifications to the logger of the context.
func NewLogNotifier() *logNotifier {
	return &logNotifier{}
}

func (logNotifier) Notify(ctx context.Context, n Notification) error {
	xcontext.Logger(ctx).Infof("[notification] %s: %s", n.Title, n.Body)
	return nil
}

type publisherNotifier struct {
	publisher pubsub.Publisher
	topic     string
	userID    string
}

// NewPublisherNotifier forwards the notifications of userID to a topic, keyed
// by user so that they keep their order.
func NewPublisherNotifier(publisher pubsub.Publisher, topic, userID string) *publisherNotifier {
	return &publisherNotifier{publisher: publisher, topic: topic, userID: userID}
}

func (p *publisherNotifier) Notify(ctx context.Context, n Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}

	return p.publisher.Publish(ctx, p.topic, &pubsub.Pack{Key: []byte(p.userID), Msg: b})
}
