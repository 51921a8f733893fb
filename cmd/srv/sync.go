package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/questx-lab/chatsync/internal/client"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/domain/notification"
	"github.com/questx-lab/chatsync/internal/domain/presence"
	"github.com/questx-lab/chatsync/internal/domain/session"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/authenticator"
	"github.com/questx-lab/chatsync/pkg/kafka"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"github.com/questx-lab/chatsync/pkg/xredis"
	"github.com/urfave/cli/v2"
)

func (s *srv) startSync(c *cli.Context) error {
	cfg := xcontext.Configs(s.ctx)

	token := c.String("token")
	if token == "" {
		if c.String("user") == "" {
			return fmt.Errorf("either --token or --user is required")
		}

		var err error
		if token, err = s.generateToken(c.String("user"), c.String("name")); err != nil {
			return err
		}
	}

	self, err := authenticator.NewTokenEngine[model.Identity](cfg.Auth).Verify(token)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	caller, err := client.DialStoreCaller(s.ctx, cfg.Store.RPCEndpoint, token)
	if err != nil {
		return err
	}
	defer caller.Close()

	var dialer eventbus.Dialer
	switch cfg.Store.FeedKind {
	case "kafka":
		dialer = eventbus.DialKafka(cfg.Kafka)
	default:
		dialer = eventbus.DialWebsocket(cfg.Store.FeedEndpoint, token)
	}
	bus := eventbus.New(s.ctx, dialer)

	var broadcaster presence.Broadcaster
	if c.String("presence") == "redis" {
		redisClient, err := xredis.NewClient(s.ctx)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		broadcaster = presence.NewRedisBroadcaster(redisClient)
	}

	var notifier notification.Notifier
	if c.String("notify") == "kafka" {
		publisher, err := kafka.NewPublisher(self.UserID, cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		defer publisher.Stop(s.ctx)

		notifier = notification.NewPublisherNotifier(publisher, cfg.Kafka.Topic+".notifications", self.UserID)
	}

	sess := session.New(s.ctx, self, caller, bus, broadcaster, notifier)
	if err := sess.Start(s.ctx); err != nil {
		return err
	}
	defer sess.Close()
	s.startMetrics()

	channelID := c.String("channel")
	if channelID == "" {
		channels := sess.Directory().Channels()
		if len(channels) == 0 {
			return fmt.Errorf("%s is not a member of any channel", self.UserID)
		}
		channelID = channels[0].ID
	}

	view, err := sess.OpenChannel(s.ctx, channelID)
	if err != nil {
		return err
	}
	defer view.Close()

	if body := c.String("send"); body != "" {
		if _, err := view.Send(s.ctx, body, nil); err != nil {
			xcontext.Logger(s.ctx).Warnf("Cannot send message: %v", err)
		}
	}

	s.follow(s.ctx, sess, view)
	return nil
}

// follow logs the reconciled state of the view on every change until the
// process is asked to stop.
func (s *srv) follow(ctx context.Context, sess *session.Session, view *session.View) {
	termSignal := make(chan os.Signal, 1)
	signal.Notify(termSignal, syscall.SIGINT, syscall.SIGTERM)

	logMessages(ctx, view)
	for {
		select {
		case sig := <-termSignal:
			xcontext.Logger(ctx).Infof("Got a signal of %s", sig.String())
			return

		case <-view.Messages().Updates():
			logMessages(ctx, view)

		case <-view.Presence().Updates():
			if text := view.Presence().TypingText(); text != "" {
				xcontext.Logger(ctx).Infof("%s", text)
			}

		case <-view.Receipts().Updates():
			messages := view.Messages().Snapshot().Messages
			if len(messages) > 0 {
				last := messages[len(messages)-1]
				if text, ok := view.Receipts().ReadStatusText(last.ID, last.SenderID); ok {
					xcontext.Logger(ctx).Infof("%s", text)
				}
			}

		case <-sess.Unread().Updates():
			summary := sess.Unread().Summary()
			xcontext.Logger(ctx).Infof("Unread: %d in %d channels", summary.Total, len(summary.Channels))

		case <-sess.Directory().Updates():
			names := []string{}
			for _, c := range sess.Directory().Channels() {
				names = append(names, c.Name)
			}
			xcontext.Logger(ctx).Infof("Channels: %s", strings.Join(names, ", "))
		}
	}
}

func logMessages(ctx context.Context, view *session.View) {
	snapshot := view.Messages().Snapshot()
	channel := view.Channel()

	xcontext.Logger(ctx).Infof("#%s: %d messages loaded, more=%t", channel.Name, len(snapshot.Messages), snapshot.HasMore)
	for _, msg := range snapshot.Messages {
		line := fmt.Sprintf("[%s] %s: %s", msg.CreatedAt.Format("15:04:05"), msg.SenderName, msg.Body)
		if msg.ReplyCount > 0 {
			line += fmt.Sprintf(" (%d replies)", msg.ReplyCount)
		}
		xcontext.Logger(ctx).Infof("%s", line)
	}
}
