package main

import (
	"net/http"

	"github.com/questx-lab/chatsync/internal/devstore"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/migration"
	"github.com/questx-lab/chatsync/pkg/authenticator"
	"github.com/questx-lab/chatsync/pkg/kafka"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startDevStore(c *cli.Context) error {
	if err := s.loadDatabase(); err != nil {
		return err
	}

	if c.Bool("migrate") {
		if err := migration.Migrate(s.ctx); err != nil {
			return err
		}
	}

	cfg := xcontext.Configs(s.ctx)

	var fanout *eventbus.KafkaFanout
	if cfg.DevStore.KafkaFanout {
		publisher, err := kafka.NewPublisher("devstore", cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		defer publisher.Stop(s.ctx)

		fanout = eventbus.NewKafkaFanout(publisher, cfg.Kafka.Topic)
		xcontext.Logger(s.ctx).Infof("Fanning out changes to kafka topic %s", cfg.Kafka.Topic)
	}

	store, err := devstore.New(s.ctx, eventbus.NewMemoryHub(), fanout)
	if err != nil {
		return err
	}

	engine := authenticator.NewTokenEngine[model.Identity](cfg.Auth)
	server, err := devstore.NewServer(s.ctx, store, engine)
	if err != nil {
		return err
	}
	defer server.Stop()

	feedMux := http.NewServeMux()
	feedMux.Handle("/feed", server.FeedHandler())

	go s.serve("rpc", cfg.DevStore.RPC.Address(), server.RPCHandler())
	go s.serve("feed", cfg.DevStore.Feed.Address(), feedMux)
	s.startMetrics()

	s.waitSignal()
	return nil
}
