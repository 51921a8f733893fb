package main

import "github.com/urfave/cli/v2"

func (s *srv) loadApp() {
	s.app = cli.NewApp()
	s.app.Action = cli.ShowAppHelp
	s.app.Name = "chatsync"
	s.app.Usage = "Realtime channel synchronization"
	s.app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path of the TOML configuration file",
			EnvVars: []string{"CHATSYNC_CONFIG"},
		},
	}
	s.app.Before = s.before
	s.app.After = s.after
	s.app.Commands = []*cli.Command{
		{
			Action:      s.startDevStore,
			Name:        "devstore",
			Usage:       "Start the reference store",
			Category:    "Store",
			Description: `Serves the store RPC methods, the websocket change feed and metrics.`,
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "migrate", Value: true, Usage: "apply database migrations on start"},
			},
		},
		{
			Action:      s.startSync,
			Name:        "sync",
			Usage:       "Follow a channel as a user",
			Category:    "Client",
			Description: `Connects to the store as a user, opens a channel and logs its reconciled state.`,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "token", Usage: "access token, issued from --user when empty"},
				&cli.StringFlag{Name: "user", Usage: "user id"},
				&cli.StringFlag{Name: "name", Usage: "display name"},
				&cli.StringFlag{Name: "channel", Usage: "channel to open, the most recent one when empty"},
				&cli.StringFlag{Name: "send", Usage: "message to send once the channel is open"},
				&cli.StringFlag{Name: "presence", Value: "feed", Usage: "typing presence transport: feed or redis"},
				&cli.StringFlag{Name: "notify", Value: "log", Usage: "notification sink: log or kafka"},
			},
		},
		{
			Action:      s.issueToken,
			Name:        "token",
			Usage:       "Issue a development access token",
			Category:    "Client",
			Description: `Prints a token signed with the configured secret.`,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "user", Required: true, Usage: "user id"},
				&cli.StringFlag{Name: "name", Usage: "display name"},
			},
		},
	}
}
