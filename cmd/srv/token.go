package main

import (
	"fmt"

	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/authenticator"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) issueToken(c *cli.Context) error {
	token, err := s.generateToken(c.String("user"), c.String("name"))
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

func (s *srv) generateToken(userID, name string) (string, error) {
	if name == "" {
		name = userID
	}

	engine := authenticator.NewTokenEngine[model.Identity](xcontext.Configs(s.ctx).Auth)
	return engine.Generate(userID, model.Identity{UserID: userID, DisplayName: name})
}
