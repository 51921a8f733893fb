package authenticator_test

import (
	"testing"
	"time"

	"github.com/questx-lab/chatsync/config"
	"github.com/questx-lab/chatsync/pkg/authenticator"
	"github.com/stretchr/testify/require"
)

type identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

func TestJWT(t *testing.T) {
	engine := authenticator.NewTokenEngine[identity](config.AuthConfigs{
		TokenSecret: "secret",
		Expiration:  config.Duration{Duration: time.Minute},
	})

	token, err := engine.Generate("alice", identity{UserID: "alice", Name: "Alice"})
	require.NoError(t, err)

	obj, err := engine.Verify(token)
	require.NoError(t, err)
	require.Equal(t, identity{UserID: "alice", Name: "Alice"}, obj)
}

func TestJWTExpiration(t *testing.T) {
	engine := authenticator.NewTokenEngine[identity](config.AuthConfigs{
		TokenSecret: "secret",
		Expiration:  config.Duration{Duration: time.Nanosecond},
	})

	token, err := engine.Generate("alice", identity{UserID: "alice"})
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, err = engine.Verify(token)
	require.Error(t, err)
}

func TestJWTWrongSecret(t *testing.T) {
	cfg := config.AuthConfigs{TokenSecret: "secret", Expiration: config.Duration{Duration: time.Minute}}
	token, err := authenticator.NewTokenEngine[identity](cfg).Generate("alice", identity{UserID: "alice"})
	require.NoError(t, err)

	cfg.TokenSecret = "other"
	_, err = authenticator.NewTokenEngine[identity](cfg).Verify(token)
	require.Error(t, err)
}
