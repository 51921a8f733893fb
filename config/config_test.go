package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		require.Equal(t, 50, cfg.Sync.PageSize)
		require.Equal(t, 150*time.Millisecond, cfg.Sync.UnreadThrottle.Duration)
		require.Equal(t, 3*time.Second, cfg.Sync.TypingTimeout.Duration)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "chatsync.toml")
		err := os.WriteFile(path, []byte(`
env = "test"

[sync]
page_size = 20
unread_throttle = "200ms"

[store]
feed_kind = "kafka"
`), 0o600)
		require.NoError(t, err)

		cfg, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, "test", cfg.Env)
		require.Equal(t, 20, cfg.Sync.PageSize)
		require.Equal(t, 200*time.Millisecond, cfg.Sync.UnreadThrottle.Duration)
		require.Equal(t, time.Second, cfg.Sync.TypingThrottle.Duration)
		require.Equal(t, "kafka", cfg.Store.FeedKind)
	})
}
