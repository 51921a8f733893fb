package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type Configs struct {
	Env string `toml:"env"`

	Log      LogConfigs      `toml:"log"`
	Store    StoreConfigs    `toml:"store"`
	Kafka    KafkaConfigs    `toml:"kafka"`
	Redis    RedisConfigs    `toml:"redis"`
	Sync     SyncConfigs     `toml:"sync"`
	DevStore DevStoreConfigs `toml:"devstore"`
	Auth     AuthConfigs     `toml:"auth"`
	Metrics  ServerConfigs   `toml:"metrics"`
}

type LogConfigs struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

type StoreConfigs struct {
	RPCEndpoint  string `toml:"rpc_endpoint"`
	RPCName      string `toml:"rpc_name"`
	FeedEndpoint string `toml:"feed_endpoint"`

	// FeedKind selects the change-feed transport: "websocket" or "kafka".
	FeedKind string `toml:"feed_kind"`
}

type KafkaConfigs struct {
	Brokers []string `toml:"brokers"`
	GroupID string   `toml:"group_id"`
	Topic   string   `toml:"topic"`
}

type RedisConfigs struct {
	Addr string `toml:"addr"`
}

type SyncConfigs struct {
	PageSize          int           `toml:"page_size"`
	UnreadThrottle    Duration      `toml:"unread_throttle"`
	TypingThrottle    Duration      `toml:"typing_throttle"`
	TypingTimeout     Duration      `toml:"typing_timeout"`
	PresenceTimeout   Duration      `toml:"presence_timeout"`
	ReconnectInterval Duration      `toml:"reconnect_interval"`
	QueueSize         int           `toml:"queue_size"`
	CallTimeout       time.Duration `toml:"-"`
}

type DevStoreConfigs struct {
	Driver        string        `toml:"driver"`
	DSN           string        `toml:"dsn"`
	SnowflakeNode int64         `toml:"snowflake_node"`
	RPC           ServerConfigs `toml:"rpc"`
	Feed          ServerConfigs `toml:"feed"`
	KafkaFanout   bool          `toml:"kafka_fanout"`
}

type AuthConfigs struct {
	TokenSecret string   `toml:"token_secret"`
	Expiration  Duration `toml:"expiration"`
}

type ServerConfigs struct {
	Host string `toml:"host"`
	Port string `toml:"port"`
}

func (c ServerConfigs) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Duration is a time.Duration which can be decoded from TOML strings such as
// "150ms" or "3s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Default() Configs {
	return Configs{
		Env: "local",
		Log: LogConfigs{Level: "INFO"},
		Store: StoreConfigs{
			RPCEndpoint:  "http://localhost:8081",
			RPCName:      "store",
			FeedEndpoint: "ws://localhost:8082/feed",
			FeedKind:     "websocket",
		},
		Kafka: KafkaConfigs{
			Brokers: []string{"localhost:9092"},
			GroupID: "chatsync",
			Topic:   "chatsync.changes",
		},
		Redis: RedisConfigs{Addr: "localhost:6379"},
		Sync: SyncConfigs{
			PageSize:          50,
			UnreadThrottle:    Duration{150 * time.Millisecond},
			TypingThrottle:    Duration{time.Second},
			TypingTimeout:     Duration{3 * time.Second},
			PresenceTimeout:   Duration{3 * time.Second},
			ReconnectInterval: Duration{5 * time.Second},
			QueueSize:         128,
			CallTimeout:       10 * time.Second,
		},
		DevStore: DevStoreConfigs{
			Driver:        "sqlite",
			DSN:           "file:chatsync.db?_busy_timeout=5000",
			SnowflakeNode: 1,
			RPC:           ServerConfigs{Port: "8081"},
			Feed:          ServerConfigs{Port: "8082"},
		},
		Auth: AuthConfigs{
			TokenSecret: "chatsync-dev-secret",
			Expiration:  Duration{24 * time.Hour},
		},
	}
}

// Load reads the TOML file at path on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (Configs, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Configs{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	return cfg, nil
}
