package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverLevelDB  = "leveldb"
	StoreDriverMemory   = "memory"
)

var ErrUnknownStoreDriver = errors.New("unknown_store_driver")
var ErrPostgresDSNRequired = errors.New("postgres_dsn_required")

type ServerConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	LevelDBPath string `env:"LEVELDB_PATH" envDefault:"./data/chipdb"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	CommitMaxRetries int  `env:"COMMIT_MAX_RETRIES" envDefault:"5"`
	FeedBufferSize   int  `env:"FEED_BUFFER_SIZE" envDefault:"256"`
	MCPEnabled       bool `env:"MCP_ENABLED" envDefault:"true"`

	StagePushEnabled     bool   `env:"STAGE_PUSH_ENABLED" envDefault:"false"`
	StagePushConfigPath  string `env:"STAGE_PUSH_CONFIG_PATH"`
	StagePushConfigJSON  string `env:"STAGE_PUSH_CONFIG_JSON"`
	StagePushWorkers     int    `env:"STAGE_PUSH_WORKERS" envDefault:"2"`
	StagePushRetryMax    int    `env:"STAGE_PUSH_RETRY_MAX" envDefault:"3"`
	StagePushRetryBaseMS int    `env:"STAGE_PUSH_RETRY_BASE_MS" envDefault:"500"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.PostgresDSN == "" {
			return cfg, ErrPostgresDSNRequired
		}
	case StoreDriverLevelDB, StoreDriverMemory:
	default:
		return cfg, ErrUnknownStoreDriver
	}
	return cfg, nil
}
