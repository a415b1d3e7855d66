// Config loading for the epiclink CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/epiclink/internal/relation"
	"github.com/mesh-intelligence/epiclink/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyHost        = "host"
	cfgKeyAPIBase     = "api_base"
	cfgKeyAPIKey      = "api_key"
	cfgKeyStore       = "store"
	cfgKeyRedisURL    = "redis_url"
	cfgKeyDataDir     = "data_dir"
	cfgKeyGracePeriod = "grace_period"

	// Store backends.
	storeMemory = "memory"
	storeRedis  = "redis"
	storeSQLite = "sqlite"

	defaultStore    = storeSQLite
	defaultRedisURL = "redis://localhost:6379/0"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# epiclink CLI configuration

# Card URL host and REST API base.
# host: trello.com
# api_base: https://api.trello.com/1

# API key (the token is stored per member via "epiclink authorize").
# api_key:

# Scoped store backend: sqlite, redis, or memory.
store: sqlite

# Redis connection URL (store: redis).
# redis_url: redis://localhost:6379/0

# Data directory for the sqlite store (optional; --data-dir overrides).
# data_dir:

# Grace period the advisory updating flag stays raised after a mutation.
# grace_period: 10s
`

// config is the resolved CLI configuration.
type config struct {
	Host        string
	APIBase     string
	APIKey      string
	Store       string
	RedisURL    string
	DataDir     string
	GracePeriod time.Duration
}

// loadConfig reads config.yaml from the config directory using Viper,
// creating the directory and a default file on first run. A missing
// config.yaml is not an error.
func loadConfig(configDir string) (*config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyHost, types.DefaultHost)
	v.SetDefault(cfgKeyStore, defaultStore)
	v.SetDefault(cfgKeyRedisURL, defaultRedisURL)
	v.SetDefault(cfgKeyGracePeriod, relation.DefaultGracePeriod)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("EPICLINK")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &config{
		Host:        v.GetString(cfgKeyHost),
		APIBase:     v.GetString(cfgKeyAPIBase),
		APIKey:      v.GetString(cfgKeyAPIKey),
		Store:       v.GetString(cfgKeyStore),
		RedisURL:    v.GetString(cfgKeyRedisURL),
		DataDir:     v.GetString(cfgKeyDataDir),
		GracePeriod: v.GetDuration(cfgKeyGracePeriod),
	}, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
