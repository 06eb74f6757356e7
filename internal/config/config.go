// Package config loads client configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full client configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Authority AuthorityConfig `mapstructure:"authority"`
	Combat    CombatConfig    `mapstructure:"combat"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Stub      StubConfig      `mapstructure:"stub"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthorityConfig selects and configures the turn transport.
type AuthorityConfig struct {
	Transport   string        `mapstructure:"transport"`
	BaseURL     string        `mapstructure:"base_url"`
	WSURL       string        `mapstructure:"ws_url"`
	GRPCAddress string        `mapstructure:"grpc_address"`
	Token       string        `mapstructure:"token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// CombatConfig holds encounter rules and the starter catalog.
type CombatConfig struct {
	HandSize     int    `mapstructure:"hand_size"`
	MaxSelection int    `mapstructure:"max_selection"`
	FieldSlots   int    `mapstructure:"field_slots"`
	LogLimit     int    `mapstructure:"log_limit"`
	Catalog      string `mapstructure:"catalog"`
	CampaignID   string `mapstructure:"campaign_id"`
	RoomID       string `mapstructure:"room_id"`
	EnemyID      string `mapstructure:"enemy_id"`
}

// JournalConfig controls on-disk turn journals.
type JournalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

// ProgressConfig selects where saved games live.
type ProgressConfig struct {
	Backend     string `mapstructure:"backend"`
	DatabaseURL string `mapstructure:"database_url"`
	UserID      string `mapstructure:"user_id"`
}

// StubConfig configures the local stub authority.
type StubConfig struct {
	HTTPAddress string `mapstructure:"http_address"`
	GRPCAddress string `mapstructure:"grpc_address"`
	Catalog     string `mapstructure:"catalog"`
}

const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
	TransportGRPC      = "grpc"

	BackendHTTP     = "http"
	BackendPostgres = "postgres"
	BackendNone     = "none"

	maxFieldSlots = 4
)

// Load reads configuration from path, if it exists, then applies
// COMBAT_-prefixed environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COMBAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("authority.transport", TransportHTTP)
	v.SetDefault("authority.base_url", "http://localhost:8080")
	v.SetDefault("authority.ws_url", "ws://localhost:8080/ws")
	v.SetDefault("authority.grpc_address", "localhost:9090")
	v.SetDefault("authority.token", "")
	v.SetDefault("authority.timeout", 15*time.Second)
	v.SetDefault("authority.user_agent", "combat-client")

	v.SetDefault("combat.hand_size", 3)
	v.SetDefault("combat.max_selection", 2)
	v.SetDefault("combat.field_slots", maxFieldSlots)
	v.SetDefault("combat.log_limit", 100)
	v.SetDefault("combat.catalog", "")
	v.SetDefault("combat.campaign_id", "")
	v.SetDefault("combat.room_id", "")
	v.SetDefault("combat.enemy_id", "")

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.directory", "journals")

	v.SetDefault("progress.backend", BackendNone)
	v.SetDefault("progress.database_url", "")
	v.SetDefault("progress.user_id", "")

	v.SetDefault("stub.http_address", ":8080")
	v.SetDefault("stub.grpc_address", ":9090")
	v.SetDefault("stub.catalog", "")
}

// Validate rejects settings the client cannot run with. An oversized field
// is clamped rather than rejected.
func (c *Config) Validate() error {
	switch c.Authority.Transport {
	case TransportHTTP, TransportWebSocket, TransportGRPC:
	default:
		return fmt.Errorf("unknown authority transport %q", c.Authority.Transport)
	}
	switch c.Progress.Backend {
	case BackendHTTP, BackendNone:
	case BackendPostgres:
		if c.Progress.DatabaseURL == "" {
			return fmt.Errorf("progress backend postgres requires database_url")
		}
	default:
		return fmt.Errorf("unknown progress backend %q", c.Progress.Backend)
	}
	if c.Authority.Timeout <= 0 {
		return fmt.Errorf("authority timeout must be positive")
	}
	if c.Combat.HandSize <= 0 || c.Combat.MaxSelection <= 0 || c.Combat.LogLimit <= 0 || c.Combat.FieldSlots <= 0 {
		return fmt.Errorf("combat limits must be positive")
	}
	if c.Combat.FieldSlots > maxFieldSlots {
		c.Combat.FieldSlots = maxFieldSlots
	}
	if c.Journal.Enabled && c.Journal.Directory == "" {
		return fmt.Errorf("journal enabled without a directory")
	}
	return nil
}
