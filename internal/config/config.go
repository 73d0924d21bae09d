// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Accounts   AccountsConfig   `mapstructure:"accounts"`
	Tournament TournamentConfig `mapstructure:"tournament"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// GatewayConfig holds the game session gateway endpoint configuration.
type GatewayConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AccountsConfig holds account provisioning configuration.
type AccountsConfig struct {
	InitialBalance int64 `mapstructure:"initial_balance"`
}

// TournamentConfig holds defaults applied to tournament creation when the
// request leaves the corresponding field unset.
type TournamentConfig struct {
	StartingChips     int64   `mapstructure:"starting_chips"`
	PlayersPerTable   int     `mapstructure:"players_per_table"`
	SmallBlind        int64   `mapstructure:"small_blind"`
	BigBlind          int64   `mapstructure:"big_blind"`
	BlindIntervalSecs int     `mapstructure:"blind_interval_secs"`
	PayoutCurve       []int32 `mapstructure:"payout_curve"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. DATABASE_HOST, SERVER_ADDR, GATEWAY_BASE_URL.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "arena")
	v.SetDefault("database.name", "arena")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("gateway.base_url", "http://localhost:9090")
	v.SetDefault("gateway.timeout", "10s")

	v.SetDefault("accounts.initial_balance", 1000)

	v.SetDefault("tournament.starting_chips", 1500)
	v.SetDefault("tournament.players_per_table", 9)
	v.SetDefault("tournament.small_blind", 10)
	v.SetDefault("tournament.big_blind", 20)
	v.SetDefault("tournament.blind_interval_secs", 300)
	v.SetDefault("tournament.payout_curve", []int32{50, 30, 20})
}
