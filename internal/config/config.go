package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime settings of the ledger service.
type Config struct {
	DBHost     string `mapstructure:"db_host" yaml:"db_host"`
	DBPort     string `mapstructure:"db_port" yaml:"db_port"`
	DBUser     string `mapstructure:"db_user" yaml:"db_user"`
	DBPassword string `mapstructure:"db_password" yaml:"db_password"`
	DBName     string `mapstructure:"db_name" yaml:"db_name"`
	DBSSLMode  string `mapstructure:"db_sslmode" yaml:"db_sslmode"`

	ServerPort  string `mapstructure:"server_port" yaml:"server_port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	AutoMigrate bool   `mapstructure:"auto_migrate" yaml:"auto_migrate"`

	// Serializable transactions that lose a conflict are retried this many
	// times in total before the request fails as transient.
	TxMaxAttempts   int           `mapstructure:"tx_max_attempts" yaml:"tx_max_attempts"`
	TxRetryInterval time.Duration `mapstructure:"tx_retry_interval" yaml:"tx_retry_interval"`
}

// EnvPrefix prefixes every environment override, e.g. LEDGER_DB_HOST.
const EnvPrefix = "LEDGER"

// LogLevelOff disables logging entirely.
const LogLevelOff = "off"

func Default() *Config {
	return &Config{
		DBHost:          "localhost",
		DBPort:          "5432",
		DBUser:          "postgres",
		DBPassword:      "password",
		DBName:          "branch_ledger",
		DBSSLMode:       "disable",
		ServerPort:      "8080",
		LogLevel:        "info",
		AutoMigrate:     true,
		TxMaxAttempts:   5,
		TxRetryInterval: 10 * time.Millisecond,
	}
}

// Load reads configuration from defaults, then the optional YAML file at
// path, then LEDGER_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("db_host", def.DBHost)
	v.SetDefault("db_port", def.DBPort)
	v.SetDefault("db_user", def.DBUser)
	v.SetDefault("db_password", def.DBPassword)
	v.SetDefault("db_name", def.DBName)
	v.SetDefault("db_sslmode", def.DBSSLMode)
	v.SetDefault("server_port", def.ServerPort)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("auto_migrate", def.AutoMigrate)
	v.SetDefault("tx_max_attempts", def.TxMaxAttempts)
	v.SetDefault("tx_retry_interval", def.TxRetryInterval)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" || c.DBName == "" {
		return errors.New("config: db_host and db_name are required")
	}
	if c.TxMaxAttempts < 1 {
		return fmt.Errorf("config: tx_max_attempts must be at least 1, got %d", c.TxMaxAttempts)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// GetDBConnectionString returns the lib/pq connection string
func (c *Config) GetDBConnectionString() string {
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, sslMode)
}

func (c *Config) LoggingDisabled() bool {
	return strings.EqualFold(c.LogLevel, LogLevelOff)
}

func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case LogLevelOff:
		return slog.LevelError + 4, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
}
