package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/batterybuildsog1/Project-manager/internal/database"
	"github.com/batterybuildsog1/Project-manager/internal/models"
	"github.com/batterybuildsog1/Project-manager/internal/services"
)

// Config represents the runtime configuration for the notification engine.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// NotifyConfig holds the routing timetable and suppression windows.
type NotifyConfig struct {
	Cooldowns        CooldownConfig `mapstructure:"cooldowns"`
	BatchTimes       []string       `mapstructure:"batch_times"`
	WeeklyDay        string         `mapstructure:"weekly_day"`
	WeeklyTime       string         `mapstructure:"weekly_time"`
	WIPLimit         int            `mapstructure:"wip_limit"`
	DeadlineSchedule string         `mapstructure:"deadline_schedule"`
}

// CooldownConfig sets the per-tier dedup windows.
type CooldownConfig struct {
	Immediate time.Duration `mapstructure:"immediate"`
	Batched   time.Duration `mapstructure:"batched"`
	Weekly    time.Duration `mapstructure:"weekly"`
	Silent    time.Duration `mapstructure:"silent"`
}

// ChannelsConfig configures the delivery adapters.
type ChannelsConfig struct {
	Telegram TelegramChannelConfig `mapstructure:"telegram"`
	SMS      SMSChannelConfig      `mapstructure:"sms"`
}

// TelegramChannelConfig holds Telegram bot credentials.
type TelegramChannelConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  int64  `mapstructure:"chat_id"`
	Silent  bool   `mapstructure:"silent"`
}

// SMSChannelConfig holds SMS gateway settings.
type SMSChannelConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	GatewayURL string        `mapstructure:"gateway_url"`
	From       string        `mapstructure:"from"`
	To         string        `mapstructure:"to"`
	MaxLength  int           `mapstructure:"max_length"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// AuditConfig locates the append-only intake trail.
type AuditConfig struct {
	Path string `mapstructure:"path"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("PM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// DatabaseOptions converts the loaded settings into the database package's
// connection options.
func (c *Config) DatabaseOptions() database.Config {
	return database.Config{
		Driver: c.Database.Driver,
		Path:   c.Database.Path,
		DSN:    c.Database.DSN,
		Postgres: database.PostgresConfig{
			Host:     c.Database.Postgres.Host,
			Port:     c.Database.Postgres.Port,
			Database: c.Database.Postgres.Database,
			Username: c.Database.Postgres.Username,
			Password: c.Database.Postgres.Password,
			SSLMode:  c.Database.Postgres.SSLMode,
		},
	}
}

// Cooldowns converts the configured windows into the router's table. Zero or
// negative values fall back to the defaults.
func (c *Config) Cooldowns() services.CooldownTable {
	table := services.DefaultCooldowns()
	if c.Notify.Cooldowns.Immediate > 0 {
		table[models.PriorityImmediate] = c.Notify.Cooldowns.Immediate
	}
	if c.Notify.Cooldowns.Batched > 0 {
		table[models.PriorityBatched] = c.Notify.Cooldowns.Batched
	}
	if c.Notify.Cooldowns.Weekly > 0 {
		table[models.PriorityWeekly] = c.Notify.Cooldowns.Weekly
	}
	if c.Notify.Cooldowns.Silent > 0 {
		table[models.PrioritySilent] = c.Notify.Cooldowns.Silent
	}
	return table
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/project-manager.sqlite")

	v.SetDefault("notify.cooldowns.immediate", "4h")
	v.SetDefault("notify.cooldowns.batched", "8h")
	v.SetDefault("notify.cooldowns.weekly", "168h")
	v.SetDefault("notify.cooldowns.silent", "1h")
	v.SetDefault("notify.batch_times", "09:00,13:00,17:00")
	v.SetDefault("notify.weekly_day", "sunday")
	v.SetDefault("notify.weekly_time", "20:00")
	v.SetDefault("notify.wip_limit", 3)
	v.SetDefault("notify.deadline_schedule", "@hourly")

	v.SetDefault("channels.telegram.enabled", false)
	v.SetDefault("channels.telegram.silent", false)
	v.SetDefault("channels.sms.enabled", false)
	v.SetDefault("channels.sms.max_length", 160)
	v.SetDefault("channels.sms.timeout", "30s")

	v.SetDefault("audit.path", "./data/notifications.log")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
