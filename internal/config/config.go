package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"EasyPriceMonitor/internal/domain"
)

const (
	// DefaultPath is used when neither --config nor PathEnv is set.
	DefaultPath = "config.yaml"
	// PathEnv overrides the config file location.
	PathEnv = "PRICE_MONITOR_CONFIG"

	smtpUserEnv       = "SMTP_USER"
	smtpPasswordEnv   = "SMTP_PASSWORD"
	mysqlPasswordEnv  = "MYSQL_PASSWORD"
	postgresDSNEnv    = "POSTGRES_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Watchlist string          `yaml:"watchlist"`
	Handlers  []string        `yaml:"handlers"`
	CSV       CSVConfig       `yaml:"csv"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Delay     DelayConfig     `yaml:"delay"`
	Alerts    AlertConfig     `yaml:"alerts"`
	Email     EmailConfig     `yaml:"email"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CSVConfig points the CSV handler at its history file.
type CSVConfig struct {
	Path string `yaml:"path"`
}

// MySQLConfig holds the connection parameters of the MySQL handler.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Port     int    `yaml:"port"`
}

// PostgresConfig describes Postgres connection details.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// SQLiteConfig points the SQLite handler at its database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// DelayConfig bounds the random pause between two shop fetches, in seconds.
type DelayConfig struct {
	Enabled    bool `yaml:"enabled"`
	MinSeconds int  `yaml:"minIntervalSeconds"`
	MaxSeconds int  `yaml:"maxInterval"`
}

// AlertConfig drives the drop evaluator. An empty ProductIDs list means every product.
type AlertConfig struct {
	Enabled              bool    `yaml:"enabled"`
	PercentDropThreshold float64 `yaml:"percentDropThreshold"`
	ProductIDs           []int   `yaml:"productIds"`
}

// EmailConfig wires the SMTP notifier.
type EmailConfig struct {
	SMTPServer string     `yaml:"smtpServer"`
	SMTPPort   int        `yaml:"smtpPort"`
	User       string     `yaml:"user"`
	Password   string     `yaml:"password"`
	From       string     `yaml:"from"`
	To         Recipients `yaml:"to"`
}

// Enabled reports whether an SMTP server is configured.
func (e EmailConfig) Enabled() bool {
	return strings.TrimSpace(e.SMTPServer) != ""
}

// Recipients accepts either a single address or a list of addresses.
type Recipients []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Recipients) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*r = nil
		if single = strings.TrimSpace(single); single != "" {
			*r = Recipients{single}
		}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		out := make(Recipients, 0, len(list))
		for _, addr := range list {
			if addr = strings.TrimSpace(addr); addr != "" {
				out = append(out, addr)
			}
		}
		*r = out
		return nil
	default:
		return fmt.Errorf("line %d: recipients must be a string or a list of strings", value.Line)
	}
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both the token and the chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SchedulerConfig defines how often the monitor runs in interval mode.
// A zero interval means a single run.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// HTTPConfig tunes the page fetcher.
type HTTPConfig struct {
	UserAgent string        `yaml:"userAgent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Path resolves the config location. explicit is false only when the
// built-in default is used, in which case a missing file is tolerated.
func Path(flagValue string) (path string, explicit bool) {
	if flagValue = strings.TrimSpace(flagValue); flagValue != "" {
		return flagValue, true
	}
	if v := strings.TrimSpace(os.Getenv(PathEnv)); v != "" {
		return v, true
	}
	return DefaultPath, false
}

// Load reads YAML configuration over the defaults and applies environment
// overrides. A missing file is only an error when the path was given explicitly.
func Load(path string, explicit bool) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, &domain.ConfigError{Field: path, Reason: err.Error()}
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, &domain.ConfigError{Field: path, Reason: err.Error()}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(smtpUserEnv); v != "" {
		c.Email.User = v
	}
	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv(mysqlPasswordEnv); v != "" {
		c.MySQL.Password = v
	}
	if v := os.Getenv(postgresDSNEnv); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) normalize() {
	c.Handlers = NormalizeHandlers(c.Handlers)
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.MySQL.Port == 0 {
		c.MySQL.Port = 3306
	}
}

// NormalizeHandlers lower-cases names, splits comma separated entries and
// drops duplicates while keeping the first-seen order.
func NormalizeHandlers(names []string) []string {
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	for _, item := range names {
		for _, name := range strings.Split(item, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// Validate reports the first invalid field as a *domain.ConfigError.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Watchlist) == "" {
		return &domain.ConfigError{Field: "watchlist", Reason: "path is required"}
	}
	if c.Delay.Enabled {
		if c.Delay.MinSeconds < 0 {
			return &domain.ConfigError{Field: "delay.minIntervalSeconds", Reason: "must not be negative"}
		}
		if c.Delay.MaxSeconds < c.Delay.MinSeconds {
			return &domain.ConfigError{Field: "delay.maxInterval", Reason: "must not be lower than minIntervalSeconds"}
		}
	}
	if c.Alerts.Enabled && c.Alerts.PercentDropThreshold <= 0 {
		return &domain.ConfigError{Field: "alerts.percentDropThreshold", Reason: "must be a positive percentage"}
	}
	if c.Email.Enabled() {
		if c.Email.SMTPPort <= 0 || c.Email.SMTPPort > 65535 {
			return &domain.ConfigError{Field: "email.smtpPort", Reason: "must be a valid TCP port"}
		}
		if strings.TrimSpace(c.Email.From) == "" {
			return &domain.ConfigError{Field: "email.from", Reason: "sender address is required"}
		}
		if len(c.Email.To) == 0 {
			return &domain.ConfigError{Field: "email.to", Reason: "at least one recipient is required"}
		}
	}
	if c.Telegram.ChatID != "" {
		if _, err := strconv.ParseInt(c.Telegram.ChatID, 10, 64); err != nil {
			return &domain.ConfigError{Field: "telegram.chatId", Reason: "must be a numeric chat id"}
		}
	}
	if c.Scheduler.Interval < 0 {
		return &domain.ConfigError{Field: "scheduler.interval", Reason: "must not be negative"}
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Watchlist: "products.json",
		Handlers:  []string{"csv"},
		CSV:       CSVConfig{Path: "price_history.csv"},
		MySQL: MySQLConfig{
			Host:     "localhost",
			Database: "easy_price_monitor",
			User:     "easy-price-monitor",
			Port:     3306,
		},
		SQLite: SQLiteConfig{Path: "price_history.db"},
		Delay:  DelayConfig{Enabled: true, MinSeconds: 5, MaxSeconds: 20},
		Alerts: AlertConfig{Enabled: true, PercentDropThreshold: 3.5},
		Email:  EmailConfig{SMTPPort: 587},
		HTTP:   HTTPConfig{Timeout: 20 * time.Second},
	}
}
