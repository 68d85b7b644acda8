package config

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Google    GoogleConfig    `mapstructure:"google"`
	IMAP      IMAPConfig      `mapstructure:"imap"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Pushover  PushoverConfig  `mapstructure:"pushover"`
	Triage    TriageConfig    `mapstructure:"triage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GoogleConfig holds the Gmail OAuth2 client configuration shared by all
// monitored accounts. Per-account tokens live on the account rows.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

// IMAPConfig holds the optional IMAP fetcher configuration
type IMAPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// AnthropicConfig holds the importance classifier oracle configuration
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// PushoverConfig holds the push notification transport configuration
type PushoverConfig struct {
	UserKey  string `mapstructure:"user_key"`
	APIToken string `mapstructure:"api_token"`
}

// TriageConfig holds the routing thresholds and per-run limits
type TriageConfig struct {
	ImportanceThreshold float64 `mapstructure:"importance_threshold"`
	DigestEnabled       bool    `mapstructure:"digest_enabled"`
	DigestThresholdLow  float64 `mapstructure:"digest_threshold_low"`
	DigestThresholdHigh float64 `mapstructure:"digest_threshold_high"`
	MaxEmailsPerCheck   int     `mapstructure:"max_emails_per_check"`
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
	DigestHour      int `mapstructure:"digest_hour"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("imap.enabled", false)
	viper.SetDefault("imap.host", "imap.gmail.com")
	viper.SetDefault("imap.port", 993)

	viper.SetDefault("anthropic.model", "claude-3-haiku-20240307")
	viper.SetDefault("anthropic.max_tokens", 300)

	viper.SetDefault("triage.importance_threshold", 0.7)
	viper.SetDefault("triage.digest_enabled", true)
	viper.SetDefault("triage.digest_threshold_low", 0.5)
	viper.SetDefault("triage.digest_threshold_high", 0.69)
	viper.SetDefault("triage.max_emails_per_check", 50)

	viper.SetDefault("scheduler.interval_minutes", 15)
	viper.SetDefault("scheduler.digest_hour", 8)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	viper.BindEnv("google.client_id", "GOOGLE_CLIENT_ID")
	viper.BindEnv("google.client_secret", "GOOGLE_CLIENT_SECRET")
	viper.BindEnv("google.redirect_uri", "GOOGLE_REDIRECT_URI")

	viper.BindEnv("imap.enabled", "IMAP_ENABLED")
	viper.BindEnv("imap.host", "IMAP_HOST")
	viper.BindEnv("imap.port", "IMAP_PORT")
	viper.BindEnv("imap.user", "IMAP_USER")
	viper.BindEnv("imap.password", "IMAP_PASSWORD")

	viper.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	viper.BindEnv("anthropic.model", "ANTHROPIC_MODEL")
	viper.BindEnv("anthropic.max_tokens", "ANTHROPIC_MAX_TOKENS")

	viper.BindEnv("pushover.user_key", "PUSHOVER_USER_KEY")
	viper.BindEnv("pushover.api_token", "PUSHOVER_API_TOKEN")

	viper.BindEnv("triage.importance_threshold", "IMPORTANCE_THRESHOLD")
	viper.BindEnv("triage.digest_enabled", "DIGEST_ENABLED")
	viper.BindEnv("triage.digest_threshold_low", "DIGEST_THRESHOLD_LOW")
	viper.BindEnv("triage.digest_threshold_high", "DIGEST_THRESHOLD_HIGH")
	viper.BindEnv("triage.max_emails_per_check", "MAX_EMAILS_PER_CHECK")

	viper.BindEnv("scheduler.interval_minutes", "CHECK_INTERVAL_MINUTES")
	viper.BindEnv("scheduler.digest_hour", "DIGEST_HOUR")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if !c.IMAP.Enabled {
		if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
			return fmt.Errorf("Google OAuth2 credentials are required when not using IMAP")
		}
	} else {
		if c.IMAP.User == "" || c.IMAP.Password == "" {
			return fmt.Errorf("IMAP credentials are required when using IMAP")
		}
	}

	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("Anthropic API key is required")
	}

	if c.Pushover.UserKey == "" || c.Pushover.APIToken == "" {
		return fmt.Errorf("Pushover user key and API token are required")
	}

	if c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}

	if c.Scheduler.DigestHour < 0 || c.Scheduler.DigestHour > 23 {
		return fmt.Errorf("digest hour must be between 0 and 23")
	}

	// Notify takes precedence over the digest band, so a band reaching past
	// the notify threshold is effectively clamped rather than invalid.
	if c.Triage.DigestEnabled && c.Triage.DigestThresholdHigh >= c.Triage.ImportanceThreshold {
		logrus.Warnf("digest_threshold_high (%.2f) reaches notify threshold (%.2f); digest band is clamped below it",
			c.Triage.DigestThresholdHigh, c.Triage.ImportanceThreshold)
	}

	return nil
}
