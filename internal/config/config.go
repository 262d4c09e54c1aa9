package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides
const EnvPrefix = "HR_NOTIFIER"

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance.
// A .env file in the working directory is loaded first when present.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := NewEmptyViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/hr-notifier/")
	v.AddConfigPath("$HOME/.hr-notifier")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicit file path
func NewFromFile(path string) (*Config, error) {
	v := NewEmptyViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults and environment overrides
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindLegacyEnv(v)

	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Lark defaults
	v.SetDefault("lark.base_url", "https://open.feishu.cn")
	v.SetDefault("lark.source", "sheet")
	v.SetDefault("lark.sheet_range", "43c01e!A1:AC1000")
	v.SetDefault("lark.page_size", 500)
	v.SetDefault("lark.timeout", "15s")
	v.SetDefault("lark.requests_per_second", 5.0)

	// Cache defaults
	v.SetDefault("cache.ttl", "120s")

	// Ledger defaults
	v.SetDefault("ledger.driver", "postgres")
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("ledger.sqlite_path", "data/sent_emails.db")
	v.SetDefault("ledger.file_path", "data/sent_emails.json")
	v.SetDefault("ledger.file_retention_days", 30)
	v.SetDefault("ledger.auto_migrate", true)
	v.SetDefault("ledger.connect_timeout", "5s")

	// SMTP defaults
	v.SetDefault("smtp.transport", "smtp")
	v.SetDefault("smtp.port", 465)
	v.SetDefault("smtp.security", "tls")
	v.SetDefault("smtp.timeout", "30s")
	v.SetDefault("smtp.insecure_skip_verify", false)
	v.SetDefault("smtp.helo", "localhost")

	// Reminder defaults
	v.SetDefault("reminder.window_min_days", 19)
	v.SetDefault("reminder.window_max_days", 25)
	v.SetDefault("reminder.timezone", "Local")
	v.SetDefault("reminder.sender_name", "HR Team")

	// Separation defaults
	v.SetDefault("separation.lookback_days", 7)

	// Routing defaults
	v.SetDefault("routing.department_cc", map[string][]string{
		"CC":  {"cc-leads@example.com"},
		"GCC": {"cc-leads@example.com"},
		"ACC": {"acc-leads@example.com"},
		"EA":  {"ea-leads@example.com", "ops-hr@example.com"},
		"CM":  {"cm-leads@example.com", "ops-hr@example.com"},
	})
	v.SetDefault("routing.constant_cc", "hr-team@example.com")

	// Server defaults
	v.SetDefault("server.listen_address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindLegacyEnv accepts the unprefixed variable names of existing deployments
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"lark.app_id":                        "LARK_APP_ID",
		"lark.app_secret":                    "LARK_APP_SECRET",
		"lark.spreadsheet_token":             "SPREADSHEET_TOKEN",
		"ledger.dsn":                         "DATABASE_URL",
		"smtp.host":                          "SMTP_SERVER",
		"smtp.port":                          "SMTP_PORT",
		"smtp.username":                      "EMAIL_USERNAME",
		"smtp.password":                      "EMAIL_PASSWORD",
		"smtp.from":                          "SENDER_EMAIL",
		"reminder.probation_form_url":        "PROBATION_FORM_URL",
		"reminder.contract_renewal_form_url": "CONTRACT_RENEWAL_FORM_URL",
	}
	for key, env := range legacy {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetStringMapStringSlice gets a map of string slices from the configuration
func (c *Config) GetStringMapStringSlice(key string) map[string][]string {
	return c.v.GetStringMapStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// Set overrides a configuration value
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
