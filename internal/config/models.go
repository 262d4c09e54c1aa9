package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validateStruct(name string, s any) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid %s configuration: %w", name, err)
	}
	return nil
}

// LarkConfig represents the configuration for the Lark record source
type LarkConfig struct {
	BaseURL           string        `validate:"required,url"`
	AppID             string        `validate:"required"`
	AppSecret         string        `validate:"required"`
	Source            string        `validate:"oneof=sheet table"`
	SpreadsheetToken  string        `validate:"required_if=Source sheet"`
	SheetRange        string        `validate:"required_if=Source sheet"`
	AppToken          string        `validate:"required_if=Source table"`
	TableID           string        `validate:"required_if=Source table"`
	PageSize          int           `validate:"min=1,max=500"`
	Timeout           time.Duration `validate:"gt=0"`
	RequestsPerSecond float64       `validate:"gte=0"`
}

// CacheConfig represents the configuration for the record snapshot cache
type CacheConfig struct {
	TTL time.Duration `validate:"gte=0"`
}

// LedgerConfig represents the configuration for the sent-email ledger
type LedgerConfig struct {
	Driver            string `validate:"oneof=postgres mysql sqlite file"`
	DSN               string
	SQLitePath        string
	FilePath          string `validate:"required"`
	FileRetentionDays int    `validate:"min=1"`
	AutoMigrate       bool
	ConnectTimeout    time.Duration `validate:"gt=0"`
}

// SMTPConfig represents the configuration for outgoing mail
type SMTPConfig struct {
	Transport          string `validate:"oneof=smtp log"`
	Host               string `validate:"required_if=Transport smtp"`
	Port               int    `validate:"min=1,max=65535"`
	Security           string `validate:"oneof=tls starttls none"`
	Username           string
	Password           string
	From               string        `validate:"required"`
	Timeout            time.Duration `validate:"gt=0"`
	InsecureSkipVerify bool
	Helo               string
}

// ReminderConfig represents the configuration for the reminder pipeline
type ReminderConfig struct {
	WindowMinDays          int `validate:"min=0"`
	WindowMaxDays          int `validate:"gtefield=WindowMinDays"`
	Location               *time.Location
	ProbationFormURL       string `validate:"omitempty,url"`
	ContractRenewalFormURL string `validate:"omitempty,url"`
	SenderName             string
	SeparationLookbackDays int `validate:"min=0"`
}

// RoutingConfig represents the CC and vendor routing tables
type RoutingConfig struct {
	DepartmentCC map[string][]string `validate:"dive,dive,email"`
	ConstantCC   string              `validate:"omitempty,email"`
	VendorEmail  string              `validate:"omitempty,email"`
	HREmail      string              `validate:"omitempty,email"`
}

// ServerConfig represents the configuration for the HTTP API
type ServerConfig struct {
	ListenAddress  string `validate:"required"`
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MetricsEnabled bool
}

// GetLark returns the Lark configuration
func (c *Config) GetLark() (LarkConfig, error) {
	timeout, err := c.GetDuration("lark.timeout")
	if err != nil {
		return LarkConfig{}, err
	}

	cfg := LarkConfig{
		BaseURL:           c.GetString("lark.base_url"),
		AppID:             c.GetString("lark.app_id"),
		AppSecret:         c.GetString("lark.app_secret"),
		Source:            strings.ToLower(c.GetString("lark.source")),
		SpreadsheetToken:  c.GetString("lark.spreadsheet_token"),
		SheetRange:        c.GetString("lark.sheet_range"),
		AppToken:          c.GetString("lark.app_token"),
		TableID:           c.GetString("lark.table_id"),
		PageSize:          c.GetInt("lark.page_size"),
		Timeout:           timeout,
		RequestsPerSecond: c.GetFloat64("lark.requests_per_second"),
	}
	return cfg, validateStruct("lark", cfg)
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cfg := CacheConfig{TTL: ttl}
	return cfg, validateStruct("cache", cfg)
}

// GetLedger returns the ledger configuration
func (c *Config) GetLedger() (LedgerConfig, error) {
	timeout, err := c.GetDuration("ledger.connect_timeout")
	if err != nil {
		return LedgerConfig{}, err
	}

	cfg := LedgerConfig{
		Driver:            strings.ToLower(c.GetString("ledger.driver")),
		DSN:               c.GetString("ledger.dsn"),
		SQLitePath:        c.GetString("ledger.sqlite_path"),
		FilePath:          c.GetString("ledger.file_path"),
		FileRetentionDays: c.GetInt("ledger.file_retention_days"),
		AutoMigrate:       c.GetBool("ledger.auto_migrate"),
		ConnectTimeout:    timeout,
	}
	return cfg, validateStruct("ledger", cfg)
}

// GetSMTP returns the SMTP configuration
func (c *Config) GetSMTP() (SMTPConfig, error) {
	timeout, err := c.GetDuration("smtp.timeout")
	if err != nil {
		return SMTPConfig{}, err
	}

	cfg := SMTPConfig{
		Transport:          strings.ToLower(c.GetString("smtp.transport")),
		Host:               c.GetString("smtp.host"),
		Port:               c.GetInt("smtp.port"),
		Security:           strings.ToLower(c.GetString("smtp.security")),
		Username:           c.GetString("smtp.username"),
		Password:           c.GetString("smtp.password"),
		From:               c.GetString("smtp.from"),
		Timeout:            timeout,
		InsecureSkipVerify: c.GetBool("smtp.insecure_skip_verify"),
		Helo:               c.GetString("smtp.helo"),
	}
	return cfg, validateStruct("smtp", cfg)
}

// GetReminder returns the reminder pipeline configuration
func (c *Config) GetReminder() (ReminderConfig, error) {
	loc, err := time.LoadLocation(c.GetString("reminder.timezone"))
	if err != nil {
		return ReminderConfig{}, fmt.Errorf("invalid reminder.timezone: %w", err)
	}

	cfg := ReminderConfig{
		WindowMinDays:          c.GetInt("reminder.window_min_days"),
		WindowMaxDays:          c.GetInt("reminder.window_max_days"),
		Location:               loc,
		ProbationFormURL:       c.GetString("reminder.probation_form_url"),
		ContractRenewalFormURL: c.GetString("reminder.contract_renewal_form_url"),
		SenderName:             c.GetString("reminder.sender_name"),
		SeparationLookbackDays: c.GetInt("separation.lookback_days"),
	}
	return cfg, validateStruct("reminder", cfg)
}

// GetRouting returns the routing configuration
func (c *Config) GetRouting() (RoutingConfig, error) {
	cfg := RoutingConfig{
		DepartmentCC: c.GetStringMapStringSlice("routing.department_cc"),
		ConstantCC:   c.GetString("routing.constant_cc"),
		VendorEmail:  c.GetString("routing.vendor_email"),
		HREmail:      c.GetString("routing.hr_email"),
	}
	return cfg, validateStruct("routing", cfg)
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	readTimeout, err := c.GetDuration("server.read_timeout")
	if err != nil {
		return ServerConfig{}, err
	}
	writeTimeout, err := c.GetDuration("server.write_timeout")
	if err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{
		ListenAddress:  c.GetString("server.listen_address"),
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		MetricsEnabled: c.GetBool("metrics.enabled"),
	}
	return cfg, validateStruct("server", cfg)
}
