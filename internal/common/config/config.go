package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Messaging  MessagingConfig  `mapstructure:"messaging"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Camunda    CamundaConfig    `mapstructure:"camunda"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig selects the draft backend ("redis" or "memory") and the key
// names the drafts live under.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	FormKey       string `mapstructure:"form_key"`
	PriceTableKey string `mapstructure:"price_table_key"`
	DraftTTL      int    `mapstructure:"draft_ttl"`    // hours, 0 keeps drafts forever
	SessionIdle   int    `mapstructure:"session_idle"` // minutes
}

// MessagingConfig holds the messaging-platform mini-app settings.
type MessagingConfig struct {
	LiffID string `mapstructure:"liff_id"`
}

// SubmissionConfig points at the backend that takes submissions and answers
// voucher lookups.
type SubmissionConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

type PricingConfig struct {
	VoucherDebounce int `mapstructure:"voucher_debounce"` // milliseconds
}

type CamundaConfig struct {
	BrokerAddress string `mapstructure:"broker_address"`
	MaxJobsActive int    `mapstructure:"max_jobs_active"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (s ServerConfig) ReadTimeoutDuration() time.Duration     { return ms(s.ReadTimeout) }
func (s ServerConfig) WriteTimeoutDuration() time.Duration    { return ms(s.WriteTimeout) }
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration { return ms(s.ShutdownTimeout) }
func (s SubmissionConfig) TimeoutDuration() time.Duration     { return ms(s.Timeout) }
func (p PricingConfig) DebounceDuration() time.Duration       { return ms(p.VoucherDebounce) }
func (c CamundaConfig) TimeoutDuration() time.Duration        { return ms(c.Timeout) }

func (s StorageConfig) TTL() time.Duration {
	return time.Duration(s.DraftTTL) * time.Hour
}

// SessionIdleDuration is how long a session may go untouched before its
// in-process handles are released. Stored drafts are unaffected.
func (s StorageConfig) SessionIdleDuration() time.Duration {
	return time.Duration(s.SessionIdle) * time.Minute
}

// FormKeyFor returns the draft key for one session.
func (s StorageConfig) FormKeyFor(session string) string {
	return fmt.Sprintf("%s:%s", s.FormKey, session)
}

// PriceTableKeyFor returns the price table key for one session.
func (s StorageConfig) PriceTableKeyFor(session string) string {
	return fmt.Sprintf("%s:%s", s.PriceTableKey, session)
}

// LoginEnabled reports whether the messaging-platform login can run.
func (m MessagingConfig) LoginEnabled() bool {
	return m.LiffID != ""
}

// Enabled reports whether submissions and voucher lookups have somewhere to go.
func (s SubmissionConfig) Enabled() bool {
	return s.Endpoint != ""
}
