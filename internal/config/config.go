package config

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"
)

// Scheduler selection values for the SCHEDULERS environment variable.
const (
	SchedulerAll      = "all"
	SchedulerMeetings = "meetings"
	SchedulerEvents   = "events"
	SchedulerBreaks   = "breaks"
)

// Config holds all configuration for the lifecycled engine.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DatabaseURL string `json:"database_url"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	HTTPAddr    string `json:"http_addr"`

	// Schedulers selects which schedulers this process runs: "all" or a
	// comma-separated subset of meetings,events,breaks.
	Schedulers []string `json:"schedulers"`

	MeetingStartInterval    time.Duration `json:"-"`
	MeetingStartIntervalStr string        `json:"meeting_start_interval"`

	MeetingReminderInterval    time.Duration `json:"-"`
	MeetingReminderIntervalStr string        `json:"meeting_reminder_interval"`

	MeetingNotificationInterval    time.Duration `json:"-"`
	MeetingNotificationIntervalStr string        `json:"meeting_notification_interval"`

	EventCheckInterval    time.Duration `json:"-"`
	EventCheckIntervalStr string        `json:"event_check_interval"`

	// EventTimezone is the canonical timezone for the "has this event
	// actually started" comparison.
	EventTimezone string `json:"event_timezone"`

	BreakCheckInterval    time.Duration `json:"-"`
	BreakCheckIntervalStr string        `json:"break_check_interval"`

	BreakDuration    time.Duration `json:"-"`
	BreakDurationStr string        `json:"break_duration"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	// CacheInvalidateConcurrency bounds parallel pattern deletions per pass.
	CacheInvalidateConcurrency int `json:"cache_invalidate_concurrency"`

	// CacheBreakerThreshold: 0 disables the cache circuit breaker.
	CacheBreakerThreshold   int           `json:"cache_breaker_threshold"`
	CacheBreakerCooldown    time.Duration `json:"-"`
	CacheBreakerCooldownStr string        `json:"cache_breaker_cooldown"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DatabaseURL:                    os.Getenv("DATABASE_URL"),
		RedisAddr:                      os.Getenv("REDIS_ADDR"),
		HTTPAddr:                       os.Getenv("HTTP_ADDR"),
		MeetingStartIntervalStr:        os.Getenv("MEETING_START_INTERVAL"),
		MeetingReminderIntervalStr:     os.Getenv("MEETING_REMINDER_INTERVAL"),
		MeetingNotificationIntervalStr: os.Getenv("MEETING_NOTIFICATION_INTERVAL"),
		EventCheckIntervalStr:          os.Getenv("EVENT_CHECK_INTERVAL"),
		EventTimezone:                  os.Getenv("EVENT_TIMEZONE"),
		BreakCheckIntervalStr:          os.Getenv("BREAK_CHECK_INTERVAL"),
		BreakDurationStr:               os.Getenv("BREAK_DURATION"),
		DBOpTimeoutStr:                 os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:           os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:           os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		HTTPShutdownTimeoutStr:         os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		CacheBreakerCooldownStr:        os.Getenv("CACHE_BREAKER_COOLDOWN"),
		MetricsEnabled:                 os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:                    os.Getenv("METRICS_PATH"),
		MetricsPort:                    os.Getenv("METRICS_PORT"),
	}

	cfg.Schedulers = parseSchedulers(os.Getenv("SCHEDULERS"))

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 25
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}

	if concStr := os.Getenv("CACHE_INVALIDATE_CONCURRENCY"); concStr != "" {
		if n, err := parseInt(concStr); err == nil && n > 0 {
			cfg.CacheInvalidateConcurrency = n
		} else {
			log.Printf("config: invalid CACHE_INVALIDATE_CONCURRENCY %q (must be a positive integer), using default 8", concStr)
		}
	}
	if cfg.CacheInvalidateConcurrency == 0 {
		cfg.CacheInvalidateConcurrency = 8
	}

	if threshStr := os.Getenv("CACHE_BREAKER_THRESHOLD"); threshStr != "" {
		if n, err := parseInt(threshStr); err == nil {
			cfg.CacheBreakerThreshold = n
		} else {
			log.Printf("config: invalid CACHE_BREAKER_THRESHOLD %q, using default 5", threshStr)
		}
	}
	if cfg.CacheBreakerThreshold == 0 && os.Getenv("CACHE_BREAKER_THRESHOLD") == "" {
		cfg.CacheBreakerThreshold = 5
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.MeetingStartIntervalStr == "" {
		cfg.MeetingStartIntervalStr = "500ms"
	}
	if cfg.MeetingReminderIntervalStr == "" {
		cfg.MeetingReminderIntervalStr = "60s"
	}
	if cfg.MeetingNotificationIntervalStr == "" {
		cfg.MeetingNotificationIntervalStr = "2s"
	}
	if cfg.EventCheckIntervalStr == "" {
		cfg.EventCheckIntervalStr = "5s"
	}
	if cfg.EventTimezone == "" {
		cfg.EventTimezone = "Asia/Manila"
	}
	if cfg.BreakCheckIntervalStr == "" {
		cfg.BreakCheckIntervalStr = "30s"
	}
	if cfg.BreakDurationStr == "" {
		cfg.BreakDurationStr = "15m"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.CacheBreakerCooldownStr == "" {
		cfg.CacheBreakerCooldownStr = "2m"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.MeetingStartIntervalStr); err == nil {
		cfg.MeetingStartInterval = d
	}
	if d, err := time.ParseDuration(cfg.MeetingReminderIntervalStr); err == nil {
		cfg.MeetingReminderInterval = d
	}
	if d, err := time.ParseDuration(cfg.MeetingNotificationIntervalStr); err == nil {
		cfg.MeetingNotificationInterval = d
	}
	if d, err := time.ParseDuration(cfg.EventCheckIntervalStr); err == nil {
		cfg.EventCheckInterval = d
	}
	if d, err := time.ParseDuration(cfg.BreakCheckIntervalStr); err == nil {
		cfg.BreakCheckInterval = d
	}
	if d, err := time.ParseDuration(cfg.BreakDurationStr); err == nil {
		cfg.BreakDuration = d
	}
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.CacheBreakerCooldownStr); err == nil {
		cfg.CacheBreakerCooldown = d
	}

	return cfg
}

// RunsScheduler reports whether the given scheduler is selected.
func (c Config) RunsScheduler(name string) bool {
	for _, s := range c.Schedulers {
		if s == SchedulerAll || s == name {
			return true
		}
	}
	return false
}

func parseSchedulers(raw string) []string {
	if raw == "" {
		return []string{SchedulerAll}
	}
	var result []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return []string{SchedulerAll}
	}
	return result
}

// parseInt parses a string as a non-negative integer.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, os.ErrInvalid
	}
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DatabaseURL                 string   `json:"database_url"`
		RedisAddr                   string   `json:"redis_addr,omitempty"`
		HTTPAddr                    string   `json:"http_addr"`
		Schedulers                  []string `json:"schedulers"`
		MeetingStartInterval        string   `json:"meeting_start_interval"`
		MeetingReminderInterval     string   `json:"meeting_reminder_interval"`
		MeetingNotificationInterval string   `json:"meeting_notification_interval"`
		EventCheckInterval          string   `json:"event_check_interval"`
		EventTimezone               string   `json:"event_timezone"`
		BreakCheckInterval          string   `json:"break_check_interval"`
		BreakDuration               string   `json:"break_duration"`
		DBOpTimeout                 string   `json:"db_op_timeout"`
		DBMaxOpenConns              int      `json:"db_max_open_conns"`
		DBMaxIdleConns              int      `json:"db_max_idle_conns"`
		DBConnMaxLifetime           string   `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime           string   `json:"db_conn_max_idle_time"`
		HTTPShutdownTimeout         string   `json:"http_shutdown_timeout"`
		CacheInvalidateConcurrency  int      `json:"cache_invalidate_concurrency"`
		CacheBreakerThreshold       int      `json:"cache_breaker_threshold"`
		CacheBreakerCooldown        string   `json:"cache_breaker_cooldown"`
		MetricsEnabled              bool     `json:"metrics_enabled"`
		MetricsPath                 string   `json:"metrics_path"`
		MetricsPort                 string   `json:"metrics_port"`
	}{
		DatabaseURL:                 maskSecret(c.DatabaseURL),
		RedisAddr:                   c.RedisAddr,
		HTTPAddr:                    c.HTTPAddr,
		Schedulers:                  c.Schedulers,
		MeetingStartInterval:        c.MeetingStartIntervalStr,
		MeetingReminderInterval:     c.MeetingReminderIntervalStr,
		MeetingNotificationInterval: c.MeetingNotificationIntervalStr,
		EventCheckInterval:          c.EventCheckIntervalStr,
		EventTimezone:               c.EventTimezone,
		BreakCheckInterval:          c.BreakCheckIntervalStr,
		BreakDuration:               c.BreakDurationStr,
		DBOpTimeout:                 c.DBOpTimeoutStr,
		DBMaxOpenConns:              c.DBMaxOpenConns,
		DBMaxIdleConns:              c.DBMaxIdleConns,
		DBConnMaxLifetime:           c.DBConnMaxLifetimeStr,
		DBConnMaxIdleTime:           c.DBConnMaxIdleTimeStr,
		HTTPShutdownTimeout:         c.HTTPShutdownTimeoutStr,
		CacheInvalidateConcurrency:  c.CacheInvalidateConcurrency,
		CacheBreakerThreshold:       c.CacheBreakerThreshold,
		CacheBreakerCooldown:        c.CacheBreakerCooldownStr,
		MetricsEnabled:              c.MetricsEnabled,
		MetricsPath:                 c.MetricsPath,
		MetricsPort:                 c.MetricsPort,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}
