package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Portal      PortalConfig     `mapstructure:"portal"`
	Annotation  AnnotationConfig `mapstructure:"annotation"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Oncoprint   OncoprintConfig  `mapstructure:"oncoprint"`
	Session     SessionConfig    `mapstructure:"session"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	CertFile     string        `mapstructure:"cert_file"`
	KeyFile      string        `mapstructure:"key_file"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// PortalConfig represents the upstream cBioPortal-compatible REST API
type PortalConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIToken   string        `mapstructure:"api_token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// AnnotationConfig represents the driver annotation services
type AnnotationConfig struct {
	OncoKB   AnnotationSourceConfig `mapstructure:"oncokb"`
	Hotspots AnnotationSourceConfig `mapstructure:"hotspots"`
	COSMIC   AnnotationSourceConfig `mapstructure:"cosmic"`

	CBioPortalCountThreshold int    `mapstructure:"cbioportal_count_threshold"`
	COSMICCountThreshold     int    `mapstructure:"cosmic_count_threshold"`
	CustomBinaryMenuLabel    string `mapstructure:"custom_binary_menu_label"`
	CustomTiersMenuLabel     string `mapstructure:"custom_tiers_menu_label"`
}

// AnnotationSourceConfig represents one annotation web service
type AnnotationSourceConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	APIToken  string        `mapstructure:"api_token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	RedisURL      string        `mapstructure:"redis_url"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	MaxRetries    int           `mapstructure:"max_retries"`
	PoolSize      int           `mapstructure:"pool_size"`
	PoolTimeout   time.Duration `mapstructure:"pool_timeout"`
	MemoryEntries int           `mapstructure:"memory_entries"`
}

// OncoprintConfig represents oncoprint computation settings
type OncoprintConfig struct {
	MRNAZScoreThreshold    float64       `mapstructure:"mrna_zscore_threshold"`
	ProteinZScoreThreshold float64       `mapstructure:"protein_zscore_threshold"`
	SlowLoadingThreshold   time.Duration `mapstructure:"slow_loading_threshold"`
	MaxPages               int           `mapstructure:"max_pages"`
	DefaultHorzZoom        float64       `mapstructure:"default_horz_zoom"`
	RecomputeTimeout       time.Duration `mapstructure:"recompute_timeout"`
}

// SessionConfig represents bookmark session storage
type SessionConfig struct {
	Backend    string `mapstructure:"backend"` // "sqlite", "postgres" or "" to disable
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}
