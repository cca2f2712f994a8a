package config

import (
	"fmt"
	"strings"

	"github.com/oncoprint-server/internal/domain"
	"github.com/spf13/viper"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/oncoprint-server/")

	v.SetEnvPrefix("ONCOPRINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; defaults and environment variables still apply
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls_enabled", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "oncoprint")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")

	// Portal defaults
	v.SetDefault("portal.base_url", "https://www.cbioportal.org/api/")
	v.SetDefault("portal.timeout", "60s")
	v.SetDefault("portal.rate_limit", 20)
	v.SetDefault("portal.retry_count", 3)

	// Annotation defaults
	v.SetDefault("annotation.oncokb.enabled", true)
	v.SetDefault("annotation.oncokb.base_url", "https://www.oncokb.org/api/v1/")
	v.SetDefault("annotation.oncokb.timeout", "30s")
	v.SetDefault("annotation.oncokb.rate_limit", 10)

	v.SetDefault("annotation.hotspots.enabled", true)
	v.SetDefault("annotation.hotspots.base_url", "https://www.cancerhotspots.org/api/")
	v.SetDefault("annotation.hotspots.timeout", "30s")
	v.SetDefault("annotation.hotspots.rate_limit", 10)

	v.SetDefault("annotation.cosmic.enabled", true)
	v.SetDefault("annotation.cosmic.base_url", "https://cancer.sanger.ac.uk/cosmic/")
	v.SetDefault("annotation.cosmic.timeout", "30s")
	v.SetDefault("annotation.cosmic.rate_limit", 10)

	v.SetDefault("annotation.cbioportal_count_threshold", 10)
	v.SetDefault("annotation.cosmic_count_threshold", 10)
	v.SetDefault("annotation.custom_binary_menu_label", "")
	v.SetDefault("annotation.custom_tiers_menu_label", "")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")
	v.SetDefault("cache.memory_entries", 2048)

	// Oncoprint defaults
	v.SetDefault("oncoprint.mrna_zscore_threshold", 2.0)
	v.SetDefault("oncoprint.protein_zscore_threshold", 2.0)
	v.SetDefault("oncoprint.slow_loading_threshold", "5s")
	v.SetDefault("oncoprint.max_pages", 256)
	v.SetDefault("oncoprint.default_horz_zoom", 0.5)
	v.SetDefault("oncoprint.recompute_timeout", "2m")

	// Session defaults
	v.SetDefault("session.backend", "sqlite")
	v.SetDefault("session.sqlite_path", "./data/sessions.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetPortalConfig returns the upstream portal configuration
func (m *Manager) GetPortalConfig() *domain.PortalConfig {
	return &m.config.Portal
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Portal.BaseURL == "" {
		return fmt.Errorf("portal base URL is required")
	}
	if config.Portal.RateLimit <= 0 {
		return fmt.Errorf("portal rate limit must be positive: %d", config.Portal.RateLimit)
	}

	sources := map[string]domain.AnnotationSourceConfig{
		"OncoKB":   config.Annotation.OncoKB,
		"hotspots": config.Annotation.Hotspots,
		"COSMIC":   config.Annotation.COSMIC,
	}
	for name, source := range sources {
		if source.Enabled && source.BaseURL == "" {
			return fmt.Errorf("%s base URL is required when the source is enabled", name)
		}
	}
	if config.Annotation.CBioPortalCountThreshold < 0 || config.Annotation.COSMICCountThreshold < 0 {
		return fmt.Errorf("annotation count thresholds must not be negative")
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when caching is enabled")
	}

	if config.Oncoprint.MRNAZScoreThreshold <= 0 || config.Oncoprint.ProteinZScoreThreshold <= 0 {
		return fmt.Errorf("z-score thresholds must be positive")
	}
	if config.Oncoprint.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive: %d", config.Oncoprint.MaxPages)
	}

	switch config.Session.Backend {
	case "", "sqlite":
		if config.Session.Backend == "sqlite" && config.Session.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite session backend")
		}
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	default:
		return fmt.Errorf("invalid session backend: %s", config.Session.Backend)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the database connection as a URL, as expected by the migration runner
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.Username, db.Password, db.Host, db.Port, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
