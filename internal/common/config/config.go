// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	APIs     APIsConfig     `mapstructure:"apis"`
	Database DatabaseConfig `mapstructure:"database"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // seconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // seconds
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	Search struct {
		BaseURL  string `mapstructure:"base_url"`
		APIKey   string `mapstructure:"api_key"`
		EngineID string `mapstructure:"engine_id"`
		Timeout  int    `mapstructure:"timeout"` // milliseconds
		QPS      int    `mapstructure:"qps"`
	} `mapstructure:"search"`

	GenAI struct {
		BaseURL       string  `mapstructure:"base_url"`
		APIKey        string  `mapstructure:"api_key"`
		PrimaryModel  string  `mapstructure:"primary_model"`
		FallbackModel string  `mapstructure:"fallback_model"`
		Timeout       int     `mapstructure:"timeout"` // milliseconds
		MaxTokens     int     `mapstructure:"max_tokens"`
		Temperature   float64 `mapstructure:"temperature"`
	} `mapstructure:"genai"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	Enabled        bool   `mapstructure:"enabled"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

// PipelineConfig holds the discovery pipeline tuning knobs.
type PipelineConfig struct {
	PlatformSite       string `mapstructure:"platform_site"`        // e.g. instagram.com
	PagesPlatform      int    `mapstructure:"pages_platform"`       // platform-direct strategy page budget
	PagesOpenWeb       int    `mapstructure:"pages_open_web"`       // open-web strategy page budget
	PagesListing       int    `mapstructure:"pages_listing"`        // listing-discovery strategy page budget
	PageSize           int    `mapstructure:"page_size"`            // results per provider page
	BatchSizeProfile   int    `mapstructure:"batch_size_profile"`   // candidates per profile-channel model call
	BatchSizeListing   int    `mapstructure:"batch_size_listing"`   // candidates per listing-channel model call
	MaxConcurrency     int    `mapstructure:"max_concurrency"`      // fan-out goroutine bound
	ListingSearchTerm  string `mapstructure:"listing_search_term"`  // appended by the listing-discovery strategy
	MaxPhrases         int    `mapstructure:"max_phrases"`          // cap on expanded phrases
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
