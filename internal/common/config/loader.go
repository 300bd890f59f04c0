// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like SEARCH_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when absent.
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the first location it is found in, so the
// binary works from the repo root, cmd directories and test packages alike.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "community-scout"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10
	}
	if cfg.APIs.Search.Timeout == 0 {
		cfg.APIs.Search.Timeout = 10000
	}
	if cfg.APIs.Search.QPS == 0 {
		cfg.APIs.Search.QPS = 5
	}
	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 60000
	}
	if cfg.APIs.GenAI.MaxTokens == 0 {
		cfg.APIs.GenAI.MaxTokens = 4096
	}
	if cfg.APIs.GenAI.Temperature == 0 {
		cfg.APIs.GenAI.Temperature = 0.2
	}
	if cfg.Pipeline.PlatformSite == "" {
		cfg.Pipeline.PlatformSite = "instagram.com"
	}
	if cfg.Pipeline.PagesPlatform == 0 {
		cfg.Pipeline.PagesPlatform = 2
	}
	if cfg.Pipeline.PagesOpenWeb == 0 {
		cfg.Pipeline.PagesOpenWeb = 1
	}
	if cfg.Pipeline.PagesListing == 0 {
		cfg.Pipeline.PagesListing = 1
	}
	if cfg.Pipeline.PageSize == 0 {
		cfg.Pipeline.PageSize = 10
	}
	if cfg.Pipeline.BatchSizeProfile == 0 {
		cfg.Pipeline.BatchSizeProfile = 10
	}
	if cfg.Pipeline.BatchSizeListing == 0 {
		cfg.Pipeline.BatchSizeListing = 4
	}
	if cfg.Pipeline.MaxConcurrency == 0 {
		cfg.Pipeline.MaxConcurrency = 8
	}
	if cfg.Pipeline.ListingSearchTerm == "" {
		cfg.Pipeline.ListingSearchTerm = "best communities list"
	}
	if cfg.Pipeline.MaxPhrases == 0 {
		cfg.Pipeline.MaxPhrases = 12
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
}

// overrideFromEnv fills credentials that are commonly provided only through
// the environment and never written into config files.
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("SEARCH_API_KEY"); v != "" {
		cfg.APIs.Search.APIKey = v
	}
	if v := os.Getenv("SEARCH_ENGINE_ID"); v != "" {
		cfg.APIs.Search.EngineID = v
	}
	if v := os.Getenv("GENAI_API_KEY"); v != "" {
		cfg.APIs.GenAI.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		cfg.Database.Redis.Address = v
		cfg.Database.Redis.Enabled = true
	}
}

func validateConfig(cfg *Config) error {
	if cfg.APIs.GenAI.PrimaryModel == "" {
		return fmt.Errorf("apis.genai.primary_model is required")
	}
	if cfg.APIs.GenAI.FallbackModel == "" {
		return fmt.Errorf("apis.genai.fallback_model is required")
	}
	if cfg.Database.Postgres.Enabled && cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required when postgres is enabled")
	}
	if cfg.Database.Redis.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when redis is enabled")
	}
	return nil
}
