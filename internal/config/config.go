package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration. It is loaded once at startup
// and handed to each component explicitly; no package reads viper ambiently.
type Config struct {
	App      App      `mapstructure:"app"`
	Gemini   Gemini   `mapstructure:"gemini"`
	Catalogs Catalogs `mapstructure:"catalogs"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Server   Server   `mapstructure:"server"`
	Admin    Admin    `mapstructure:"admin"`
}

// App holds general application configuration.
type App struct {
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// Gemini holds the oracle (LLM + embedding) configuration.
type Gemini struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	TokenBudget    int    `mapstructure:"token_budget"` // Max tokens per summarization call
}

// Catalogs holds the external paper catalog endpoints.
type Catalogs struct {
	ArxivBaseURL string        `mapstructure:"arxiv_base_url"`
	S2BaseURL    string        `mapstructure:"s2_base_url"`
	S2APIKey     string        `mapstructure:"s2_api_key"` // Optional, raises the S2 quota
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Pipeline holds stage tuning knobs.
type Pipeline struct {
	Topic         string `mapstructure:"topic"`
	Days          int    `mapstructure:"days"`
	MaxResults    int    `mapstructure:"max_results"`
	MinSummaryLen int    `mapstructure:"min_summary_len"` // Below this the critic skips the paper
	TrendTopK     int    `mapstructure:"trend_top_k"`
	PlanDays      int    `mapstructure:"plan_days"`
	PlanTopN      int    `mapstructure:"plan_top_n"`
}

// Server holds the HTTP API configuration.
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORS          `mapstructure:"cors"`
}

// CORS holds cross-origin settings for the HTTP API.
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Admin holds the credential for destructive endpoints.
type Admin struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// Load reads configuration from an optional YAML file, the environment and
// built-in defaults, in ascending priority: defaults < file < env.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".paperguild")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.SetEnvPrefix("PAPERGUILD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.data_dir", ".paperguild")

	v.SetDefault("gemini.model", "gemini-flash-lite-latest")
	v.SetDefault("gemini.embedding_model", "gemini-embedding-001")
	v.SetDefault("gemini.token_budget", 4000)

	v.SetDefault("catalogs.arxiv_base_url", "https://export.arxiv.org/api/query")
	v.SetDefault("catalogs.s2_base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("catalogs.timeout", "30s")

	v.SetDefault("pipeline.topic", "ai safety")
	v.SetDefault("pipeline.days", 2)
	v.SetDefault("pipeline.max_results", 25)
	v.SetDefault("pipeline.min_summary_len", 50)
	v.SetDefault("pipeline.trend_top_k", 5)
	v.SetDefault("pipeline.plan_days", 14)
	v.SetDefault("pipeline.plan_top_n", 5)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.cors.enabled", true)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})

	v.SetDefault("admin.user", "admin")
}

// bindEnvironmentVariables keeps the short env names the original deployment
// used, next to the prefixed ones viper derives automatically.
func bindEnvironmentVariables(v *viper.Viper) {
	bindEnvKeys(v, "gemini.api_key", "GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY")
	bindEnvKeys(v, "catalogs.s2_api_key", "SEMANTIC_SCHOLAR_API_KEY", "S2_API_KEY")
	bindEnvKeys(v, "admin.password", "ADMIN_PASSWORD")
}

func bindEnvKeys(v *viper.Viper, configKey string, envKeys ...string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			v.Set(configKey, value)
			return
		}
	}
}

func validate(c *Config) error {
	if c.Pipeline.Days <= 0 {
		return fmt.Errorf("pipeline.days must be positive, got %d", c.Pipeline.Days)
	}
	if c.Pipeline.MaxResults <= 0 {
		return fmt.Errorf("pipeline.max_results must be positive, got %d", c.Pipeline.MaxResults)
	}
	if c.Gemini.TokenBudget < 500 {
		return fmt.Errorf("gemini.token_budget too small: %d", c.Gemini.TokenBudget)
	}
	return nil
}
