package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config is the persistent application configuration
type Config struct {
	// AI Models
	Models ModelConfig `json:"models"`

	// Feed behavior
	Feed FeedConfig `json:"feed"`

	// Trending pipeline tuning
	Trending TrendingConfig `json:"trending"`

	// Object storage for post media
	Storage StorageConfig `json:"storage"`

	// HTTP surface
	Server ServerConfig `json:"server"`
}

// ModelConfig holds AI model settings
type ModelConfig struct {
	OpenAI ModelSettings `json:"openai"`
	Ollama ModelSettings `json:"ollama"`
}

// ModelSettings for a single AI provider
type ModelSettings struct {
	Enabled  bool   `json:"enabled"`
	APIKey   string `json:"api_key,omitempty"`
	Endpoint string `json:"endpoint,omitempty"` // For Ollama or custom endpoints
	Model    string `json:"model,omitempty"`    // Specific model to use
	Priority int    `json:"priority"`           // Lower = higher priority for fallback
}

// FeedConfig holds feed cache and live-update preferences
type FeedConfig struct {
	PageSize        int `json:"page_size"`
	RecencyWindowMs int `json:"recency_window_ms"` // Live posts older than this never enter the pending list
}

// RecencyWindow returns the live-update recency window as a duration.
func (f FeedConfig) RecencyWindow() time.Duration {
	return time.Duration(f.RecencyWindowMs) * time.Millisecond
}

// TrendingConfig holds trending aggregation tuning.
// The floor and window were hardcoded upstream; here they are explicit knobs.
type TrendingConfig struct {
	WindowHours        int `json:"window_hours"`
	Floor              int `json:"floor"` // Minimum mentions for a topic to qualify
	TopN               int `json:"top_n"`
	RefreshMinutes     int `json:"refresh_minutes"`
	SynthesisPerMinute int `json:"synthesis_per_minute"` // Rate limit on generative calls
}

// Window returns the trailing aggregation window as a duration.
func (t TrendingConfig) Window() time.Duration {
	return time.Duration(t.WindowHours) * time.Hour
}

// StorageConfig holds object storage (S3-compatible) settings
type StorageConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Bucket    string `json:"bucket"`
	Secure    bool   `json:"secure"`
	PublicURL string `json:"public_url"` // Base URL clients use to read uploaded objects
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr     string `json:"addr"`
	DBPath   string `json:"db_path"`
	ViewerID string `json:"viewer_id"` // Identity of the local session owner
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Models: ModelConfig{
			OpenAI: ModelSettings{
				Enabled:  true,
				Priority: 1,
				Model:    "gpt-4o",
			},
			Ollama: ModelSettings{
				Enabled:  false,
				Priority: 2,
				Endpoint: "http://localhost:11434",
				// Model auto-detected from Ollama if not specified
			},
		},
		Feed: FeedConfig{
			PageSize:        20,
			RecencyWindowMs: int((5 * time.Minute).Milliseconds()),
		},
		Trending: TrendingConfig{
			WindowHours:        72,
			Floor:              3,
			TopN:               5,
			RefreshMinutes:     15,
			SynthesisPerMinute: 4,
		},
		Storage: StorageConfig{
			Endpoint: "localhost:9000",
			Bucket:   "bholo-media",
			Secure:   false,
		},
		Server: ServerConfig{
			Addr:   ":8490",
			DBPath: filepath.Join(home, ".bholo", "bholo.db"),
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".bholo", "config.json")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults and try to auto-populate from environment
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), nil
	}

	cfg.AutoPopulateFromEnv()
	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := ConfigPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for API keys
}

// AutoPopulateFromEnv fills in credentials from environment variables.
// Values already present in the config file win over the environment.
func (c *Config) AutoPopulateFromEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Models.OpenAI.APIKey == "" {
		c.Models.OpenAI.APIKey = key
	}
	if ep := os.Getenv("OLLAMA_ENDPOINT"); ep != "" && c.Models.Ollama.Endpoint == "" {
		c.Models.Ollama.Endpoint = ep
		c.Models.Ollama.Enabled = true
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("S3_ACCESS"); v != "" && c.Storage.AccessKey == "" {
		c.Storage.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET"); v != "" && c.Storage.SecretKey == "" {
		c.Storage.SecretKey = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if os.Getenv("S3_SECURE") == "1" {
		c.Storage.Secure = true
	}
	if v := os.Getenv("BHOLO_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("BHOLO_DB"); v != "" {
		c.Server.DBPath = v
	}
	if v := os.Getenv("BHOLO_VIEWER"); v != "" {
		c.Server.ViewerID = v
	}
}
