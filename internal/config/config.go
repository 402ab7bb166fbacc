package config

import (
	"embed"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/app.yaml
var configYAML embed.FS

// Config is the application configuration, loaded from the embedded
// config/app.yaml with environment variables expanded.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Comps    CompsConfig    `yaml:"comps"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Server   ServerConfig   `yaml:"server"`
}

// ProviderConfig configures the property data provider client.
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url,omitempty"`
	APIKey         string `yaml:"api_key,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // Default: 15
	MaxRetries     int    `yaml:"max_retries,omitempty"`     // Default: 2
}

// CompsConfig tunes comparable filtering.
type CompsConfig struct {
	SizeTolerancePct float64 `yaml:"size_tolerance_pct,omitempty"` // Default: 30
	RecencyDays      int     `yaml:"recency_days,omitempty"`       // Default: 180
}

// OllamaConfig configures the local LLM used for narratives and embeddings.
type OllamaConfig struct {
	BaseURL    string `yaml:"base_url,omitempty"`
	EmbedModel string `yaml:"embed_model,omitempty"`
	GenModel   string `yaml:"gen_model,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port string `yaml:"port,omitempty"` // Default: 8080
}

// Load reads the embedded config file. The path parameter is a filesystem
// fallback for local development.
func Load(path string) (*Config, error) {
	data, err := configYAML.ReadFile("config/app.yaml")
	if err != nil {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	// Expand environment variables within the YAML content (e.g. ${RENTCAST_API_KEY})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = 15
	}
	if c.Provider.MaxRetries <= 0 {
		c.Provider.MaxRetries = 2
	}
	if c.Comps.SizeTolerancePct <= 0 {
		c.Comps.SizeTolerancePct = 30
	}
	if c.Comps.RecencyDays <= 0 {
		c.Comps.RecencyDays = 180
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
}
