package config

import "time"

type (
	Config struct {
		Log      LogConfig      `koanf:"log"`
		Database DatabaseConfig `koanf:"database"`
		Mem0     Mem0Config     `koanf:"mem0"`
		Model    ModelConfig    `koanf:"model"`
		Cache    CacheConfig    `koanf:"cache"`
		Server   ServerConfig   `koanf:"server"`
	}

	LogConfig struct {
		Level   string `koanf:"level"`
		Handler string `koanf:"handler"`
	}

	DatabaseConfig struct {
		Path string `koanf:"path"`
	}

	Mem0Config struct {
		APIKey    string        `koanf:"api_key"`
		ProjectID string        `koanf:"project_id"`
		BaseURL   string        `koanf:"base_url"`
		Timeout   time.Duration `koanf:"timeout"`
	}

	ModelConfig struct {
		Provider        string  `koanf:"provider"`
		Model           string  `koanf:"model"`
		OpenAIAPIKey    string  `koanf:"openai_api_key"`
		AnthropicAPIKey string  `koanf:"anthropic_api_key"`
		Temperature     float64 `koanf:"temperature"`
		MaxTokens       int     `koanf:"max_tokens"`
	}

	CacheConfig struct {
		SearchTTL time.Duration `koanf:"search_ttl"`
		AllTTL    time.Duration `koanf:"all_ttl"`
		MiscTTL   time.Duration `koanf:"misc_ttl"`
	}

	ServerConfig struct {
		Port int `koanf:"port"`
	}
)

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:   "info",
			Handler: "default",
		},
		Database: DatabaseConfig{
			Path: "recallchat.db",
		},
		Mem0: Mem0Config{
			BaseURL: "https://api.mem0.ai",
			Timeout: 30 * time.Second,
		},
		Model: ModelConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		Cache: CacheConfig{
			SearchTTL: 5 * time.Minute,
			AllTTL:    10 * time.Minute,
			MiscTTL:   30 * time.Minute,
		},
		Server: ServerConfig{
			Port: 3001,
		},
	}
}
