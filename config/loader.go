package config

import (
	"os"
	"strings"

	"github.com/asifkhan0410/recallchat/errors"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variables,
	// e.g. RECALLCHAT_MEM0_API_KEY -> mem0.api_key.
	EnvPrefix = "RECALLCHAT_"
	delimiter = "."
)

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence. A .env file in
// the working directory is honored before the environment is read.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, errors.Wrapf(err, "failed to load .env")
		}
	}

	k := koanf.New(delimiter)

	defaults := Default()
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"log.level":         defaults.Log.Level,
		"log.handler":       defaults.Log.Handler,
		"database.path":     defaults.Database.Path,
		"mem0.base_url":     defaults.Mem0.BaseURL,
		"mem0.timeout":      defaults.Mem0.Timeout,
		"model.provider":    defaults.Model.Provider,
		"model.model":       defaults.Model.Model,
		"model.temperature": defaults.Model.Temperature,
		"model.max_tokens":  defaults.Model.MaxTokens,
		"cache.search_ttl":  defaults.Cache.SearchTTL,
		"cache.all_ttl":     defaults.Cache.AllTTL,
		"cache.misc_ttl":    defaults.Cache.MiscTTL,
		"server.port":       defaults.Server.Port,
	}, delimiter), nil); err != nil {
		return nil, errors.Wrapf(err, "failed to load defaults")
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configPath)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, delimiter, func(s string) string {
		// RECALLCHAT_MODEL_OPENAI_API_KEY -> model.openai_api_key
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.Replace(s, "_", delimiter, 1)
	}), nil); err != nil {
		return nil, errors.Wrapf(err, "failed to load environment")
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config")
	}

	return &cfg, nil
}
