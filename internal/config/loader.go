package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix  = "NODERIG"
	configName = "noderig"
)

// Load reads configuration from all layers. A missing config file is
// not an error; defaults and environment still apply.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return load("", overrides)
}

// LoadFile is Load with an explicit config file path; the file must
// exist.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is empty")
	}
	return load(path, overrides)
}

func load(file string, overrides []map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, configName))
		}
	}

	v.SetEnvPrefix(envPrefix)
	// Nested keys map onto flat variable names: engine.url is read
	// from NODERIG_ENGINE_URL.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	for _, override := range overrides {
		if err := v.MergeConfigMap(override); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}

	var cfg Config
	decode := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decode); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8189)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_rps", 20.0)
	v.SetDefault("server.rate_burst", 40)

	v.SetDefault("engine.url", "http://localhost:8188")
	v.SetDefault("engine.http_timeout", "30s")
	v.SetDefault("engine.poll_interval", "2s")
	v.SetDefault("engine.wait_timeout", "10m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "console")

	v.SetDefault("assets.ttl", "24h")
	v.SetDefault("assets.output_root", "")

	v.SetDefault("preview.max_dim", 512)
	v.SetDefault("preview.max_chars", 100000)
	v.SetDefault("preview.quality", 70)
}

// WriteDefault writes a commented starter config to path, refusing to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	doc := map[string]any{
		"server": map[string]any{
			"host":             "localhost",
			"port":             8189,
			"read_timeout":     "30s",
			"write_timeout":    "30s",
			"idle_timeout":     "120s",
			"shutdown_timeout": "10s",
			"rate_rps":         20.0,
			"rate_burst":       40,
		},
		"engine": map[string]any{
			"url":           "http://localhost:8188",
			"http_timeout":  "30s",
			"poll_interval": "2s",
			"wait_timeout":  "10m",
		},
		"logging": map[string]any{
			"level":   "info",
			"profile": "console",
		},
		"assets": map[string]any{
			"ttl":         "24h",
			"output_root": "",
		},
		"preview": map[string]any{
			"max_dim":   512,
			"max_chars": 100000,
			"quality":   70,
		},
	}

	b, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
