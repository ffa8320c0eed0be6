// Package config loads the dispatch service's static tunables from a YAML
// file via viper, the way the rest of this codebase's ancestry loads its
// feature flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Batching mirrors dispatch.PoolConfig's fields so callers don't need to
// import dispatch just to unmarshal a config file.
type Batching struct {
	MiniBatchWords int `mapstructure:"mini_batch_words"`
	MaxLengthBreak int `mapstructure:"max_length_break"`
	PivotSlack     int `mapstructure:"pivot_slack"`
}

type Cache struct {
	SizeBytes int `mapstructure:"size_bytes"`
	AvgEntry  int `mapstructure:"avg_entry_bytes"`
	Shards    int `mapstructure:"shards"`
}

type Admission struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Service is the root of the dispatch service's config file.
type Service struct {
	NumWorkers int       `mapstructure:"num_workers"`
	Batching   Batching  `mapstructure:"batching"`
	Cache      Cache     `mapstructure:"cache"`
	Admission  Admission `mapstructure:"admission"`
	Logging    Logging   `mapstructure:"logging"`
}

// Load reads service.yaml from DISPATCH_CONFIG_PATH, or ./config/service.yaml
// if that env var is unset.
func Load() (*Service, error) {
	cfgPath := os.Getenv("DISPATCH_CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/service.yaml"
	}
	if info, err := os.Stat(cfgPath); err == nil && info.IsDir() {
		cfgPath = filepath.Join(cfgPath, "service.yaml")
	}

	v := viper.New()
	v.SetConfigFile(cfgPath)
	v.SetDefault("num_workers", 4)
	v.SetDefault("batching.mini_batch_words", 4096)
	v.SetDefault("batching.max_length_break", 128)
	v.SetDefault("batching.pivot_slack", 8)
	v.SetDefault("cache.size_bytes", 64<<20)
	v.SetDefault("cache.avg_entry_bytes", 256)
	v.SetDefault("cache.shards", 64)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			var s Service
			if uerr := v.Unmarshal(&s); uerr != nil {
				return nil, fmt.Errorf("unmarshal default config: %w", uerr)
			}
			return &s, nil
		}
		return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
	}

	var s Service
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &s, nil
}
