package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds optional settings loaded from a TOML file via --config.
type Config struct {
	Workers int          `toml:"workers"`
	Stats   StatsConfig  `toml:"stats"`
	Render  RenderConfig `toml:"render"`
}

// StatsConfig controls the bundled statistics example.
type StatsConfig struct {
	Seed  int64   `toml:"seed"`
	Size  int     `toml:"size"`
	Alpha float64 `toml:"alpha"`
	Beta  float64 `toml:"beta"`
}

// RenderConfig controls graph rendering output.
type RenderConfig struct {
	CacheDir string   `toml:"cache_dir"` // empty means in-memory caching only
	CacheTTL duration `toml:"cache_ttl"`
}

// duration wraps time.Duration so TOML values like "30m" decode directly.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func defaultConfig() Config {
	return Config{
		Workers: 4,
		Stats: StatsConfig{
			Seed:  1,
			Size:  10000,
			Alpha: 3,
			Beta:  2,
		},
		Render: RenderConfig{
			CacheTTL: duration{time.Hour},
		},
	}
}

// loadConfig reads a TOML config file, applying defaults for unset fields.
// An empty path returns the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
