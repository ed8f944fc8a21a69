// Package config loads engine tuning parameters via viper, the same way
// the rest of this codebase's ancestors load their runtime configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Allocator holds the tunables of the table-space allocator (see
// internal/storage.TableSpaceAllocator).
type Allocator struct {
	// Scale is the block-size granularity: every allocation is rounded
	// up to a multiple of Scale bytes.
	Scale int `mapstructure:"scale"`

	// FixedBlockSizeUnit is the size and alignment unit for block
	// allocations (asBlocks requests), which are rounded up to a multiple
	// of it and placed on a multiple of it.
	FixedBlockSizeUnit int `mapstructure:"fixed_block_size_unit"`

	// MainBlockSize is the size of a "fresh extent" bump-allocated the
	// first time no free block satisfies a request.
	MainBlockSize int `mapstructure:"main_block_size"`

	// FreeIndexCapacity bounds the number of released extents an
	// allocator tracks; when its list is full, the whole list is handed to
	// the global space manager and cleared. The global manager's own list
	// has the same bound and is cleared when full before the next add.
	FreeIndexCapacity int `mapstructure:"free_index_capacity"`
}

// StatementCache holds tunables for internal/statement.Cache.
type StatementCache struct {
	// Enabled is loaded and defaulted here but is not read by
	// internal/statement.Cache, which always reuses compiled statements.
	Enabled bool `mapstructure:"enabled"`
}

// BufferPool holds tunables for internal/bufferpool.GlobalPool.
type BufferPool struct {
	CapacityPages int `mapstructure:"capacity_pages"`
}

type Config struct {
	DataDir string `mapstructure:"data_dir"`

	Allocator      Allocator      `mapstructure:"allocator"`
	StatementCache StatementCache `mapstructure:"statement_cache"`
	BufferPool     BufferPool     `mapstructure:"buffer_pool"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "text" or "json"
}

func Defaults() Config {
	return Config{
		DataDir: "./data",
		Allocator: Allocator{
			Scale:              8,
			FixedBlockSizeUnit: 8,
			MainBlockSize:      1 << 16, // 64 KiB
			FreeIndexCapacity:  1024,
		},
		StatementCache: StatementCache{Enabled: true},
		BufferPool:     BufferPool{CapacityPages: 128},
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads configuration from the built-in defaults, the given file
// path (if non-empty), and environment variables prefixed RELAXDB_, in
// that order of increasing precedence: explicit file and env values win
// over Defaults(), and env values win over the file.
func Load(path string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("RELAXDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.MergeConfigMap(toMap(cfg)); err != nil {
		return Config{}, fmt.Errorf("config: seed defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return out, nil
}

func toMap(c Config) map[string]any {
	return map[string]any{
		"data_dir": c.DataDir,
		"allocator": map[string]any{
			"scale":                  c.Allocator.Scale,
			"fixed_block_size_unit":  c.Allocator.FixedBlockSizeUnit,
			"main_block_size":        c.Allocator.MainBlockSize,
			"free_index_capacity":    c.Allocator.FreeIndexCapacity,
		},
		"statement_cache": map[string]any{
			"enabled": c.StatementCache.Enabled,
		},
		"buffer_pool": map[string]any{
			"capacity_pages": c.BufferPool.CapacityPages,
		},
		"log_level":  c.LogLevel,
		"log_format": c.LogFormat,
	}
}
