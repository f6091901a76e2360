// Package config loads the BARAS core's configuration snapshot, mirroring
// the teacher's config.Load(path) call in cmd/server/main.go. The core
// pipeline never re-reads viper itself; it is handed an immutable
// *Config at construction. The file is read once by Load; there is no
// reload, so a running process does not pick up later config changes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration snapshot for a BARAS agent process.
type Config struct {
	Logging     LoggingConfig
	Reader      ReaderConfig
	Effects     EffectsConfig
	Writer      WriterConfig
	Definitions DefinitionsConfig
	Analytics   AnalyticsConfig
	Transport   TransportConfig
	Backfill    BackfillConfig
}

// LoggingConfig controls the zap logger built by internal/logging.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// ReaderConfig tunes the memory-mapped tailing reader (§4.1).
type ReaderConfig struct {
	WatchDir      string
	PollInterval  time.Duration
	MaxLineBytes  int
	OffsetDir     string
}

// EffectsConfig carries the AoE-refresh tolerance window, called out in
// §9 Open Question 1 as a calibrated constant that should be
// configurable rather than hardcoded.
type EffectsConfig struct {
	AoeRefreshWindow time.Duration
	SweepInterval    time.Duration
}

// WriterConfig tunes the columnar writer (§4.6).
type WriterConfig struct {
	DataRoot        string
	RowGroupSize    int
	Compression     string // zstd, snappy, uncompressed
}

// DefinitionsConfig points at the declarative definitions tree (§4.7).
type DefinitionsConfig struct {
	Root string
}

// AnalyticsConfig configures the optional Postgres manifest mirror used
// by QueryEncounter (§6).
type AnalyticsConfig struct {
	Enabled bool
	DSN     string
}

// TransportConfig configures the websocket consumer boundary (§6
// RegisterConsumer/PollSignals).
type TransportConfig struct {
	ListenAddr     string
	ConsumerBuffer int
}

// BackfillConfig tunes the historical worker pool (§5 "Parallel
// background work").
type BackfillConfig struct {
	Workers int
}

// Load reads a YAML config file plus BARAS_-prefixed environment
// overrides, the way the teacher's config.Load backs cfg.Server /
// cfg.Logging / cfg.Database off a single viper instance.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BARAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Reader: ReaderConfig{
			WatchDir:     v.GetString("reader.watch_dir"),
			PollInterval: v.GetDuration("reader.poll_interval"),
			MaxLineBytes: v.GetInt("reader.max_line_bytes"),
			OffsetDir:    v.GetString("reader.offset_dir"),
		},
		Effects: EffectsConfig{
			AoeRefreshWindow: v.GetDuration("effects.aoe_refresh_window"),
			SweepInterval:    v.GetDuration("effects.sweep_interval"),
		},
		Writer: WriterConfig{
			DataRoot:     v.GetString("writer.data_root"),
			RowGroupSize: v.GetInt("writer.row_group_size"),
			Compression:  v.GetString("writer.compression"),
		},
		Definitions: DefinitionsConfig{
			Root: v.GetString("definitions.root"),
		},
		Analytics: AnalyticsConfig{
			Enabled: v.GetBool("analytics.enabled"),
			DSN:     v.GetString("analytics.dsn"),
		},
		Transport: TransportConfig{
			ListenAddr:     v.GetString("transport.listen_addr"),
			ConsumerBuffer: v.GetInt("transport.consumer_buffer"),
		},
		Backfill: BackfillConfig{
			Workers: v.GetInt("backfill.workers"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("reader.poll_interval", 250*time.Millisecond)
	v.SetDefault("reader.max_line_bytes", 64*1024)
	v.SetDefault("reader.offset_dir", "data/offsets")
	v.SetDefault("effects.aoe_refresh_window", 10*time.Millisecond)
	v.SetDefault("effects.sweep_interval", 500*time.Millisecond)
	v.SetDefault("writer.data_root", "data/encounters")
	v.SetDefault("writer.row_group_size", 8192)
	v.SetDefault("writer.compression", "zstd")
	v.SetDefault("definitions.root", "data/definitions")
	v.SetDefault("analytics.enabled", false)
	v.SetDefault("transport.listen_addr", ":8787")
	v.SetDefault("transport.consumer_buffer", 64)
	v.SetDefault("backfill.workers", 4)
}

func (c *Config) validate() error {
	if c.Effects.AoeRefreshWindow < 5*time.Millisecond || c.Effects.AoeRefreshWindow > 25*time.Millisecond {
		return fmt.Errorf("effects.aoe_refresh_window %s out of the calibrated 5-25ms range", c.Effects.AoeRefreshWindow)
	}
	if c.Writer.RowGroupSize <= 0 {
		return fmt.Errorf("writer.row_group_size must be positive")
	}
	return nil
}
