package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/biolock.db"

	// Biometric data
	EmbeddingsPath string // CBOR reference-embedding file
	UnknownDir     string // evidence image directory

	// Session controller
	FaceTimeoutSeconds    int
	UnknownGraceSeconds   int
	UnlockDurationSeconds int
	FaceMatchThreshold    float64

	// Acquisition cadence
	ScanIntervalMillis  int
	FrameIntervalMillis int

	// Evidence retention
	CaptureRetentionDays int // 0 = keep forever
	PruneIntervalHours   int // how often the pruner runs (default 6)
}

// fileConfig is the TOML layer. Every field is optional; env wins.
type fileConfig struct {
	HTTPAddr              string  `toml:"http_addr"`
	Env                   string  `toml:"env"`
	DBPath                string  `toml:"db_path"`
	EmbeddingsPath        string  `toml:"embeddings_path"`
	UnknownDir            string  `toml:"unknown_dir"`
	FaceTimeoutSeconds    int     `toml:"face_timeout_seconds"`
	UnknownGraceSeconds   int     `toml:"unknown_grace_seconds"`
	UnlockDurationSeconds int     `toml:"unlock_duration_seconds"`
	FaceMatchThreshold    float64 `toml:"face_match_threshold"`
	ScanIntervalMillis    int     `toml:"scan_interval_ms"`
	FrameIntervalMillis   int     `toml:"frame_interval_ms"`
	PruneIntervalHours    int     `toml:"prune_interval_hours"`

	// Pointer so the file can express 0 (retention disabled) as
	// distinct from unset.
	CaptureRetentionDays *int `toml:"capture_retention_days"`
}

// Load builds the configuration: defaults, then the TOML file at path
// (skipped when path is empty or the file does not exist), then
// BIOLOCK_* environment variables on top.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			applyFile(&cfg, fc)
		}
	}

	applyEnv(&cfg)

	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}
	if cfg.FaceMatchThreshold <= 0 || cfg.FaceMatchThreshold > 1 {
		cfg.FaceMatchThreshold = 0.6
	}

	return cfg, nil
}

// FromEnv is Load without a config file.
func FromEnv() Config {
	cfg, _ := Load("")
	return cfg
}

func defaults() Config {
	return Config{
		HTTPAddr:              "127.0.0.1:8080",
		Env:                   "dev",
		DBPath:                "./data/biolock.db",
		EmbeddingsPath:        "./data/embeddings.cbor",
		UnknownDir:            "./data/unknown",
		FaceTimeoutSeconds:    10,
		UnknownGraceSeconds:   2,
		UnlockDurationSeconds: 5,
		FaceMatchThreshold:    0.6,
		ScanIntervalMillis:    500,
		FrameIntervalMillis:   66,
		CaptureRetentionDays:  30,
		PruneIntervalHours:    6,
	}
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.HTTPAddr != "" {
		cfg.HTTPAddr = fc.HTTPAddr
	}
	if fc.Env != "" {
		cfg.Env = strings.ToLower(fc.Env)
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.EmbeddingsPath != "" {
		cfg.EmbeddingsPath = fc.EmbeddingsPath
	}
	if fc.UnknownDir != "" {
		cfg.UnknownDir = fc.UnknownDir
	}
	if fc.FaceTimeoutSeconds > 0 {
		cfg.FaceTimeoutSeconds = fc.FaceTimeoutSeconds
	}
	if fc.UnknownGraceSeconds > 0 {
		cfg.UnknownGraceSeconds = fc.UnknownGraceSeconds
	}
	if fc.UnlockDurationSeconds > 0 {
		cfg.UnlockDurationSeconds = fc.UnlockDurationSeconds
	}
	if fc.FaceMatchThreshold > 0 {
		cfg.FaceMatchThreshold = fc.FaceMatchThreshold
	}
	if fc.ScanIntervalMillis > 0 {
		cfg.ScanIntervalMillis = fc.ScanIntervalMillis
	}
	if fc.FrameIntervalMillis > 0 {
		cfg.FrameIntervalMillis = fc.FrameIntervalMillis
	}
	if fc.CaptureRetentionDays != nil && *fc.CaptureRetentionDays >= 0 {
		cfg.CaptureRetentionDays = *fc.CaptureRetentionDays
	}
	if fc.PruneIntervalHours > 0 {
		cfg.PruneIntervalHours = fc.PruneIntervalHours
	}
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenvDefault("BIOLOCK_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Env = strings.ToLower(getenvDefault("BIOLOCK_ENV", cfg.Env))
	cfg.DBPath = getenvDefault("BIOLOCK_DB_PATH", cfg.DBPath)
	cfg.EmbeddingsPath = getenvDefault("BIOLOCK_EMBEDDINGS_PATH", cfg.EmbeddingsPath)
	cfg.UnknownDir = getenvDefault("BIOLOCK_UNKNOWN_DIR", cfg.UnknownDir)

	cfg.FaceTimeoutSeconds = getenvInt("BIOLOCK_FACE_TIMEOUT_SECONDS", cfg.FaceTimeoutSeconds)
	cfg.UnknownGraceSeconds = getenvInt("BIOLOCK_UNKNOWN_GRACE_SECONDS", cfg.UnknownGraceSeconds)
	cfg.UnlockDurationSeconds = getenvInt("BIOLOCK_UNLOCK_DURATION_SECONDS", cfg.UnlockDurationSeconds)
	cfg.FaceMatchThreshold = getenvFloat("BIOLOCK_FACE_MATCH_THRESHOLD", cfg.FaceMatchThreshold)
	cfg.ScanIntervalMillis = getenvInt("BIOLOCK_SCAN_INTERVAL_MS", cfg.ScanIntervalMillis)
	cfg.FrameIntervalMillis = getenvInt("BIOLOCK_FRAME_INTERVAL_MS", cfg.FrameIntervalMillis)
	cfg.CaptureRetentionDays = getenvInt("BIOLOCK_CAPTURE_RETENTION_DAYS", cfg.CaptureRetentionDays)
	cfg.PruneIntervalHours = getenvInt("BIOLOCK_PRUNE_INTERVAL_HOURS", cfg.PruneIntervalHours)
}

// Duration accessors so callers don't repeat the unit conversions.

func (c Config) FaceTimeout() time.Duration {
	return time.Duration(c.FaceTimeoutSeconds) * time.Second
}

func (c Config) UnknownGrace() time.Duration {
	return time.Duration(c.UnknownGraceSeconds) * time.Second
}

func (c Config) UnlockDuration() time.Duration {
	return time.Duration(c.UnlockDurationSeconds) * time.Second
}

func (c Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMillis) * time.Millisecond
}

func (c Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMillis) * time.Millisecond
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}
