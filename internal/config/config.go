// Package config provides configuration management for the cutpilot agent.
// Configuration is loaded from environment variables with sensible defaults;
// a .env file is read first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort               = 8790
	DefaultLogLevel           = "info"
	DefaultDataDir            = ".cutpilot"
	DefaultInferenceURL       = "http://localhost:8000"
	DefaultInferenceTimeout   = 120 * time.Second
	DefaultTicksPerSecond     = int64(254016000000)
	DefaultGapThreshold       = 0.5
	DefaultTrackIndex         = 0
	DefaultTrimMode           = "review"
	DefaultExportConcurrency  = 1
	DefaultAudioPreset        = "WAV.epr"
	DefaultAudioExportTimeout = 30 * time.Second
	DefaultBlockedIntents     = "lips_sync"

	// Environment variable names
	EnvPort               = "CUTPILOT_PORT"
	EnvLogLevel           = "CUTPILOT_LOG_LEVEL"
	EnvDataDir            = "CUTPILOT_DATA_DIR"
	EnvInferenceURL       = "CUTPILOT_INFERENCE_URL"
	EnvInferenceTimeout   = "CUTPILOT_INFERENCE_TIMEOUT"
	EnvTicksPerSecond     = "CUTPILOT_TICKS_PER_SECOND"
	EnvGapThreshold       = "CUTPILOT_GAP_THRESHOLD"
	EnvTrackIndex         = "CUTPILOT_TRACK_INDEX"
	EnvTrimMode           = "CUTPILOT_TRIM_MODE"
	EnvExportConcurrency  = "CUTPILOT_EXPORT_CONCURRENCY"
	EnvAudioPreset        = "CUTPILOT_AUDIO_PRESET"
	EnvAudioExportTimeout = "CUTPILOT_AUDIO_EXPORT_TIMEOUT"
	EnvBlockedIntents     = "CUTPILOT_BLOCKED_INTENTS"
	EnvHeadless           = "CUTPILOT_HEADLESS"
	EnvTimeline           = "CUTPILOT_TIMELINE"

	// Database filename
	DBFilename = "cutpilot.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	PresetDir() string
	InferenceURL() string
	InferenceTimeout() time.Duration
	TicksPerSecond() int64
	GapThreshold() float64
	TrackIndex() int
	TrimMode() string
	ExportConcurrency() int
	AudioPreset() string
	AudioExportTimeout() time.Duration
	BlockedIntents() []string
	Headless() bool
	Timeline() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port               int
	logLevel           string
	dataDir            string
	inferenceURL       string
	inferenceTimeout   time.Duration
	ticksPerSecond     int64
	gapThreshold       float64
	trackIndex         int
	trimMode           string
	exportConcurrency  int
	audioPreset        string
	audioExportTimeout time.Duration
	blockedIntents     []string
	headless           bool
	timeline           string
}

// Load reads envFile into the process environment, without overriding
// variables that are already set, then builds the config. A missing file is
// not an error.
func Load(envFile string) (*EnvConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return New()
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:               DefaultPort,
		logLevel:           DefaultLogLevel,
		dataDir:            defaultDataDir(),
		inferenceURL:       DefaultInferenceURL,
		inferenceTimeout:   DefaultInferenceTimeout,
		ticksPerSecond:     DefaultTicksPerSecond,
		gapThreshold:       DefaultGapThreshold,
		trackIndex:         DefaultTrackIndex,
		trimMode:           DefaultTrimMode,
		exportConcurrency:  DefaultExportConcurrency,
		audioPreset:        DefaultAudioPreset,
		audioExportTimeout: DefaultAudioExportTimeout,
		blockedIntents:     splitList(DefaultBlockedIntents),
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if u := os.Getenv(EnvInferenceURL); u != "" {
		cfg.inferenceURL = strings.TrimRight(u, "/")
	}

	if v := os.Getenv(EnvInferenceTimeout); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvInferenceTimeout, err)
		}
		cfg.inferenceTimeout = d
	}

	if v := os.Getenv(EnvTicksPerSecond); v != "" {
		tps, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTicksPerSecond, err)
		}
		if tps <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", EnvTicksPerSecond)
		}
		cfg.ticksPerSecond = tps
	}

	if v := os.Getenv(EnvGapThreshold); v != "" {
		g, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvGapThreshold, err)
		}
		if g <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", EnvGapThreshold)
		}
		cfg.gapThreshold = g
	}

	if v := os.Getenv(EnvTrackIndex); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTrackIndex, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", EnvTrackIndex)
		}
		cfg.trackIndex = n
	}

	if v := os.Getenv(EnvTrimMode); v != "" {
		v = strings.ToLower(v)
		if v != "review" && v != "apply" {
			return nil, fmt.Errorf("invalid %s: must be review or apply", EnvTrimMode)
		}
		cfg.trimMode = v
	}

	if v := os.Getenv(EnvExportConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvExportConcurrency, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("invalid %s: must be at least 1", EnvExportConcurrency)
		}
		cfg.exportConcurrency = n
	}

	if v := os.Getenv(EnvAudioPreset); v != "" {
		cfg.audioPreset = v
	}

	if v := os.Getenv(EnvAudioExportTimeout); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvAudioExportTimeout, err)
		}
		cfg.audioExportTimeout = d
	}

	if v, ok := os.LookupEnv(EnvBlockedIntents); ok {
		cfg.blockedIntents = splitList(v)
	}

	if v := os.Getenv(EnvHeadless); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = b
	}

	cfg.timeline = os.Getenv(EnvTimeline)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// PresetDir returns the directory export presets are read from when the host
// has no resource directory of its own.
func (c *EnvConfig) PresetDir() string {
	return filepath.Join(c.dataDir, "presets")
}

func (c *EnvConfig) InferenceURL() string {
	return c.inferenceURL
}

func (c *EnvConfig) InferenceTimeout() time.Duration {
	return c.inferenceTimeout
}

func (c *EnvConfig) TicksPerSecond() int64 {
	return c.ticksPerSecond
}

// GapThreshold returns the largest gap in seconds that still counts as a cut
func (c *EnvConfig) GapThreshold() float64 {
	return c.gapThreshold
}

func (c *EnvConfig) TrackIndex() int {
	return c.trackIndex
}

// TrimMode returns review or apply
func (c *EnvConfig) TrimMode() string {
	return c.trimMode
}

func (c *EnvConfig) ExportConcurrency() int {
	return c.exportConcurrency
}

func (c *EnvConfig) AudioPreset() string {
	return c.audioPreset
}

func (c *EnvConfig) AudioExportTimeout() time.Duration {
	return c.audioExportTimeout
}

// BlockedIntents returns tool names that are answered with an
// under-construction reply instead of being run
func (c *EnvConfig) BlockedIntents() []string {
	return append([]string(nil), c.blockedIntents...)
}

// Headless disables the system tray
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// Timeline returns the sandbox timeline file, empty when unset
func (c *EnvConfig) Timeline() string {
	return c.timeline
}

// parseDuration accepts Go durations ("90s") or bare seconds ("90").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
