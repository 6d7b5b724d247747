package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the complete engine configuration
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Logging       LoggingConfig       `toml:"logging"`
	Storage       StorageConfig       `toml:"storage"`
	VAD           VADConfig           `toml:"vad"`
	Playback      PlaybackConfig      `toml:"playback"`
	Transcription TranscriptionConfig `toml:"transcription"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Host                string   `toml:"host"`
	Port                int      `toml:"port"`
	CORSAllowedOrigins  []string `toml:"cors_allowed_origins"`
	ReadTimeoutSeconds  int      `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `toml:"write_timeout_seconds"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, console
}

// StorageConfig represents the project storage configuration
type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// VADConfig represents the default voice-activity-detection settings.
// Individual analysis requests may override any of these.
type VADConfig struct {
	EnergyThreshold      float64 `toml:"energy_threshold"`        // sensitivity, 0.01-0.50
	MinSegmentDurationMs int     `toml:"min_segment_duration_ms"` // minimum segment length
	MinSilenceDurationMs int     `toml:"min_silence_duration_ms"` // minimum silence gap kept
	FrameSizeMs          int     `toml:"frame_size_ms"`           // 10, 20 or 30
	PaddingMs            int     `toml:"padding_ms"`              // 0-500, per speech edge
}

// PlaybackConfig represents the playback scheduler configuration
type PlaybackConfig struct {
	TickRateHz    int     `toml:"tick_rate_hz"`    // control loop cadence
	SkipEpsilonMs float64 `toml:"skip_epsilon_ms"` // jump size that forces a source restart
}

// TranscriptionConfig represents the external speech-recognition configuration
type TranscriptionConfig struct {
	OpenAIAPIKey   string `toml:"openai_api_key"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                "127.0.0.1",
			Port:                8844,
			CORSAllowedOrigins:  []string{"*"},
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			DBPath: "scrubs.db",
		},
		VAD: VADConfig{
			EnergyThreshold:      0.01,
			MinSegmentDurationMs: 100,
			MinSilenceDurationMs: 300,
			FrameSizeMs:          30,
			PaddingMs:            150,
		},
		Playback: PlaybackConfig{
			TickRateHz:    60,
			SkipEpsilonMs: 50,
		},
		Transcription: TranscriptionConfig{
			Model:          "whisper-1",
			TimeoutSeconds: 120,
		},
	}
}

// Load loads the configuration from a TOML file, applying defaults for
// anything the file does not set. A missing file returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for out-of-range values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Playback.TickRateHz <= 0 {
		return fmt.Errorf("invalid playback tick rate: %d", c.Playback.TickRateHz)
	}
	if c.Playback.SkipEpsilonMs <= 0 {
		return fmt.Errorf("invalid playback skip epsilon: %f", c.Playback.SkipEpsilonMs)
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage db_path must not be empty")
	}
	return nil
}
