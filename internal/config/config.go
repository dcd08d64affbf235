package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level, validated configuration object handed to the core.
type Config struct {
	Bot       BotConfig       `toml:"bot"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Radio     RadioConfig     `toml:"radio"`
	GCI       GCIConfig       `toml:"gci"`
	Session   SessionConfig   `toml:"session"`
	OpenAI    OpenAIConfig    `toml:"openai"`
	Storage   StorageConfig   `toml:"storage"`
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
}

// BotConfig identifies the controller on the radio network.
type BotConfig struct {
	Callsign  string `toml:"callsign"`
	Coalition string `toml:"coalition"` // "blue" or "red"
}

// TelemetryConfig configures the telemetry feed connection.
type TelemetryConfig struct {
	Host                 string `toml:"host"`
	Port                 int    `toml:"port"`
	Username             string `toml:"username"`
	Password             string `toml:"password"`
	StalenessWindowSecs  int    `toml:"staleness_window_secs"`
	EvictionIntervalSecs int    `toml:"eviction_interval_secs"`
	ReconnectInitialMs   int    `toml:"reconnect_initial_ms"`
	ReconnectMaxMs       int    `toml:"reconnect_max_ms"`
}

// StalenessWindow returns the track staleness window as a duration.
func (c TelemetryConfig) StalenessWindow() time.Duration {
	return time.Duration(c.StalenessWindowSecs) * time.Second
}

// EvictionInterval returns the maintenance cycle interval as a duration.
func (c TelemetryConfig) EvictionInterval() time.Duration {
	return time.Duration(c.EvictionIntervalSecs) * time.Second
}

// Addr returns the host:port address of the telemetry source.
func (c TelemetryConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RadioConfig configures the voice network transport.
type RadioConfig struct {
	URL                string `toml:"url"` // websocket endpoint, e.g. ws://host:5002/voice
	FrequencyHz        uint64 `toml:"frequency_hz"`
	ReconnectInitialMs int    `toml:"reconnect_initial_ms"`
	ReconnectMaxMs     int    `toml:"reconnect_max_ms"`
}

// Frequency returns the channel identity as used in radio events.
func (c RadioConfig) Frequency() string {
	return fmt.Sprintf("%d", c.FrequencyHz)
}

// GCIConfig holds tactical call parameters.
type GCIConfig struct {
	SearchRadiusNM float64 `toml:"search_radius_nm"`
}

// SessionConfig bounds each state of a radio session. ReceiveTimeoutSecs is
// the stuck-key guard; TransmitWaitSecs bounds the wait for a busy channel.
type SessionConfig struct {
	ReceiveTimeoutSecs    int `toml:"receive_timeout_secs"`
	TranscribeTimeoutSecs int `toml:"transcribe_timeout_secs"`
	SynthesizeTimeoutSecs int `toml:"synthesize_timeout_secs"`
	TransmitWaitSecs      int `toml:"transmit_wait_secs"`
}

// ReceiveTimeout returns the maximum transmission duration.
func (c SessionConfig) ReceiveTimeout() time.Duration {
	return time.Duration(c.ReceiveTimeoutSecs) * time.Second
}

// TranscribeTimeout returns the speech-to-text deadline.
func (c SessionConfig) TranscribeTimeout() time.Duration {
	return time.Duration(c.TranscribeTimeoutSecs) * time.Second
}

// SynthesizeTimeout returns the text-to-speech deadline.
func (c SessionConfig) SynthesizeTimeout() time.Duration {
	return time.Duration(c.SynthesizeTimeoutSecs) * time.Second
}

// TransmitWait returns the bounded wait for a busy channel.
func (c SessionConfig) TransmitWait() time.Duration {
	return time.Duration(c.TransmitWaitSecs) * time.Second
}

// OpenAIConfig configures the speech collaborators.
type OpenAIConfig struct {
	APIKey      string  `toml:"api_key"`
	STTModel    string  `toml:"stt_model"`
	TTSModel    string  `toml:"tts_model"`
	Voice       string  `toml:"voice"`
	SpeechSpeed float64 `toml:"speech_speed"`
	Language    string  `toml:"language"`
	TimeoutSecs int     `toml:"timeout_secs"`
}

// Timeout returns the HTTP timeout for collaborator calls.
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// StorageConfig configures call-log persistence.
type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// ServerConfig configures the status API server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port the API server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults.
// Endpoint and credential fields must still come from the config file.
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Callsign:  "Magic",
			Coalition: "blue",
		},
		Telemetry: TelemetryConfig{
			Port:                 42674,
			Username:             "co-gci",
			StalenessWindowSecs:  60,
			EvictionIntervalSecs: 5,
			ReconnectInitialMs:   500,
			ReconnectMaxMs:       30000,
		},
		Radio: RadioConfig{
			FrequencyHz:        251000000,
			ReconnectInitialMs: 500,
			ReconnectMaxMs:     30000,
		},
		GCI: GCIConfig{
			SearchRadiusNM: 150,
		},
		Session: SessionConfig{
			ReceiveTimeoutSecs:    30,
			TranscribeTimeoutSecs: 15,
			SynthesizeTimeoutSecs: 15,
			TransmitWaitSecs:      10,
		},
		OpenAI: OpenAIConfig{
			STTModel:    "whisper-1",
			TTSModel:    "tts-1",
			Voice:       "onyx",
			SpeechSpeed: 1.0,
			Language:    "en",
			TimeoutSecs: 30,
		},
		Storage: StorageConfig{
			DBPath: "co-gci.db",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8572,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads and validates the configuration file at the given path, applying
// defaults for anything the file leaves unset.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the core cannot run without.
func (c *Config) Validate() error {
	if c.Bot.Callsign == "" {
		return fmt.Errorf("bot.callsign is required")
	}
	switch strings.ToLower(c.Bot.Coalition) {
	case "blue", "red":
	default:
		return fmt.Errorf("bot.coalition must be \"blue\" or \"red\", got %q", c.Bot.Coalition)
	}
	if c.Telemetry.Host == "" {
		return fmt.Errorf("telemetry.host is required")
	}
	if c.Telemetry.Port <= 0 || c.Telemetry.Port > 65535 {
		return fmt.Errorf("telemetry.port must be in (0, 65535], got %d", c.Telemetry.Port)
	}
	if c.Telemetry.StalenessWindowSecs <= 0 {
		return fmt.Errorf("telemetry.staleness_window_secs must be positive")
	}
	if c.Radio.URL == "" {
		return fmt.Errorf("radio.url is required")
	}
	if c.Radio.FrequencyHz == 0 {
		return fmt.Errorf("radio.frequency_hz is required")
	}
	if c.GCI.SearchRadiusNM <= 0 {
		return fmt.Errorf("gci.search_radius_nm must be positive")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.OpenAI.SpeechSpeed < 0.25 || c.OpenAI.SpeechSpeed > 4.0 {
		return fmt.Errorf("openai.speech_speed must be in [0.25, 4.0], got %g", c.OpenAI.SpeechSpeed)
	}
	return nil
}
