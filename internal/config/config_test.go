package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

const minimalConfig = `
[telemetry]
host = "dcs.example.com"

[radio]
url = "ws://srs.example.com:5002/voice"

[openai]
api_key = "sk-test"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Bot.Callsign != "Magic" {
		t.Errorf("default callsign = %q", cfg.Bot.Callsign)
	}
	if cfg.Telemetry.Addr() != "dcs.example.com:42674" {
		t.Errorf("telemetry addr = %q", cfg.Telemetry.Addr())
	}
	if cfg.Telemetry.StalenessWindow() != time.Minute {
		t.Errorf("staleness window = %s", cfg.Telemetry.StalenessWindow())
	}
	if cfg.Radio.Frequency() != "251000000" {
		t.Errorf("frequency = %q", cfg.Radio.Frequency())
	}
	if cfg.Session.ReceiveTimeout() != 30*time.Second {
		t.Errorf("receive timeout = %s", cfg.Session.ReceiveTimeout())
	}
	if cfg.Server.Addr() != "127.0.0.1:8572" {
		t.Errorf("server addr = %q", cfg.Server.Addr())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
[bot]
callsign = "Darkstar"
coalition = "red"

[gci]
search_radius_nm = 80.0
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bot.Callsign != "Darkstar" || cfg.Bot.Coalition != "red" {
		t.Errorf("bot = %+v", cfg.Bot)
	}
	if cfg.GCI.SearchRadiusNM != 80.0 {
		t.Errorf("search radius = %g", cfg.GCI.SearchRadiusNM)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("Load of missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty callsign", func(c *Config) { c.Bot.Callsign = "" }},
		{"bad coalition", func(c *Config) { c.Bot.Coalition = "green" }},
		{"missing telemetry host", func(c *Config) { c.Telemetry.Host = "" }},
		{"bad telemetry port", func(c *Config) { c.Telemetry.Port = 70000 }},
		{"missing radio url", func(c *Config) { c.Radio.URL = "" }},
		{"zero frequency", func(c *Config) { c.Radio.FrequencyHz = 0 }},
		{"zero search radius", func(c *Config) { c.GCI.SearchRadiusNM = 0 }},
		{"missing api key", func(c *Config) { c.OpenAI.APIKey = "" }},
		{"speech speed too fast", func(c *Config) { c.OpenAI.SpeechSpeed = 5.0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Telemetry.Host = "dcs.example.com"
			cfg.Radio.URL = "ws://srs.example.com:5002/voice"
			cfg.OpenAI.APIKey = "sk-test"
			if err := cfg.Validate(); err != nil {
				t.Fatalf("baseline config invalid: %v", err)
			}

			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}
