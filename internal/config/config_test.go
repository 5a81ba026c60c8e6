package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "9100")
	t.Setenv("SESSION_FILE", "/tmp/spoved-test-session.toml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:9100" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if cfg.Services.Ticket != "http://localhost:9100/api/v1" {
		t.Errorf("ticket url = %q", cfg.Services.Ticket)
	}
	if cfg.Services.Automation != "" {
		t.Errorf("automation url should default to disabled, got %q", cfg.Services.Automation)
	}
	if cfg.Voice.MaxRecording != 10*time.Second {
		t.Errorf("max recording = %v", cfg.Voice.MaxRecording)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("jwt ttl = %v", cfg.JWTTTL)
	}
	if !cfg.AuthRequired {
		t.Error("auth should be required by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TICKET_API_URL", "http://tickets.internal/api/")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("VOICE_MAX_RECORDING", "2m")
	t.Setenv("AUTH_REQUIRED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Services.Ticket != "http://tickets.internal/api" {
		t.Errorf("ticket url = %q", cfg.Services.Ticket)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.Voice.MaxRecording != MaxRecording {
		t.Errorf("max recording should clamp to %v, got %v", MaxRecording, cfg.Voice.MaxRecording)
	}
	if cfg.AuthRequired {
		t.Error("AUTH_REQUIRED=false ignored")
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("VOICE_ARCHIVE_RATE", "fast")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric VOICE_ARCHIVE_RATE")
	}
}

func TestClampRecording(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{time.Second, MinRecording},
		{12 * time.Second, 12 * time.Second},
		{time.Hour, MaxRecording},
	}
	for _, tt := range tests {
		if got := ClampRecording(tt.in); got != tt.want {
			t.Errorf("ClampRecording(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "postgres ok", mutate: func(c *Config) {}},
		{name: "sqlite ok", mutate: func(c *Config) { c.DB.Driver = DriverSQLite }},
		{name: "sqlite without path", mutate: func(c *Config) { c.DB.Driver = DriverSQLite; c.DB.Path = "" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.DB.Driver = "mysql" }, wantErr: true},
		{name: "production default secret", mutate: func(c *Config) { c.AppEnv = "production" }, wantErr: true},
		{name: "bad archive rate", mutate: func(c *Config) { c.Voice.ArchiveRate = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
