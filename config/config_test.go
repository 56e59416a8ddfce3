package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.QRPollAttempts != 20 {
		t.Errorf("QRPollAttempts = %d, want 20", cfg.QRPollAttempts)
	}
	if cfg.QRPollInterval != time.Second {
		t.Errorf("QRPollInterval = %v, want 1s", cfg.QRPollInterval)
	}
	if cfg.AuthPollAttempts != 30 {
		t.Errorf("AuthPollAttempts = %d, want 30", cfg.AuthPollAttempts)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_DIR", t.TempDir())
	t.Setenv("PORT", "9999")
	t.Setenv("WHATSAPP_INSTANCE_ID", "inst-1")
	t.Setenv("WHATSAPP_API_TOKEN", "tok-1")
	t.Setenv("QR_POLL_ATTEMPTS", "3")
	t.Setenv("AUTH_POLL_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.InstanceID != "inst-1" || cfg.APIToken != "tok-1" {
		t.Errorf("credentials = %q/%q", cfg.InstanceID, cfg.APIToken)
	}
	if cfg.QRPollAttempts != 3 {
		t.Errorf("QRPollAttempts = %d", cfg.QRPollAttempts)
	}
	if cfg.AuthPollInterval != 250*time.Millisecond {
		t.Errorf("AuthPollInterval = %v", cfg.AuthPollInterval)
	}
}
