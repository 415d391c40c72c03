package config

import (
	"testing"
	"time"
)

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset", "", 5 * time.Second},
		{"go duration", "750ms", 750 * time.Millisecond},
		{"bare seconds", "30", 30 * time.Second},
		{"garbage", "soon", 5 * time.Second},
		{"negative", "-3s", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_POLL_INTERVAL", tt.value)
			if got := getEnvDuration("TEST_POLL_INTERVAL", 5*time.Second); got != tt.want {
				t.Fatalf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ADMIN_ID", "")
	t.Setenv("BADGE_POLL_INTERVAL", "")

	cfg := Load()
	if cfg.AdminID != 1 {
		t.Errorf("AdminID = %d, want 1", cfg.AdminID)
	}
	if cfg.BadgePollInterval != 5*time.Second {
		t.Errorf("BadgePollInterval = %v, want 5s", cfg.BadgePollInterval)
	}
	if cfg.SendTimeout != 5*time.Second {
		t.Errorf("SendTimeout = %v, want 5s", cfg.SendTimeout)
	}
	if cfg.PendingTolerance != 10*time.Second {
		t.Errorf("PendingTolerance = %v, want 10s", cfg.PendingTolerance)
	}
}
