package sshtransport

import "testing"

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Host: "192.168.1.10", User: "pi"}
	cfg.applyDefaults()

	if cfg.Port != 22 {
		t.Fatalf("expected default port 22, got %d", cfg.Port)
	}
	if cfg.Timeout == 0 {
		t.Fatalf("expected non-zero default timeout")
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing host", Config{User: "pi"}},
		{"missing user", Config{Host: "192.168.1.10"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.applyDefaults()
			if err := tc.cfg.validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestDialRejectsInvalidConfig(t *testing.T) {
	if _, err := Dial(Config{}); err == nil {
		t.Fatalf("expected error for empty config")
	}
}
