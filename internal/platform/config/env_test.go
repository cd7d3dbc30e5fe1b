package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int    `env:"VMITRA_TEST_PORT" envDefault:"123"`
	Name string `env:"VMITRA_TEST_NAME" envDefault:"dukaan"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("VMITRA_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvWithLookup(t *testing.T) {
	var cfg envTestConfig
	lookup := func(key string) (string, bool) {
		if key == "VMITRA_TEST_PORT" {
			return "9090", true
		}
		return "", false
	}

	if err := ParseEnvWith(&cfg, lookup); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.Name != "dukaan" {
		t.Fatalf("expected default name, got %q", cfg.Name)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	lookup := func(key string) (string, bool) {
		switch key {
		case "A":
			return "  ", true
		case "B":
			return " key-b ", true
		}
		return "", false
	}
	if got := FirstNonEmpty(lookup, "A", "B", "C"); got != "key-b" {
		t.Fatalf("FirstNonEmpty = %q", got)
	}
	if got := FirstNonEmpty(nil, "A"); got != "" {
		t.Fatalf("FirstNonEmpty(nil) = %q", got)
	}
}
