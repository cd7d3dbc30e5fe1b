package vmitra

import (
	"flag"
	"testing"
	"time"

	"github.com/vmitra/vmitra/internal/platform/i18n"
)

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("vmitra", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil, lookupFrom(nil))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "localhost:8080" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.GRPCPort != 8081 {
		t.Fatalf("expected default grpc port 8081, got %d", cfg.GRPCPort)
	}
	if !cfg.AuthRequired || !cfg.SeedCatalog {
		t.Fatalf("expected auth and seeding on by default, got %+v", cfg)
	}
	if cfg.SessionTTL != 30*time.Minute || cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected ttls session=%v token=%v", cfg.SessionTTL, cfg.TokenTTL)
	}
	if cfg.OTP.FixedCode != "123456" {
		t.Fatalf("expected development otp, got %q", cfg.OTP.FixedCode)
	}
	if cfg.SummaryModel != "gemini-3-flash-preview" || cfg.AssistantModel != "gemini-2.5-flash" {
		t.Fatalf("unexpected models %q %q", cfg.SummaryModel, cfg.AssistantModel)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	lookup := lookupFrom(map[string]string{
		"VMITRA_HTTP_ADDR":      "env-http",
		"VMITRA_AUTH_REQUIRED":  "false",
		"VMITRA_OTP_FIXED_CODE": "",
		"VMITRA_OTEL_ENDPOINT":  "http://collector:4318",
		"GEMINI_API_KEY":        "fallback-key",
	})
	fs := flag.NewFlagSet("vmitra", flag.ContinueOnError)
	args := []string{"-http-addr", "flag-http", "-grpc-port", "-1"}
	cfg, err := ParseConfig(fs, args, lookup)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-http" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.GRPCPort != -1 {
		t.Fatalf("expected grpc disabled, got %d", cfg.GRPCPort)
	}
	if cfg.AuthRequired {
		t.Fatal("expected auth disabled from env")
	}
	if cfg.OTP.FixedCode != "" {
		t.Fatalf("expected random otp codes, got %q", cfg.OTP.FixedCode)
	}
	if cfg.OTel.Endpoint != "http://collector:4318" {
		t.Fatalf("expected otel endpoint, got %q", cfg.OTel.Endpoint)
	}
	if cfg.GeminiAPIKey != "fallback-key" {
		t.Fatalf("expected fallback api key, got %q", cfg.GeminiAPIKey)
	}
}

func TestParseConfigRejectsBadOTP(t *testing.T) {
	fs := flag.NewFlagSet("vmitra", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil, lookupFrom(map[string]string{"VMITRA_OTP_FIXED_CODE": "12ab"})); err == nil {
		t.Fatal("expected malformed otp to fail")
	}
}

func TestServerConfig(t *testing.T) {
	fs := flag.NewFlagSet("vmitra", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil, lookupFrom(map[string]string{"VMITRA_ASSISTANT_LANGUAGE": "gu-IN"}))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	serverCfg, err := cfg.ServerConfig(nil)
	if err != nil {
		t.Fatalf("server config: %v", err)
	}
	if serverCfg.Language != i18n.Gujarati {
		t.Fatalf("expected Gujarati, got %q", serverCfg.Language)
	}
	if serverCfg.Location.String() != "Asia/Kolkata" {
		t.Fatalf("expected Asia/Kolkata, got %s", serverCfg.Location)
	}

	cfg.Timezone = "Mars/Olympus"
	if _, err := cfg.ServerConfig(nil); err == nil {
		t.Fatal("expected unknown timezone to fail")
	}
}
