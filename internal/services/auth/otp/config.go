package otp

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vmitra/vmitra/internal/platform/config"
)

const (
	// FixedCodeEnv names the variable holding the development code.
	FixedCodeEnv = "VMITRA_OTP_FIXED_CODE"
	// DefaultFixedCode is used when FixedCodeEnv is unset.
	DefaultFixedCode = "123456"
	// DefaultTTL bounds how long an issued code stays valid.
	DefaultTTL = 10 * time.Minute
)

// Config controls code lifetime and whether codes are random.
//
// An empty FixedCode means every code is drawn from crypto/rand.
type Config struct {
	TTL       time.Duration `env:"VMITRA_OTP_TTL"        envDefault:"10m"`
	FixedCode string        `env:"VMITRA_OTP_FIXED_CODE"`
}

// LoadConfigFromEnv reads OTP configuration through lookup.
//
// An unset fixed code falls back to DefaultFixedCode; setting the variable
// to an empty string switches to random codes.
func LoadConfigFromEnv(lookup config.EnvLookup) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var cfg Config
	if err := config.ParseEnvWith(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if _, ok := lookup(FixedCodeEnv); !ok {
		cfg.FixedCode = DefaultFixedCode
	}
	cfg.FixedCode = strings.TrimSpace(cfg.FixedCode)
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FixedCode != "" && !validCode(cfg.FixedCode) {
		return Config{}, fmt.Errorf("%s must be %d digits", FixedCodeEnv, CodeLength)
	}
	return cfg, nil
}
