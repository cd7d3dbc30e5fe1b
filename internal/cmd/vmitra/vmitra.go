// Package vmitra parses configuration for the vmitra server command and runs it.
package vmitra

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vmitra/vmitra/internal/app/server"
	platformcmd "github.com/vmitra/vmitra/internal/platform/cmd"
	"github.com/vmitra/vmitra/internal/platform/config"
	"github.com/vmitra/vmitra/internal/platform/i18n"
	"github.com/vmitra/vmitra/internal/platform/logging"
	"github.com/vmitra/vmitra/internal/platform/otel"
	"github.com/vmitra/vmitra/internal/services/auth/otp"
	"go.uber.org/zap"
)

// Config holds server command configuration.
type Config struct {
	HTTPAddr       string `env:"VMITRA_HTTP_ADDR"        envDefault:"localhost:8080"`
	GRPCPort       int    `env:"VMITRA_GRPC_PORT"        envDefault:"8081"`
	BusinessDBPath string `env:"VMITRA_BUSINESS_DB_PATH" envDefault:"data/business.db"`
	AuthDBPath     string `env:"VMITRA_AUTH_DB_PATH"     envDefault:"data/auth.db"`

	Timezone            string `env:"VMITRA_TIMEZONE"              envDefault:"Asia/Kolkata"`
	LowStockThreshold   int    `env:"VMITRA_LOW_STOCK_THRESHOLD"   envDefault:"10"`
	RecentActivityLimit int    `env:"VMITRA_RECENT_ACTIVITY_LIMIT" envDefault:"10"`
	SeedCatalog         bool   `env:"VMITRA_SEED_CATALOG"          envDefault:"true"`
	CORSOrigin          string `env:"VMITRA_CORS_ORIGIN"           envDefault:"*"`

	AuthRequired bool          `env:"VMITRA_AUTH_REQUIRED" envDefault:"true"`
	JWTSecret    string        `env:"VMITRA_JWT_SECRET"`
	TokenTTL     time.Duration `env:"VMITRA_TOKEN_TTL"     envDefault:"24h"`

	GeminiAPIKey   string        `env:"VMITRA_GEMINI_API_KEY"`
	SummaryModel   string        `env:"VMITRA_GEMINI_MODEL"       envDefault:"gemini-3-flash-preview"`
	AssistantModel string        `env:"VMITRA_ASSISTANT_MODEL"    envDefault:"gemini-2.5-flash"`
	Language       string        `env:"VMITRA_ASSISTANT_LANGUAGE" envDefault:"Hinglish"`
	ShopLocation   string        `env:"VMITRA_SHOP_LOCATION"      envDefault:"India"`
	OwnerName      string        `env:"VMITRA_OWNER_NAME"         envDefault:"Shivam ji"`
	SessionTTL     time.Duration `env:"VMITRA_SESSION_TTL"        envDefault:"30m"`

	LogLevel  string `env:"VMITRA_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"VMITRA_LOG_FORMAT" envDefault:"json"`

	OTP  otp.Config
	OTel otel.Config
}

// ParseConfig reads env through lookup, then lets flags override it.
func ParseConfig(fs *flag.FlagSet, args []string, lookup config.EnvLookup) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := platformcmd.ParseConfig(&cfg.OTel, lookup); err != nil {
		return Config{}, err
	}
	otpCfg, err := otp.LoadConfigFromEnv(lookup)
	if err != nil {
		return Config{}, err
	}
	cfg.OTP = otpCfg
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = config.FirstNonEmpty(lookup, "GEMINI_API_KEY", "API_KEY")
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The HTTP API address")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The gRPC health port (negative disables)")
	fs.StringVar(&cfg.BusinessDBPath, "business-db", cfg.BusinessDBPath, "Path to the business SQLite database")
	fs.StringVar(&cfg.AuthDBPath, "auth-db", cfg.AuthDBPath, "Path to the auth SQLite database")
	fs.BoolVar(&cfg.AuthRequired, "auth-required", cfg.AuthRequired, "Require a bearer token on business and assistant routes")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json or console)")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ServerConfig resolves names and durations into the server's config.
func (c Config) ServerConfig(logger *zap.Logger) (server.Config, error) {
	location, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return server.Config{}, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	lang, err := i18n.ParseLanguage(c.Language)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		HTTPAddr:            c.HTTPAddr,
		GRPCPort:            c.GRPCPort,
		BusinessDBPath:      c.BusinessDBPath,
		AuthDBPath:          c.AuthDBPath,
		Location:            location,
		LowStockThreshold:   c.LowStockThreshold,
		RecentActivityLimit: c.RecentActivityLimit,
		SeedCatalog:         c.SeedCatalog,
		CORSOrigin:          c.CORSOrigin,
		AuthRequired:        c.AuthRequired,
		JWTSecret:           []byte(c.JWTSecret),
		TokenTTL:            c.TokenTTL,
		OTP:                 c.OTP,
		GeminiAPIKey:        c.GeminiAPIKey,
		SummaryModel:        c.SummaryModel,
		AssistantModel:      c.AssistantModel,
		Language:            lang,
		ShopLocation:        c.ShopLocation,
		OwnerName:           c.OwnerName,
		SessionTTL:          c.SessionTTL,
		Logger:              logger,
	}, nil
}

// Run starts the server with tracing until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	serverCfg, err := cfg.ServerConfig(logger)
	if err != nil {
		return err
	}
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceServer, cfg.OTel, logger, func(ctx context.Context) error {
		return server.Run(ctx, serverCfg)
	})
}
