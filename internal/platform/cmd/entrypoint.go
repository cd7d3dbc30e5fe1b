// Package cmd holds startup helpers shared by the vmitra commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/vmitra/vmitra/internal/platform/config"
	"github.com/vmitra/vmitra/internal/platform/logging"
	"github.com/vmitra/vmitra/internal/platform/otel"
	"go.uber.org/zap"
)

const defaultOTelShutdownTimeout = 5 * time.Second

// Service identifiers used for telemetry resource names.
const (
	ServiceServer = "vmitra"
	ServiceCtl    = "vmitractl"
)

// ParseConfig loads environment defaults into cfg through lookup.
func ParseConfig[T any](cfg *T, lookup config.EnvLookup) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnvWith(cfg, lookup)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry configures tracing and executes a service run loop.
func RunWithTelemetry(ctx context.Context, service string, cfg otel.Config, logger *zap.Logger, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	logger = logging.OrNop(logger)

	shutdown, err := otel.Setup(ctx, service, cfg)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultOTelShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", zap.String("service", service), zap.Error(err))
		}
	}()
	return run(ctx)
}
