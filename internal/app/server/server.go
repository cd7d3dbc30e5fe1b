// Package server hosts the V-Mitra HTTP API and its gRPC health endpoint.
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	platformgrpc "github.com/vmitra/vmitra/internal/platform/grpc"
	"github.com/vmitra/vmitra/internal/platform/httpx"
	"github.com/vmitra/vmitra/internal/platform/i18n"
	"github.com/vmitra/vmitra/internal/platform/logging"
	"github.com/vmitra/vmitra/internal/platform/timeouts"
	assistanthttp "github.com/vmitra/vmitra/internal/services/assistant/api/httpapi"
	"github.com/vmitra/vmitra/internal/services/assistant/gemini"
	"github.com/vmitra/vmitra/internal/services/assistant/model"
	"github.com/vmitra/vmitra/internal/services/assistant/session"
	"github.com/vmitra/vmitra/internal/services/assistant/summary"
	authhttp "github.com/vmitra/vmitra/internal/services/auth/api/httpapi"
	authapp "github.com/vmitra/vmitra/internal/services/auth/app"
	"github.com/vmitra/vmitra/internal/services/auth/otp"
	authsqlite "github.com/vmitra/vmitra/internal/services/auth/storage/sqlite"
	"github.com/vmitra/vmitra/internal/services/auth/token"
	businesshttp "github.com/vmitra/vmitra/internal/services/business/api/httpapi"
	businessapp "github.com/vmitra/vmitra/internal/services/business/app"
	"github.com/vmitra/vmitra/internal/services/business/catalog"
	businesssqlite "github.com/vmitra/vmitra/internal/services/business/storage/sqlite"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// Health service names reported by the gRPC endpoint.
const (
	HealthBusiness  = "vmitra.business"
	HealthAuth      = "vmitra.auth"
	HealthAssistant = "vmitra.assistant"
)

// Config is the resolved server configuration.
type Config struct {
	HTTPAddr string
	// GRPCPort 0 picks a free port; a negative port disables gRPC.
	GRPCPort       int
	BusinessDBPath string
	AuthDBPath     string

	Location            *time.Location
	LowStockThreshold   int
	RecentActivityLimit int
	SeedCatalog         bool
	CORSOrigin          string

	AuthRequired bool
	JWTSecret    []byte
	TokenTTL     time.Duration
	OTP          otp.Config

	GeminiAPIKey   string
	SummaryModel   string
	AssistantModel string
	Language       i18n.Language
	ShopLocation   string
	OwnerName      string
	SessionTTL     time.Duration

	Logger *zap.Logger
	// Models overrides the Gemini clients, mainly for tests.
	Models *Models
}

// Models are the generators used by the summary and the live sessions.
type Models struct {
	Summary   model.Model
	Assistant model.Model
}

// Server hosts every V-Mitra surface in one process.
type Server struct {
	logger *zap.Logger

	grpcListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
	httpListener net.Listener
	httpServer   *http.Server

	business      *businessapp.Service
	auth          *authapp.Service
	businessStore *businesssqlite.Store
	authStore     *authsqlite.Store
	sessions      *session.Registry
}

// New opens the stores, wires the services, and binds both listeners.
func New(ctx context.Context, cfg Config) (srv *Server, err error) {
	logger := logging.OrNop(cfg.Logger)
	s := &Server{logger: logger}
	defer func() {
		if err != nil {
			if s.httpListener != nil {
				_ = s.httpListener.Close()
			}
			if s.grpcListener != nil {
				_ = s.grpcListener.Close()
			}
			s.close()
		}
	}()

	s.businessStore, err = openBusinessStore(cfg.BusinessDBPath)
	if err != nil {
		return nil, err
	}
	s.authStore, err = openAuthStore(cfg.AuthDBPath)
	if err != nil {
		return nil, err
	}

	s.business, err = businessapp.NewService(s.businessStore, businessapp.Config{
		Location:            cfg.Location,
		LowStockThreshold:   cfg.LowStockThreshold,
		RecentActivityLimit: cfg.RecentActivityLimit,
		Logger:              logger.Named("business"),
	})
	if err != nil {
		return nil, fmt.Errorf("build business service: %w", err)
	}
	if cfg.SeedCatalog {
		if err := seedCatalog(ctx, s.business, logger); err != nil {
			return nil, err
		}
	}

	secret, err := resolveSecret(cfg, logger)
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewManager(token.Config{Secret: secret, TTL: cfg.TokenTTL})
	if err != nil {
		return nil, fmt.Errorf("build token manager: %w", err)
	}
	s.auth, err = authapp.NewService(s.authStore, tokens, authapp.Config{
		OTP:    cfg.OTP,
		Logger: logger.Named("auth"),
	})
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}

	models, err := resolveModels(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.sessions, err = session.NewRegistry(s.business, session.Config{
		Model:         models.Assistant,
		Language:      cfg.Language,
		Location:      cfg.ShopLocation,
		Owner:         cfg.OwnerName,
		TTL:           cfg.SessionTTL,
		SweepInterval: timeouts.Janitor,
		Logger:        logger.Named("assistant"),
	})
	if err != nil {
		return nil, fmt.Errorf("build session registry: %w", err)
	}
	summarizer, err := summary.New(s.business, summary.Config{
		Model:  models.Summary,
		Logger: logger.Named("summary"),
	})
	if err != nil {
		return nil, fmt.Errorf("build summarizer: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	authHandler := authhttp.NewHandler(s.auth)
	protect := authHandler.Middleware(cfg.AuthRequired)
	authHandler.Register(mux, authHandler.Middleware(true))
	businesshttp.NewHandler(s.business).Register(mux, protect)
	assistanthttp.NewHandler(s.sessions, summarizer, logger.Named("assistant")).Register(mux, protect)

	s.httpListener, err = net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}
	s.httpServer = &http.Server{
		Handler: httpx.Chain(mux,
			httpx.RequestID(),
			httpx.RecoverPanic(logger),
			httpx.Trace(),
			httpx.AccessLog(logger.Named("http")),
			httpx.CORS(cfg.CORSOrigin),
		),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	if cfg.GRPCPort >= 0 {
		s.grpcListener, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			return nil, fmt.Errorf("listen on port %d: %w", cfg.GRPCPort, err)
		}
		s.grpcServer, s.health = platformgrpc.NewHealthServer(HealthBusiness, HealthAuth, HealthAssistant)
	}
	return s, nil
}

// Run creates and serves a server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	srv, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// HTTPAddr returns the bound HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Serve blocks until the context ends or a listener fails. Live assistant
// sessions are saved before the stores close.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.close()

	group, groupCtx := errgroup.WithContext(ctx)
	s.logger.Info("http server listening", zap.String("addr", s.HTTPAddr()))
	group.Go(func() error {
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	if s.grpcServer != nil {
		s.logger.Info("grpc health listening", zap.String("addr", s.GRPCAddr()))
		group.Go(func() error {
			if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve gRPC: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return s.sessions.Run(groupCtx)
	})
	group.Go(func() error {
		s.purgeOTPs(groupCtx)
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return s.shutdown()
	})
	return group.Wait()
}

// purgeOTPs drops expired codes until ctx ends.
func (s *Server) purgeOTPs(ctx context.Context) {
	ticker := time.NewTicker(timeouts.OTPPurge)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := s.auth.PurgeExpiredOTPs(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("purge expired otps", zap.Error(err))
				}
				continue
			}
			if purged > 0 {
				s.logger.Debug("purged expired otps", zap.Int64("count", purged))
			}
		}
	}
}

func (s *Server) shutdown() error {
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	var errs []error
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown HTTP: %w", err))
	}
	if err := s.sessions.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("save live sessions: %w", err))
	}
	s.logger.Info("server stopped")
	return errors.Join(errs...)
}

func (s *Server) close() {
	if s.businessStore != nil {
		if err := s.businessStore.Close(); err != nil {
			s.logger.Warn("close business store", zap.Error(err))
		}
	}
	if s.authStore != nil {
		if err := s.authStore.Close(); err != nil {
			s.logger.Warn("close auth store", zap.Error(err))
		}
	}
}

func seedCatalog(ctx context.Context, business *businessapp.Service, logger *zap.Logger) error {
	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("load default catalog: %w", err)
	}
	seeded, err := business.SeedIfEmpty(ctx, cat)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if seeded {
		logger.Info("seeded empty inventory", zap.Int("items", len(cat.Items)))
	}
	return nil
}

// resolveSecret returns the signing key. Without one, an open server signs
// with a per-process random key so tokens die with the process.
func resolveSecret(cfg Config, logger *zap.Logger) ([]byte, error) {
	if len(cfg.JWTSecret) > 0 {
		return cfg.JWTSecret, nil
	}
	if cfg.AuthRequired {
		return nil, fmt.Errorf("jwt secret is required when auth is required")
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate jwt secret: %w", err)
	}
	logger.Warn("using ephemeral jwt secret")
	return secret, nil
}

func resolveModels(ctx context.Context, cfg Config, logger *zap.Logger) (Models, error) {
	if cfg.Models != nil {
		return *cfg.Models, nil
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		logger.Warn("gemini api key not configured; assistant disabled")
		return Models{}, nil
	}
	summaryModel, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.SummaryModel)
	if err != nil {
		return Models{}, fmt.Errorf("build summary model: %w", err)
	}
	assistantModel, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.AssistantModel)
	if err != nil {
		return Models{}, fmt.Errorf("build assistant model: %w", err)
	}
	return Models{Summary: withTimeout(summaryModel), Assistant: withTimeout(assistantModel)}, nil
}

// withTimeout caps every model round trip.
func withTimeout(next model.Model) model.Model {
	return model.ModelFunc(func(ctx context.Context, req model.Request) (model.Response, error) {
		ctx, cancel := context.WithTimeout(ctx, timeouts.AssistantCall)
		defer cancel()
		return next.Generate(ctx, req)
	})
}

func openBusinessStore(path string) (*businesssqlite.Store, error) {
	path = dbPath(path, "business.db")
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	store, err := businesssqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open business sqlite store: %w", err)
	}
	return store, nil
}

func openAuthStore(path string) (*authsqlite.Store, error) {
	path = dbPath(path, "auth.db")
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	store, err := authsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open auth sqlite store: %w", err)
	}
	return store, nil
}

func dbPath(path, name string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return filepath.Join("data", name)
	}
	return path
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	return nil
}
