package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vmitra/vmitra/internal/platform/id"
	"github.com/vmitra/vmitra/internal/platform/logging"
	"github.com/vmitra/vmitra/internal/services/business/matcher"
	"github.com/vmitra/vmitra/internal/services/business/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultLowStockThreshold   = 10
	defaultRecentActivityLimit = 10
	defaultTimezone            = "Asia/Kolkata"
)

var tracer = otel.Tracer("github.com/vmitra/vmitra/internal/services/business/app")

// Config tunes ledger behavior. Zero values fall back to defaults.
type Config struct {
	Location            *time.Location
	LowStockThreshold   int
	RecentActivityLimit int
	Dictionary          matcher.Dictionary
	Logger              *zap.Logger
	Clock               func() time.Time
	NewID               func() (string, error)
}

// Service orchestrates business ledger behavior over a store.
//
// Writers are serialized so a bill is priced against the same stock it
// later deducts.
type Service struct {
	store     storage.Store
	matcher   *matcher.Matcher
	location  *time.Location
	threshold int
	recent    int
	logger    *zap.Logger
	clock     func() time.Time
	newID     func() (string, error)

	writeMu sync.Mutex
}

// NewService constructs business use-cases.
func NewService(store storage.Store, cfg Config) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("business store is required")
	}
	location := cfg.Location
	if location == nil {
		loaded, err := time.LoadLocation(defaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %s: %w", defaultTimezone, err)
		}
		location = loaded
	}
	threshold := cfg.LowStockThreshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	recent := cfg.RecentActivityLimit
	if recent <= 0 {
		recent = defaultRecentActivityLimit
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store:     store,
		matcher:   matcher.New(cfg.Dictionary),
		location:  location,
		threshold: threshold,
		recent:    recent,
		logger:    logging.OrNop(cfg.Logger),
		clock:     clock,
		newID:     newID,
	}, nil
}

// LowStockThreshold returns the configured alert threshold.
func (s *Service) LowStockThreshold() int {
	return s.threshold
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "business."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
