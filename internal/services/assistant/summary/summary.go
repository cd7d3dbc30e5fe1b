// Package summary produces the dashboard's one-line business update.
package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/vmitra/vmitra/internal/platform/logging"
	"github.com/vmitra/vmitra/internal/services/assistant/model"
	"github.com/vmitra/vmitra/internal/services/assistant/prompt"
	businessapp "github.com/vmitra/vmitra/internal/services/business/app"
	"github.com/vmitra/vmitra/internal/services/business/money"
	"go.uber.org/zap"
)

const (
	// MaxTries is one call plus two retries on quota errors.
	MaxTries = 3
	// InitialDelay is the wait before the first retry; later waits double.
	InitialDelay = 4 * time.Second

	// QuotaMessage is shown while the key is rate limited.
	QuotaMessage = "AI Busy hai. Unlimited use ke liye apni Pro Key lagayein."
)

// StatsSource provides today's figures.
type StatsSource interface {
	Stats(ctx context.Context) (businessapp.Stats, error)
}

// Result is the rendered summary plus flags the dashboard reacts to.
type Result struct {
	Text          string      `json:"text"`
	Sales         money.Money `json:"sales"`
	Profit        money.Money `json:"profit"`
	Alerts        []string    `json:"alerts"`
	QuotaExceeded bool        `json:"quotaExceeded"`
	KeyInvalid    bool        `json:"keyInvalid"`
	Fallback      bool        `json:"fallback"`
}

// Config wires optional collaborators.
type Config struct {
	// Model is nil when no API key is configured.
	Model  model.Model
	Logger *zap.Logger
	// NewBackOff overrides the retry schedule.
	NewBackOff func() backoff.BackOff
}

// Summarizer renders dashboard summaries.
type Summarizer struct {
	stats      StatsSource
	model      model.Model
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// New builds a summarizer over stats.
func New(stats StatsSource, cfg Config) (*Summarizer, error) {
	if stats == nil {
		return nil, fmt.Errorf("stats source is required")
	}
	if cfg.NewBackOff == nil {
		cfg.NewBackOff = defaultBackOff
	}
	return &Summarizer{
		stats:      stats,
		model:      cfg.Model,
		logger:     logging.OrNop(cfg.Logger),
		newBackOff: cfg.NewBackOff,
	}, nil
}

func defaultBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Minute,
	}
	b.Reset()
	return b
}

// Summarize asks the model for today's update. Model failures never fail
// the call; they select a fallback text instead.
func (s *Summarizer) Summarize(ctx context.Context) (Result, error) {
	stats, err := s.stats.Stats(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load stats: %w", err)
	}
	result := Result{
		Sales:  stats.TodaySales,
		Profit: stats.TodayProfit,
		Alerts: stats.LowStockItems,
	}
	if s.model == nil {
		result.Text = statsLine(stats)
		result.Fallback = true
		return result, nil
	}

	req := model.Request{Messages: []model.Message{
		model.TextMessage(model.RoleUser, prompt.Summary(stats.TodaySales, stats.TodayProfit, stats.LowStockItems)),
	}}
	attempt := 0
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		resp, err := s.model.Generate(ctx, req)
		if err == nil {
			return resp.Text, nil
		}
		if model.IsQuota(err) {
			return "", err
		}
		return "", backoff.Permanent(err)
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(MaxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.logger.Warn("summary quota retry", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		}),
	)

	switch {
	case err == nil && text != "":
		result.Text = text
	case err == nil:
		result.Text = "Nafa " + stats.TodayProfit.String() + " hai. Hisaab clear hai!"
		result.Fallback = true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Result{}, err
	case model.IsQuota(err):
		s.logger.Warn("summary quota exhausted", zap.Int("attempts", attempt), zap.Error(err))
		result.Text = QuotaMessage
		result.QuotaExceeded = true
		result.Fallback = true
	case model.IsKeyInvalid(err):
		s.logger.Warn("summary key rejected", zap.Error(err))
		result.Text = statsLine(stats)
		result.KeyInvalid = true
		result.Fallback = true
	default:
		s.logger.Warn("summary failed", zap.Error(err))
		result.Text = statsLine(stats)
		result.Fallback = true
	}
	return result, nil
}

func statsLine(stats businessapp.Stats) string {
	return "Sale: " + stats.TodaySales.String() + " | Nafa: " + stats.TodayProfit.String()
}
