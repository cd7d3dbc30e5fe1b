// Package session runs text conversations with the assistant. Each turn
// may call ledger tools; ending a session saves its transcript as chat
// history.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/platform/i18n"
	"github.com/vmitra/vmitra/internal/platform/id"
	"github.com/vmitra/vmitra/internal/platform/logging"
	"github.com/vmitra/vmitra/internal/services/assistant/model"
	"github.com/vmitra/vmitra/internal/services/assistant/prompt"
	businessapp "github.com/vmitra/vmitra/internal/services/business/app"
	"github.com/vmitra/vmitra/internal/services/business/history"
	"github.com/vmitra/vmitra/internal/services/business/inventory"
	"github.com/vmitra/vmitra/internal/services/business/sale"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// MaxToolRounds bounds how many times one turn executes tool calls.
	MaxToolRounds = 4
	// DefaultTTL is how long an idle session survives.
	DefaultTTL = 30 * time.Minute
)

var tracer = otel.Tracer("github.com/vmitra/vmitra/internal/services/assistant/session")

var (
	// ErrNotFound indicates an unknown or already ended session.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "session not found")
	// ErrEmptyTurn indicates a turn without text.
	ErrEmptyTurn = apperrors.New(apperrors.CodeAssistantEmptyTurn, "turn text is required")
	// ErrNoModel indicates no API key was configured.
	ErrNoModel = apperrors.New(apperrors.CodeAssistantKeyInvalid, "AI key is not configured")
)

// Ledger is the business surface the assistant acts on.
type Ledger interface {
	RecordSale(ctx context.Context, requests []sale.Request, paymentMethod string) (businessapp.SaleResult, error)
	Restock(ctx context.Context, requests []inventory.RestockRequest) (businessapp.RestockResult, error)
	AddChatSession(ctx context.Context, messages []history.Message) (history.ChatSession, error)
}

// Config tunes the registry. Zero values fall back to defaults.
type Config struct {
	Model    model.Model
	Language i18n.Language
	Location string
	Owner    string
	TTL      time.Duration
	// SweepInterval is how often Run expires idle sessions.
	SweepInterval time.Duration
	Logger        *zap.Logger
	Clock         func() time.Time
	NewID         func() (string, error)
}

// Info describes a live session.
type Info struct {
	ID        string        `json:"id"`
	Language  i18n.Language `json:"language"`
	Location  string        `json:"location"`
	StartedAt time.Time     `json:"startedAt"`
}

// TurnResult is the assistant's answer to one user turn.
type TurnResult struct {
	SessionID string        `json:"sessionId"`
	Text      string        `json:"text"`
	Tools     []ToolOutcome `json:"tools"`
	Message   string        `json:"message,omitempty"`
}

// EndResult reports what End persisted.
type EndResult struct {
	SessionID string               `json:"sessionId"`
	Saved     bool                 `json:"saved"`
	Chat      *history.ChatSession `json:"chat,omitempty"`
}

type liveSession struct {
	info        Info
	instruction string

	mu         sync.Mutex
	contents   []model.Message
	transcript []history.Message
	lastActive time.Time
}

// Registry holds live sessions in memory.
type Registry struct {
	ledger   Ledger
	model    model.Model
	language i18n.Language
	location string
	owner    string
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	clock    func() time.Time
	newID    func() (string, error)

	mu       sync.Mutex
	sessions map[string]*liveSession
}

// NewRegistry builds a registry acting on ledger.
func NewRegistry(ledger Ledger, cfg Config) (*Registry, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if cfg.Language == "" {
		cfg.Language = i18n.DefaultLanguage
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	return &Registry{
		ledger:   ledger,
		model:    cfg.Model,
		language: cfg.Language,
		location: cfg.Location,
		owner:    cfg.Owner,
		ttl:      cfg.TTL,
		interval: cfg.SweepInterval,
		logger:   logging.OrNop(cfg.Logger),
		clock:    cfg.Clock,
		newID:    cfg.NewID,
		sessions: make(map[string]*liveSession),
	}, nil
}

// Start opens a session. Empty language and location use the defaults.
func (r *Registry) Start(ctx context.Context, language, location string) (Info, error) {
	if r.model == nil {
		return Info{}, ErrNoModel
	}
	lang := r.language
	if strings.TrimSpace(language) != "" {
		parsed, err := i18n.ParseLanguage(language)
		if err != nil {
			return Info{}, apperrors.Wrap(apperrors.CodeAssistantLanguage, fmt.Sprintf("language %q is not supported", language), err)
		}
		lang = parsed
	}
	location = strings.TrimSpace(location)
	if location == "" {
		location = r.location
	}

	sessionID, err := r.newID()
	if err != nil {
		return Info{}, fmt.Errorf("generate session id: %w", err)
	}
	now := r.clock().UTC()
	live := &liveSession{
		info:        Info{ID: sessionID, Language: lang, Location: location, StartedAt: now},
		instruction: prompt.SystemInstruction(lang, location, r.owner),
		lastActive:  now,
	}

	r.mu.Lock()
	r.sessions[sessionID] = live
	r.mu.Unlock()

	r.logger.Info("assistant session started",
		zap.String("session_id", sessionID),
		zap.String("language", string(lang)),
	)
	return live.info, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) lookup(sessionID string) (*liveSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	live, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return live, nil
}

// Turn sends text to the model and executes the tools it asks for. When a
// model call fails after tools already ran, the partial result is returned
// with the error so committed sales are still reported.
func (r *Registry) Turn(ctx context.Context, sessionID, text string) (result TurnResult, err error) {
	ctx, span := tracer.Start(ctx, "assistant.Turn")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("assistant.session_id", sessionID))

	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, ErrEmptyTurn
	}
	live, err := r.lookup(sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	live.mu.Lock()
	defer live.mu.Unlock()

	now := r.clock().UTC()
	live.lastActive = now
	live.transcript = append(live.transcript, history.Message{Role: history.RoleUser, Text: text, Timestamp: now})
	live.contents = append(live.contents, model.TextMessage(model.RoleUser, text))

	result = TurnResult{SessionID: sessionID, Tools: []ToolOutcome{}}
	var resp model.Response
	for round := 0; ; round++ {
		resp, err = r.model.Generate(ctx, model.Request{
			SystemInstruction: live.instruction,
			Messages:          live.contents,
			Tools:             Tools(),
		})
		if err != nil {
			if len(result.Tools) > 0 {
				r.recordOutcomes(live, result.Tools)
				return result, model.Classify(err)
			}
			return TurnResult{}, model.Classify(err)
		}
		if len(resp.Calls) == 0 {
			break
		}
		if round == MaxToolRounds {
			r.logger.Warn("assistant tool rounds exhausted",
				zap.String("session_id", sessionID),
				zap.Int("pending_calls", len(resp.Calls)),
			)
			break
		}

		callMsg := model.Message{Role: model.RoleModel}
		if resp.Text != "" {
			callMsg.Parts = append(callMsg.Parts, model.Part{Text: resp.Text})
		}
		replyMsg := model.Message{Role: model.RoleUser}
		for _, call := range resp.Calls {
			callMsg.Parts = append(callMsg.Parts, model.Part{Call: &call})
			outcome, reply := r.execute(ctx, call)
			replyMsg.Parts = append(replyMsg.Parts, model.Part{Response: &reply})
			result.Tools = append(result.Tools, outcome)
			if msg := outcome.SuccessMessage(); msg != "" {
				result.Message = msg
			}
		}
		live.contents = append(live.contents, callMsg, replyMsg)
	}

	result.Text = resp.Text
	if resp.Text != "" {
		done := r.clock().UTC()
		live.contents = append(live.contents, model.TextMessage(model.RoleModel, resp.Text))
		live.transcript = append(live.transcript, history.Message{Role: history.RoleAI, Text: resp.Text, Timestamp: done})
		live.lastActive = done
	}
	return result, nil
}

// recordOutcomes adds the tool results to the transcript when the model
// never got to answer.
func (r *Registry) recordOutcomes(live *liveSession, outcomes []ToolOutcome) {
	lines := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		text := outcome.SuccessMessage()
		if text == "" {
			text = outcome.Message
		}
		if text != "" {
			lines = append(lines, text)
		}
	}
	if len(lines) == 0 {
		return
	}
	now := r.clock().UTC()
	live.transcript = append(live.transcript, history.Message{Role: history.RoleAI, Text: strings.Join(lines, "\n"), Timestamp: now})
	live.lastActive = now
}

// End closes the session and saves its transcript.
func (r *Registry) End(ctx context.Context, sessionID string) (EndResult, error) {
	r.mu.Lock()
	live, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if !ok {
		return EndResult{}, ErrNotFound
	}
	return r.persist(ctx, live, "ended")
}

func (r *Registry) persist(ctx context.Context, live *liveSession, reason string) (EndResult, error) {
	live.mu.Lock()
	transcript := append([]history.Message(nil), live.transcript...)
	live.mu.Unlock()

	result := EndResult{SessionID: live.info.ID}
	if len(transcript) == 0 {
		r.logger.Info("assistant session dropped", zap.String("session_id", live.info.ID), zap.String("reason", reason))
		return result, nil
	}
	chat, err := r.ledger.AddChatSession(ctx, transcript)
	if err != nil {
		return EndResult{}, fmt.Errorf("save chat session: %w", err)
	}
	result.Saved = true
	result.Chat = &chat
	r.logger.Info("assistant session saved",
		zap.String("session_id", live.info.ID),
		zap.String("chat_id", chat.ID),
		zap.Int("messages", len(transcript)),
		zap.String("reason", reason),
	)
	return result, nil
}

// Sweep ends every session idle longer than the TTL and returns how many
// were ended.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.clock().UTC().Add(-r.ttl)

	r.mu.Lock()
	var expired []*liveSession
	for sessionID, live := range r.sessions {
		// A locked session is mid-turn and therefore not idle.
		if !live.mu.TryLock() {
			continue
		}
		idle := live.lastActive.Before(cutoff)
		live.mu.Unlock()
		if idle {
			expired = append(expired, live)
			delete(r.sessions, sessionID)
		}
	}
	r.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool { return expired[i].info.StartedAt.Before(expired[j].info.StartedAt) })
	for _, live := range expired {
		if _, err := r.persist(ctx, live, "expired"); err != nil {
			r.logger.Error("assistant session expiry failed", zap.String("session_id", live.info.ID), zap.Error(err))
		}
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Shutdown ends every live session, saving transcripts.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	live := make([]*liveSession, 0, len(r.sessions))
	for sessionID, s := range r.sessions {
		live = append(live, s)
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	var errs []error
	for _, s := range live {
		if _, err := r.persist(ctx, s, "shutdown"); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
