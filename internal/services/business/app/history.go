package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/services/business/history"
	"github.com/vmitra/vmitra/internal/services/business/storage"
	"go.uber.org/zap"
)

// ListHistory returns saved conversations newest first.
func (s *Service) ListHistory(ctx context.Context) ([]history.ChatSession, error) {
	return s.store.ListChatSessions(ctx)
}

// AddChatSession saves a conversation built from transcript messages.
func (s *Service) AddChatSession(ctx context.Context, messages []history.Message) (session history.ChatSession, err error) {
	ctx, span := startSpan(ctx, "AddChatSession")
	defer func() { endSpan(span, err) }()

	session, err = history.NewSession(messages, s.now, s.newID)
	if err != nil {
		return history.ChatSession{}, err
	}
	if err := s.store.PutChatSession(ctx, session); err != nil {
		return history.ChatSession{}, fmt.Errorf("save chat session: %w", err)
	}
	s.logger.Info("chat session saved", zap.String("session_id", session.ID), zap.Int("messages", len(session.Messages)))
	return session, nil
}

// DeleteChatSession removes one conversation.
func (s *Service) DeleteChatSession(ctx context.Context, sessionID string) error {
	return s.store.DeleteChatSession(ctx, strings.TrimSpace(sessionID))
}

// ClearHistory removes every conversation.
func (s *Service) ClearHistory(ctx context.Context) error {
	if err := s.store.ClearChatSessions(ctx); err != nil {
		return err
	}
	s.logger.Info("chat history cleared")
	return nil
}

// SetFeedback rates one AI message.
func (s *Service) SetFeedback(ctx context.Context, sessionID string, messageID string, value string) error {
	feedback, err := history.ParseFeedback(value)
	if err != nil {
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	messageID = strings.TrimSpace(messageID)
	if sessionID == "" || messageID == "" {
		return apperrors.New(apperrors.CodeInvalidRequest, "session and message ids are required")
	}
	return s.store.SetMessageFeedback(ctx, sessionID, messageID, feedback)
}

// Prune removes history dated before the cutoff.
func (s *Service) Prune(ctx context.Context, before time.Time, dryRun bool) (counts storage.PruneCounts, err error) {
	ctx, span := startSpan(ctx, "Prune")
	defer func() { endSpan(span, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	counts, err = s.store.Prune(ctx, before, dryRun)
	if err != nil {
		return storage.PruneCounts{}, err
	}
	s.logger.Info("history pruned",
		zap.Time("before", before),
		zap.Bool("dry_run", dryRun),
		zap.Int("chat_sessions", counts.ChatSessions),
		zap.Int("adjustments", counts.Adjustments),
	)
	return counts, nil
}
