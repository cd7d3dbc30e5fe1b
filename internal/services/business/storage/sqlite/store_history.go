package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vmitra/vmitra/internal/services/business/history"
	"github.com/vmitra/vmitra/internal/services/business/storage"
)

// PutChatSession stores a conversation, replacing any previous copy.
func (s *Store) PutChatSession(ctx context.Context, session history.ChatSession) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	session.ID = strings.TrimSpace(session.ID)
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put chat session: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO chat_sessions (id, date, summary)
		 VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   date = excluded.date,
		   summary = excluded.summary`,
		session.ID,
		toMillis(session.Date),
		session.Summary,
	); err != nil {
		return fmt.Errorf("put chat session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("reset chat messages: %w", err)
	}
	for position, msg := range session.Messages {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO chat_messages (session_id, id, position, role, text, timestamp, feedback)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			session.ID,
			msg.ID,
			position,
			string(msg.Role),
			msg.Text,
			toMillis(msg.Timestamp),
			string(msg.Feedback),
		); err != nil {
			return fmt.Errorf("put chat message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat session: %w", err)
	}
	return nil
}

// GetChatSession returns one conversation with its messages.
func (s *Store) GetChatSession(ctx context.Context, sessionID string) (history.ChatSession, error) {
	if err := s.ready(ctx); err != nil {
		return history.ChatSession{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return history.ChatSession{}, fmt.Errorf("session id is required")
	}

	var session history.ChatSession
	var date int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT id, date, summary FROM chat_sessions WHERE id = ?`, sessionID).
		Scan(&session.ID, &date, &session.Summary)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.ChatSession{}, storage.ErrNotFound
		}
		return history.ChatSession{}, fmt.Errorf("get chat session: %w", err)
	}
	session.Date = fromMillis(date)
	if session.Messages, err = s.chatMessages(ctx, session.ID); err != nil {
		return history.ChatSession{}, err
	}
	return session, nil
}

// ListChatSessions returns conversations newest first.
func (s *Store) ListChatSessions(ctx context.Context) ([]history.ChatSession, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, date, summary FROM chat_sessions ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	sessions := make([]history.ChatSession, 0)
	for rows.Next() {
		var session history.ChatSession
		var date int64
		if err := rows.Scan(&session.ID, &date, &session.Summary); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan chat session: %w", err)
		}
		session.Date = fromMillis(date)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	_ = rows.Close()

	for i := range sessions {
		if sessions[i].Messages, err = s.chatMessages(ctx, sessions[i].ID); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

// DeleteChatSession removes one conversation.
func (s *Store) DeleteChatSession(ctx context.Context, sessionID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete chat session: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete chat session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chat session: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete chat session: %w", err)
	}
	return nil
}

// ClearChatSessions removes every conversation.
func (s *Store) ClearChatSessions(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM chat_messages; DELETE FROM chat_sessions;`); err != nil {
		return fmt.Errorf("clear chat sessions: %w", err)
	}
	return nil
}

// SetMessageFeedback records the rating of one message.
func (s *Store) SetMessageFeedback(ctx context.Context, sessionID string, messageID string, feedback history.Feedback) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	messageID = strings.TrimSpace(messageID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if messageID == "" {
		return fmt.Errorf("message id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE chat_messages SET feedback = ? WHERE session_id = ? AND id = ?`,
		string(feedback),
		sessionID,
		messageID,
	)
	if err != nil {
		return fmt.Errorf("set message feedback: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set message feedback: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) chatMessages(ctx context.Context, sessionID string) ([]history.Message, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, role, text, timestamp, feedback
		 FROM chat_messages
		 WHERE session_id = ?
		 ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	messages := make([]history.Message, 0)
	for rows.Next() {
		var msg history.Message
		var role, feedback string
		var timestamp int64
		if err := rows.Scan(&msg.ID, &role, &msg.Text, &timestamp, &feedback); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msg.Role = history.Role(role)
		msg.Feedback = history.Feedback(feedback)
		msg.Timestamp = fromMillis(timestamp)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return messages, nil
}
