// Package history models saved assistant conversations.
package history

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/platform/id"
)

// SummaryLength caps the rune length of a session summary.
const SummaryLength = 50

// Role identifies who spoke a message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Feedback is the shopkeeper's rating of an AI message.
type Feedback string

const (
	FeedbackNone     Feedback = ""
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

// ParseFeedback accepts positive, negative, or empty to clear.
func ParseFeedback(value string) (Feedback, error) {
	switch Feedback(strings.ToLower(strings.TrimSpace(value))) {
	case FeedbackPositive:
		return FeedbackPositive, nil
	case FeedbackNegative:
		return FeedbackNegative, nil
	case FeedbackNone:
		return FeedbackNone, nil
	}
	return "", apperrors.New(apperrors.CodeHistoryInvalidFeedback, fmt.Sprintf("feedback must be positive or negative, got %q", value))
}

// Message is one transcript line.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Feedback  Feedback  `json:"feedback,omitempty"`
}

// ChatSession is a persisted conversation.
type ChatSession struct {
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	Summary  string    `json:"summary"`
	Messages []Message `json:"messages"`
}

// Summarize returns the first message text cut to SummaryLength runes.
func Summarize(messages []Message) string {
	for _, msg := range messages {
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > SummaryLength {
			return string(runes[:SummaryLength])
		}
		return text
	}
	return ""
}

// NewSession builds a session from transcript messages, assigning IDs to
// any message without one.
func NewSession(messages []Message, now func() time.Time, idGenerator func() (string, error)) (ChatSession, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if len(messages) == 0 {
		return ChatSession{}, apperrors.New(apperrors.CodeInvalidRequest, "session has no messages")
	}

	sessionID, err := idGenerator()
	if err != nil {
		return ChatSession{}, fmt.Errorf("generate session id: %w", err)
	}
	stamp := now().UTC()

	out := make([]Message, len(messages))
	for i, msg := range messages {
		if msg.Role != RoleUser && msg.Role != RoleAI {
			return ChatSession{}, apperrors.New(apperrors.CodeInvalidRequest, fmt.Sprintf("message %d: unknown role %q", i+1, msg.Role))
		}
		if strings.TrimSpace(msg.ID) == "" {
			msg.ID, err = idGenerator()
			if err != nil {
				return ChatSession{}, fmt.Errorf("generate message id: %w", err)
			}
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = stamp
		}
		msg.Timestamp = msg.Timestamp.UTC()
		out[i] = msg
	}

	return ChatSession{
		ID:       "S" + sessionID,
		Date:     stamp,
		Summary:  Summarize(out),
		Messages: out,
	}, nil
}
