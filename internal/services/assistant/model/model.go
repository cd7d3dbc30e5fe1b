// Package model defines the provider-neutral generation contract used by
// the assistant, so sessions and summaries can be tested without a network.
package model

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
)

// Role names the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse is the result returned to the model for a call.
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// Part is one piece of a message. Exactly one field is set.
type Part struct {
	Text     string
	Call     *FunctionCall
	Response *FunctionResponse
}

// Message is one conversational turn.
type Message struct {
	Role  Role
	Parts []Part
}

// TextMessage builds a single-part text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{{Text: text}}}
}

// Type is a JSON schema type name.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
)

// Schema describes tool parameters.
type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
}

// Tool declares a function the model may call.
type Tool struct {
	Name        string
	Description string
	Parameters  *Schema
}

// Request is one generation call.
type Request struct {
	SystemInstruction string
	Messages          []Message
	Tools             []Tool
}

// Response is the model's reply.
type Response struct {
	Text  string
	Calls []FunctionCall
}

// Model generates replies.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, req Request) (Response, error)

// Generate calls f.
func (f ModelFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

var (
	// ErrQuotaExceeded indicates the provider rate limited the key.
	ErrQuotaExceeded = apperrors.New(apperrors.CodeAssistantQuotaExceeded, "AI Busy hai. Apni key lagayein.")
	// ErrKeyInvalid indicates the key or project was rejected.
	ErrKeyInvalid = apperrors.New(apperrors.CodeAssistantKeyInvalid, "AI key is invalid or missing")
	// ErrUnavailable indicates any other provider failure.
	ErrUnavailable = apperrors.New(apperrors.CodeAssistantUnavailable, "AI is unavailable")
)

const keyNotFoundMessage = "Requested entity was not found."

// IsQuota reports whether err is a rate-limit or quota failure.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "429") || strings.Contains(message, "quota") || strings.Contains(message, "resource_exhausted")
}

// IsKeyInvalid reports whether err means the key or project is unusable.
func IsKeyInvalid(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrKeyInvalid) {
		return true
	}
	return strings.Contains(err.Error(), keyNotFoundMessage)
}

// Classify wraps err in the matching assistant error class.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case apperrors.CodeOf(err) != apperrors.CodeUnknown:
		return err
	case IsQuota(err):
		return apperrors.Wrap(apperrors.CodeAssistantQuotaExceeded, ErrQuotaExceeded.Message, err)
	case IsKeyInvalid(err):
		return apperrors.Wrap(apperrors.CodeAssistantKeyInvalid, ErrKeyInvalid.Message, err)
	default:
		return apperrors.Wrap(apperrors.CodeAssistantUnavailable, ErrUnavailable.Message, err)
	}
}
