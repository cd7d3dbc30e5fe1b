// Package gemini adapts google.golang.org/genai to the assistant model
// contract.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/services/assistant/model"
	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// generator is the slice of genai.Models the adapter calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Model calls a Gemini model through genai.
type Model struct {
	models generator
	name   string
}

var _ model.Model = (*Model)(nil)

// New creates a Gemini API client for apiKey.
func New(ctx context.Context, apiKey, name string) (*Model, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, apperrors.Wrap(apperrors.CodeAssistantKeyInvalid, model.ErrKeyInvalid.Message, errors.New("gemini api key is required"))
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newModel(client.Models, name), nil
}

func newModel(models generator, name string) *Model {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultModel
	}
	return &Model{models: models, name: name}
}

// Name returns the configured model name.
func (m *Model) Name() string {
	return m.name
}

// Generate sends req to Gemini and maps the first candidate back.
func (m *Model) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	config := &genai.GenerateContentConfig{}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}}
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
	}

	resp, err := m.models.GenerateContent(ctx, m.name, toContents(req.Messages), config)
	if err != nil {
		return model.Response{}, classify(err)
	}
	return fromResponse(resp), nil
}

func toContents(messages []model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		content := &genai.Content{Role: string(msg.Role)}
		for _, part := range msg.Parts {
			switch {
			case part.Call != nil:
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   part.Call.ID,
					Name: part.Call.Name,
					Args: part.Call.Args,
				}})
			case part.Response != nil:
				content.Parts = append(content.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       part.Response.ID,
					Name:     part.Response.Name,
					Response: part.Response.Response,
				}})
			default:
				content.Parts = append(content.Parts, &genai.Part{Text: part.Text})
			}
		}
		contents = append(contents, content)
	}
	return contents
}

func toDeclarations(tools []model.Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toSchema(tool.Parameters),
		})
	}
	return decls
}

func toSchema(schema *model.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        toType(schema.Type),
		Description: schema.Description,
		Items:       toSchema(schema.Items),
		Required:    schema.Required,
	}
	if len(schema.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			out.Properties[name] = toSchema(prop)
		}
	}
	return out
}

func toType(value model.Type) genai.Type {
	switch value {
	case model.TypeObject:
		return genai.TypeObject
	case model.TypeArray:
		return genai.TypeArray
	case model.TypeNumber:
		return genai.TypeNumber
	case model.TypeInteger:
		return genai.TypeInteger
	default:
		return genai.TypeString
	}
}

func fromResponse(resp *genai.GenerateContentResponse) model.Response {
	var out model.Response
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			out.Calls = append(out.Calls, model.FunctionCall{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
			continue
		}
		if part.Thought {
			continue
		}
		text.WriteString(part.Text)
	}
	out.Text = strings.TrimSpace(text.String())
	return out
}

// classify maps genai API errors onto assistant error classes.
func classify(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	switch code {
	case http.StatusTooManyRequests:
		return apperrors.Wrap(apperrors.CodeAssistantQuotaExceeded, model.ErrQuotaExceeded.Message, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.Wrap(apperrors.CodeAssistantKeyInvalid, model.ErrKeyInvalid.Message, err)
	}
	return model.Classify(err)
}
