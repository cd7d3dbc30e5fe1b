package model

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
)

func TestIsQuota(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: errors.New("Error 429: too many requests"), want: true},
		{err: errors.New("You exceeded your current Quota"), want: true},
		{err: errors.New("RESOURCE_EXHAUSTED"), want: true},
		{err: fmt.Errorf("wrapped: %w", ErrQuotaExceeded), want: true},
		{err: errors.New("connection reset"), want: false},
	}
	for _, tt := range tests {
		if got := IsQuota(tt.err); got != tt.want {
			t.Fatalf("IsQuota(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsKeyInvalid(t *testing.T) {
	if !IsKeyInvalid(errors.New("Error 404, Message: Requested entity was not found., Status: NOT_FOUND")) {
		t.Fatal("expected key invalid for missing entity")
	}
	if IsKeyInvalid(errors.New("boom")) {
		t.Fatal("expected plain error not to be key invalid")
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) != nil {
		t.Fatal("expected nil for nil")
	}
	if err := Classify(context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation preserved, got %v", err)
	}
	tests := []struct {
		err  error
		want apperrors.Code
	}{
		{err: errors.New("429 quota"), want: apperrors.CodeAssistantQuotaExceeded},
		{err: errors.New("Requested entity was not found."), want: apperrors.CodeAssistantKeyInvalid},
		{err: errors.New("boom"), want: apperrors.CodeAssistantUnavailable},
		{err: apperrors.New(apperrors.CodeSaleNoMatch, "no match"), want: apperrors.CodeSaleNoMatch},
	}
	for _, tt := range tests {
		if got := apperrors.CodeOf(Classify(tt.err)); got != tt.want {
			t.Fatalf("Classify(%v) code = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestModelFunc(t *testing.T) {
	var m Model = ModelFunc(func(_ context.Context, req Request) (Response, error) {
		return Response{Text: req.SystemInstruction}, nil
	})
	got, err := m.Generate(context.Background(), Request{SystemInstruction: "hi"})
	if err != nil || got.Text != "hi" {
		t.Fatalf("generate = %+v, %v", got, err)
	}
}
