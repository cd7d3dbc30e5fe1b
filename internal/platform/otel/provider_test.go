package otel_test

import (
	"context"
	"testing"

	"github.com/vmitra/vmitra/internal/platform/otel"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), "vmitra-test", otel.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupNoopWhenExplicitlyDisabled(t *testing.T) {
	cfg := otel.Config{Endpoint: "http://localhost:4318", Enabled: "FALSE"}
	shutdown, err := otel.Setup(context.Background(), "vmitra-test", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupCreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export leaves the machine.
	cfg := otel.Config{Endpoint: "http://192.0.2.1:4318"}
	shutdown, err := otel.Setup(context.Background(), "vmitra-test", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
