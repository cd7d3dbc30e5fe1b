package requestctx

import (
	"context"
	"testing"
)

func TestUserFromContextRoundTrip(t *testing.T) {
	ctx := WithUser(context.Background(), User{Email: "shivam@example.com", Name: "Shivam"})
	got, ok := UserFromContext(ctx)
	if !ok {
		t.Fatal("expected user in context")
	}
	if got.Email != "shivam@example.com" || got.Name != "Shivam" {
		t.Fatalf("unexpected user %+v", got)
	}
	if EmailFromContext(ctx) != "shivam@example.com" {
		t.Fatalf("EmailFromContext = %q", EmailFromContext(ctx))
	}
}

func TestUserFromContextEmpty(t *testing.T) {
	if _, ok := UserFromContext(context.Background()); ok {
		t.Fatal("expected no user")
	}
	if got := EmailFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty email, got %q", got)
	}
}

func TestUserFromContextNil(t *testing.T) {
	if _, ok := UserFromContext(nil); ok {
		t.Fatal("expected no user for nil context")
	}
}

func TestWithUserNilContext(t *testing.T) {
	ctx := WithUser(nil, User{Email: "a@b.in"})
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	if got := EmailFromContext(ctx); got != "a@b.in" {
		t.Fatalf("EmailFromContext = %q", got)
	}
}
