package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
)

var testNow = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	manager, err := NewManager(Config{Secret: []byte("test-secret"), Now: now})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return manager
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestIssueAndValidate(t *testing.T) {
	manager := newTestManager(t, fixedClock(testNow))
	raw, issued, err := manager.Issue("a@shop.in", "Shivam")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !issued.ExpiresAt.Equal(testNow.Add(DefaultTTL)) {
		t.Fatalf("expires at = %v, want %v", issued.ExpiresAt, testNow.Add(DefaultTTL))
	}

	claims, err := manager.Validate(raw)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Email != "a@shop.in" || claims.Name != "Shivam" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.IssuedAt.Equal(testNow) {
		t.Fatalf("issued at = %v, want %v", claims.IssuedAt, testNow)
	}
}

func TestValidateExpired(t *testing.T) {
	issuer := newTestManager(t, fixedClock(testNow))
	raw, _, err := issuer.Issue("a@shop.in", "Shivam")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	later := newTestManager(t, fixedClock(testNow.Add(25*time.Hour)))
	_, err = later.Validate(raw)
	if apperrors.CodeOf(err) != apperrors.CodeTokenInvalid {
		t.Fatalf("expected token invalid, got %v", err)
	}
	if apperrors.MessageOf(err) != "token is expired" {
		t.Fatalf("message = %q", apperrors.MessageOf(err))
	}
}

func TestValidateRejectsOtherSecret(t *testing.T) {
	manager := newTestManager(t, fixedClock(testNow))
	raw, _, err := manager.Issue("a@shop.in", "Shivam")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other, err := NewManager(Config{Secret: []byte("other"), Now: fixedClock(testNow)})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	_, err = other.Validate(raw)
	if apperrors.MessageOf(err) != "token signature is invalid" {
		t.Fatalf("expected signature error, got %v", err)
	}
}

func TestValidateRejectsWrongAlgAndIssuer(t *testing.T) {
	manager := newTestManager(t, fixedClock(testNow))
	claims := accessClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   "a@shop.in",
		ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
	}}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.Validate(hs512); apperrors.CodeOf(err) != apperrors.CodeTokenInvalid {
		t.Fatalf("expected token invalid for HS512, got %v", err)
	}

	claims.Issuer = "someone-else"
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = manager.Validate(foreign)
	if apperrors.MessageOf(err) != "token issuer mismatch" {
		t.Fatalf("expected issuer mismatch, got %v", err)
	}
}

func TestValidateRequiresSubjectAndToken(t *testing.T) {
	manager := newTestManager(t, fixedClock(testNow))
	if _, err := manager.Validate("  "); apperrors.CodeOf(err) != apperrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for empty token, got %v", err)
	}
	if _, err := manager.Validate("not-a-jwt"); apperrors.CodeOf(err) != apperrors.CodeTokenInvalid {
		t.Fatalf("expected token invalid for garbage, got %v", err)
	}

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
	}}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.Validate(noSubject); apperrors.CodeOf(err) != apperrors.CodeTokenInvalid {
		t.Fatalf("expected token invalid for missing subject, got %v", err)
	}
}
