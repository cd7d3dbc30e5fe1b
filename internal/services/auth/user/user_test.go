package user

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var testHasher = HasherWithCost(bcrypt.MinCost)

func TestCreateUserNormalizesInput(t *testing.T) {
	fixedTime := time.Date(2026, 1, 23, 10, 0, 0, 0, time.UTC)
	input := RegisterInput{Email: "  Shivam@Shop.IN ", Name: "  Shivam  ", Password: "secret1"}

	created, err := CreateUser(input, func() time.Time { return fixedTime }, testHasher)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.Email != "shivam@shop.in" {
		t.Fatalf("expected lowercased trimmed email, got %q", created.Email)
	}
	if created.Name != "Shivam" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}
	if created.Verified {
		t.Fatal("expected new user to be unverified")
	}
	if created.PasswordHash == "" || created.PasswordHash == "secret1" {
		t.Fatalf("expected hashed password, got %q", created.PasswordHash)
	}
	if !created.CreatedAt.Equal(fixedTime) || !created.UpdatedAt.Equal(fixedTime) {
		t.Fatalf("expected timestamps to match fixed time")
	}
}

func TestCreateUserHasherError(t *testing.T) {
	input := RegisterInput{Email: "a@b.in", Name: "A", Password: "secret1"}
	_, err := CreateUser(input, nil, func(string) (string, error) { return "", errors.New("boom") })
	if err == nil {
		t.Fatal("expected hasher error")
	}
}

func TestNormalizeRegisterInputValidation(t *testing.T) {
	tests := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{name: "missing at", input: RegisterInput{Email: "shop.in", Name: "A", Password: "secret1"}, want: ErrInvalidEmail},
		{name: "empty local part", input: RegisterInput{Email: "@shop.in", Name: "A", Password: "secret1"}, want: ErrInvalidEmail},
		{name: "empty name", input: RegisterInput{Email: "a@shop.in", Name: "  ", Password: "secret1"}, want: ErrEmptyName},
		{name: "short password", input: RegisterInput{Email: "a@shop.in", Name: "A", Password: "12345"}, want: ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeRegisterInput(tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCheckPassword(t *testing.T) {
	created, err := CreateUser(RegisterInput{Email: "a@shop.in", Name: "A", Password: "secret1"}, nil, testHasher)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if !created.CheckPassword("secret1") {
		t.Fatal("expected password to match")
	}
	if created.CheckPassword("secret2") {
		t.Fatal("expected mismatch for wrong password")
	}
	if (User{}).CheckPassword("secret1") {
		t.Fatal("expected mismatch for empty hash")
	}
}

func TestHashPasswordUsesBcrypt(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", hash)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Fatalf("cost = %d, want %d", cost, bcrypt.DefaultCost)
	}
}
