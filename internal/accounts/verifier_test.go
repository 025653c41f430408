package accounts

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/Audatic07/collab-notes/internal/models"
	"github.com/Audatic07/collab-notes/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
)

type mockUsers struct {
	getUserByIDFn func(context.Context, string) (*models.User, error)
}

func (m *mockUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if m.getUserByIDFn == nil {
		panic("unexpected call to GetUserByID")
	}
	return m.getUserByIDFn(ctx, id)
}

func TestVerifySuccess(t *testing.T) {
	token, err := IssueToken("secret-key", "user-1", "a@example.com", time.Minute)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	id, err := NewVerifier("secret-key", &mockUsers{}).Verify(token)
	if err != nil {
		t.Fatalf("expected valid token, got error %v", err)
	}
	if id.UserID != "user-1" || id.Email != "a@example.com" {
		t.Fatalf("unexpected identity: %#v", id)
	}
}

func TestVerifyMissing(t *testing.T) {
	if _, err := NewVerifier("s", &mockUsers{}).Verify("  "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _ := IssueToken("other-secret", "user-1", "", time.Minute)
	if _, err := NewVerifier("secret-a", &mockUsers{}).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	token, _ := IssueToken("secret", "user-1", "", -time.Minute)
	if _, err := NewVerifier("secret", &mockUsers{}).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyRequiresExpiry(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	if _, err := NewVerifier("secret", &mockUsers{}).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken without exp, got %v", err)
	}
}

func TestVerifyRequiresSubject(t *testing.T) {
	token, _ := IssueToken("secret", "", "a@example.com", time.Minute)
	if _, err := NewVerifier("secret", &mockUsers{}).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken without sub, got %v", err)
	}
}

func TestVerifyUnexpectedMethod(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	if _, err := NewVerifier("secret", &mockUsers{}).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for RS256, got %v", err)
	}
}

func TestDisplayName(t *testing.T) {
	ctx := context.Background()

	t.Run("name", func(t *testing.T) {
		v := NewVerifier("s", &mockUsers{getUserByIDFn: func(_ context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Name: "Alice", Email: "a@example.com"}, nil
		}})
		name, err := v.DisplayName(ctx, "u1")
		if err != nil || name != "Alice" {
			t.Fatalf("expected Alice, got %q err=%v", name, err)
		}
	})

	t.Run("falls back to email", func(t *testing.T) {
		v := NewVerifier("s", &mockUsers{getUserByIDFn: func(_ context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Email: "a@example.com"}, nil
		}})
		name, err := v.DisplayName(ctx, "u1")
		if err != nil || name != "a@example.com" {
			t.Fatalf("expected email fallback, got %q err=%v", name, err)
		}
	})

	t.Run("deleted user", func(t *testing.T) {
		v := NewVerifier("s", &mockUsers{getUserByIDFn: func(context.Context, string) (*models.User, error) {
			return nil, repositories.ErrUserNotFound
		}})
		if _, err := v.DisplayName(ctx, "u1"); !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		boom := errors.New("db down")
		v := NewVerifier("s", &mockUsers{getUserByIDFn: func(context.Context, string) (*models.User, error) {
			return nil, boom
		}})
		_, err := v.DisplayName(ctx, "u1")
		if !errors.Is(err, boom) || errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected wrapped store error, got %v", err)
		}
	})
}
