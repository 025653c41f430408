package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Audatic07/collab-notes/internal/models"
	"github.com/Audatic07/collab-notes/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUserNotFound = errors.New("user no longer exists")
)

// Identity is what a verified bearer token resolves to.
type Identity struct {
	UserID string
	Email  string
}

// Claims carried by account service tokens. Subject is the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserLookup captures the account store read the verifier needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// Verifier validates account service tokens and resolves display names.
type Verifier struct {
	secret []byte
	users  UserLookup
}

func NewVerifier(secret string, users UserLookup) *Verifier {
	return &Verifier{secret: []byte(secret), users: users}
}

// Verify checks signature, algorithm and expiry. It never caches a result.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	if strings.TrimSpace(tokenString) == "" {
		return Identity{}, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// DisplayName loads the user's name, falling back to the email address when
// the account has no name set.
func (v *Verifier) DisplayName(ctx context.Context, userID string) (string, error) {
	user, err := v.users.GetUserByID(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup user %s: %w", userID, err)
	}
	if user.Name != "" {
		return user.Name, nil
	}
	return user.Email, nil
}

// IssueToken signs a token the way the account service does. Used by tooling
// and tests; the collaboration service itself never issues credentials.
func IssueToken(secret, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
