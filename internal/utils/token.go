package utils

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingAuthHeader = errors.New("authorization header missing")
	ErrMalformedAuth     = errors.New("invalid authorization header format")
)

// ExtractTokenFromHeader extracts the token from the Authorization header
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return "", ErrMalformedAuth
	}
	return strings.TrimSpace(authHeader[7:]), nil
}

// TokenFromRequest returns the bearer token from the Authorization header, or
// from the "token" query parameter since browsers cannot set headers on a
// websocket handshake. An empty string means no token was supplied.
func TokenFromRequest(r *http.Request) string {
	if token, err := ExtractTokenFromHeader(r.Header.Get("Authorization")); err == nil && token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
