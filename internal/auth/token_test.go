// ABOUTME: Unit tests for JWT credential signing and verification
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens, and missing claims

package auth

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("test-secret-key-for-jwt-signing!")

func newTestCodec(t *testing.T) *JWTCodec {
	t.Helper()
	codec, err := NewJWTCodec(testSecret)
	if err != nil {
		t.Fatalf("NewJWTCodec() error = %v", err)
	}
	return codec
}

func TestNewJWTCodec_ShortSecret(t *testing.T) {
	_, err := NewJWTCodec([]byte("too-short"))
	if err == nil {
		t.Fatal("NewJWTCodec() expected error for short secret, got nil")
	}
}

func TestJWTCodec_ValidToken(t *testing.T) {
	codec := newTestCodec(t)

	claims := Claims{
		PrincipalID: "principal-123",
		Role:        "admin",
		SessionID:   "session-abc",
	}
	token, err := codec.Sign(claims, time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	got, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if got.PrincipalID != "principal-123" {
		t.Errorf("PrincipalID = %q, want %q", got.PrincipalID, "principal-123")
	}
	if got.Role != "admin" {
		t.Errorf("Role = %q, want %q", got.Role, "admin")
	}
	if got.SessionID != "session-abc" {
		t.Errorf("SessionID = %q, want %q", got.SessionID, "session-abc")
	}
	if got.ExpiresAt.IsZero() {
		t.Error("ExpiresAt is zero, want expiry from token")
	}
}

func TestJWTCodec_InvalidToken(t *testing.T) {
	codec := newTestCodec(t)

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "garbage token",
			token: "not-a-jwt-token",
		},
		{
			name:  "malformed JWT",
			token: "header.payload.signature",
		},
		{
			name: "wrong secret",
			token: func() string {
				other, _ := NewJWTCodec([]byte("different-secret-that-is-32-bytes!!"))
				token, _ := other.Sign(Claims{PrincipalID: "p", Role: "admin", SessionID: "s"}, time.Hour)
				return token
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Verify(tt.token)
			if err == nil {
				t.Error("Verify() expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestJWTCodec_ExpiredToken(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Sign(Claims{PrincipalID: "p", Role: "admin", SessionID: "s"}, -time.Minute)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	_, err = codec.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTCodec_MissingClaims(t *testing.T) {
	codec := newTestCodec(t)

	tests := []struct {
		name   string
		claims Claims
	}{
		{
			name:   "missing sub",
			claims: Claims{Role: "admin", SessionID: "s"},
		},
		{
			name:   "missing role",
			claims: Claims{PrincipalID: "p", SessionID: "s"},
		},
		{
			name:   "missing sid",
			claims: Claims{PrincipalID: "p", Role: "admin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := codec.Sign(tt.claims, time.Hour)
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}

			_, err = codec.Verify(token)
			if !errors.Is(err, ErrMissingClaim) {
				t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
			}
		})
	}
}
