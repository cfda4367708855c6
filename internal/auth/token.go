// ABOUTME: JWT signing and verification for gateway session credentials
// ABOUTME: Uses HS256 with sub/role/sid/iat/exp claims

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// MinSecretLength is the minimum accepted signing secret length in bytes.
const MinSecretLength = 32

// Claims is the verified content of a session credential.
type Claims struct {
	PrincipalID string
	Role        string
	SessionID   string
	ExpiresAt   time.Time
}

// TokenCodec signs and verifies session credentials.
type TokenCodec interface {
	Sign(claims Claims, ttl time.Duration) (string, error)
	Verify(tokenString string) (*Claims, error)
}

// JWTCodec implements TokenCodec using HS256 signed JWTs
type JWTCodec struct {
	secret []byte
}

// NewJWTCodec creates a JWT codec with the given secret.
// Returns an error if the secret is shorter than MinSecretLength.
func NewJWTCodec(secret []byte) (*JWTCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	return &JWTCodec{secret: secret}, nil
}

// Sign creates a signed credential carrying the principal, role, and session ID.
func (c *JWTCodec) Sign(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	mapClaims := jwt.MapClaims{
		"sub":  claims.PrincipalID,
		"role": claims.Role,
		"sid":  claims.SessionID,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	return token.SignedString(c.secret)
}

// Verify validates the signature and expiry and extracts the claims.
func (c *JWTCodec) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})

	if err != nil {
		// Check if it's specifically an expiration error
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := mapClaims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	role, ok := mapClaims["role"].(string)
	if !ok || role == "" {
		return nil, fmt.Errorf("%w: role", ErrMissingClaim)
	}
	sid, ok := mapClaims["sid"].(string)
	if !ok || sid == "" {
		return nil, fmt.Errorf("%w: sid", ErrMissingClaim)
	}

	claims := &Claims{
		PrincipalID: sub,
		Role:        role,
		SessionID:   sid,
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}

var _ TokenCodec = (*JWTCodec)(nil)
