package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"splitpay/domain"
)

// SessionManager issues and validates local session tokens. A session token
// is minted after a successful identity-provider verification so subsequent
// requests do not need to present the platform credential again.
type SessionManager struct {
	signingKey    []byte
	tokenDuration time.Duration
}

// SessionClaims are the custom JWT claims for a user session.
type SessionClaims struct {
	UserID     int64  `json:"user_id"`
	ExternalID string `json:"external_id"`
	jwt.RegisteredClaims
}

// NewSessionManager creates a new session manager. The signing key should be
// a strong random string of at least 32 bytes.
func NewSessionManager(signingKey string, tokenDuration time.Duration) *SessionManager {
	return &SessionManager{
		signingKey:    []byte(signingKey),
		tokenDuration: tokenDuration,
	}
}

// Issue creates a new session token for the given user.
func (m *SessionManager) Issue(userID int64, externalID string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID:     userID,
		ExternalID: externalID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Validate parses and validates a session token, returning the claims if
// valid.
func (m *SessionManager) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&SessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.signingKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthenticated
	}

	return claims, nil
}
