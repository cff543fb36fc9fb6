package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"taskdash/internal/model"
)

// DefaultSessionTTL is how long a login session stays valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionClaims are the claims carried by a login session token.
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// SignSession builds a signed session token for a logged-in user.
func SignSession(secret, email, name string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("auth secret is required: %w", model.ErrNotValid)
	}
	if email == "" {
		return "", fmt.Errorf("email is required: %w", model.ErrNotValid)
	}
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}

	claims := &SessionClaims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("could not sign session: %w", err)
	}

	return signed, nil
}

// VerifySession parses and validates a session token. Expired or tampered
// tokens fail with model.ErrOAuth.
func VerifySession(secret, session string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(session, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid session: %v: %w", err, model.ErrOAuth)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session: %w", model.ErrOAuth)
	}

	return claims, nil
}
