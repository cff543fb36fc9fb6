// Package auth issues and verifies the signed OAuth state tokens used by the
// Google login and Drive connect flows. The token is stateless so redirects
// survive session changes behind proxies.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"taskdash/internal/model"
)

// DefaultStateTTL is how long an OAuth state token stays valid.
const DefaultStateTTL = 15 * time.Minute

// Known OAuth flows carried in the state token.
const (
	FlowLogin = "login"
	FlowDrive = "drive"
)

// StateClaims are the claims carried by an OAuth state token.
type StateClaims struct {
	Flow  string `json:"flow"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SignState builds a signed OAuth state token for the given flow.
func SignState(secret, flow, email string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("auth secret is required: %w", model.ErrNotValid)
	}
	if ttl == 0 {
		ttl = DefaultStateTTL
	}

	claims := &StateClaims{
		Flow:  flow,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("could not sign state: %w", err)
	}

	return signed, nil
}

// VerifyState parses and validates an OAuth state token. Expired or tampered
// tokens fail with model.ErrOAuth.
func VerifyState(secret, state string) (*StateClaims, error) {
	token, err := jwt.ParseWithClaims(state, &StateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid oauth state: %v: %w", err, model.ErrOAuth)
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid oauth state: %w", model.ErrOAuth)
	}

	return claims, nil
}
