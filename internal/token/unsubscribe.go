package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const purposeUnsubscribe = "unsubscribe"

var ErrInvalidSignature = errors.New("invalid unsubscribe token")

type unsubscribeClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Signer creates and checks HS256 tokens embedded in one-click unsubscribe links.
// Unsubscribe links in sent emails must keep working, so tokens carry no expiry
// unless ttl is set.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

func (s *Signer) Sign(email string) (string, error) {
	now := time.Now()
	claims := unsubscribeClaims{
		Email:   email,
		Purpose: purposeUnsubscribe,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign unsubscribe token: %w", err)
	}
	return signed, nil
}

// Parse returns the email carried by a valid unsubscribe token.
func (s *Signer) Parse(tokenString string) (string, error) {
	var claims unsubscribeClaims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", ErrInvalidSignature
	}
	if claims.Purpose != purposeUnsubscribe || claims.Email == "" {
		return "", ErrInvalidSignature
	}
	return claims.Email, nil
}
