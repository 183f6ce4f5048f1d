package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidUnsubscribeToken = errors.New("invalid unsubscribe token")

type unsubscribeClaims struct {
	EventID int64 `json:"event_id"`
	UserID  int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// UnsubscribeSigner signs the links in waiting-list emails that remove a user from the list
type UnsubscribeSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewUnsubscribeSigner creates a signer. A zero ttl issues tokens that never expire.
func NewUnsubscribeSigner(secret string, ttl time.Duration) *UnsubscribeSigner {
	return &UnsubscribeSigner{secret: []byte(secret), ttl: ttl}
}

// Sign returns a token binding eventID and userID
func (s *UnsubscribeSigner) Sign(eventID, userID int64) (string, error) {
	claims := unsubscribeClaims{
		EventID: eventID,
		UserID:  userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "waiting-list-remove",
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if s.ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign unsubscribe token: %w", err)
	}
	return signed, nil
}

// Verify checks the token was issued for eventID and returns the user it names
func (s *UnsubscribeSigner) Verify(tokenString string, eventID int64) (int64, error) {
	claims := &unsubscribeClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithSubject("waiting-list-remove"))
	if err != nil {
		return 0, ErrInvalidUnsubscribeToken
	}
	if claims.EventID != eventID || claims.UserID == 0 {
		return 0, ErrInvalidUnsubscribeToken
	}
	return claims.UserID, nil
}
