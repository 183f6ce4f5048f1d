// Package token mints the client-held capabilities used by the booking flow: the sealed booking
// token returned by a reservation and the signed waiting-list unsubscribe token.
package token

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/nosht/nosht/internal/domain"
)

// bookingEnvelope is the sealed plaintext
type bookingEnvelope struct {
	Claims    domain.BookingClaims `json:"c"`
	ExpiresAt int64                `json:"exp"`
}

// BookingTokenizer seals booking claims with XChaCha20-Poly1305. The expiry is inside the
// ciphertext, so a token cannot be extended without the key.
type BookingTokenizer struct {
	aead cipher.AEAD
	ttl  time.Duration
	now  func() time.Time
}

// KeyFromHex decodes a 32 byte hex key
func KeyFromHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid token key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("invalid token key: want %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

// RandomKey returns a fresh key. Tokens sealed with it do not survive a restart.
func RandomKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// NewBookingTokenizer creates a tokenizer whose tokens live for ttl
func NewBookingTokenizer(key []byte, ttl time.Duration) (*BookingTokenizer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &BookingTokenizer{aead: aead, ttl: ttl, now: time.Now}, nil
}

// TTL returns the token lifetime, which is also the reservation hold time
func (t *BookingTokenizer) TTL() time.Duration {
	return t.ttl
}

// Seal encrypts claims into a URL-safe token
func (t *BookingTokenizer) Seal(claims domain.BookingClaims) (string, error) {
	plaintext, err := json.Marshal(bookingEnvelope{
		Claims:    claims,
		ExpiresAt: t.now().Add(t.ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode booking claims: %w", err)
	}

	nonce := make([]byte, t.aead.NonceSize(), t.aead.NonceSize()+len(plaintext)+t.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := t.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts and validates a token. Any failure, including expiry, is domain.ErrInvalidToken.
func (t *BookingTokenizer) Open(tok string) (*domain.BookingClaims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) < t.aead.NonceSize()+t.aead.Overhead() {
		return nil, domain.ErrInvalidToken
	}

	nonce, ciphertext := raw[:t.aead.NonceSize()], raw[t.aead.NonceSize():]
	plaintext, err := t.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	var env bookingEnvelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return nil, domain.ErrInvalidToken
	}
	if t.now().Unix() > env.ExpiresAt {
		return nil, domain.ErrInvalidToken
	}

	return &env.Claims, nil
}
