package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosht/nosht/internal/domain"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestTokenizer(t *testing.T, ttl time.Duration) *BookingTokenizer {
	t.Helper()
	key, err := KeyFromHex(testKeyHex)
	require.NoError(t, err)
	tk, err := NewBookingTokenizer(key, ttl)
	require.NoError(t, err)
	return tk
}

func testClaims() domain.BookingClaims {
	return domain.BookingClaims{
		UserID:      7,
		ActionID:    42,
		EventID:     3,
		PriceCent:   2688,
		TicketCount: 2,
		EventName:   "Summer Supper",
	}
}

func TestBookingTokenizer_RoundTrip(t *testing.T) {
	tk := newTestTokenizer(t, 300*time.Second)

	tok, err := tk.Seal(testClaims())
	require.NoError(t, err)
	assert.NotContains(t, tok, "Summer Supper")
	assert.NotContains(t, tok, "=")

	claims, err := tk.Open(tok)
	require.NoError(t, err)
	assert.Equal(t, testClaims(), *claims)
	assert.Equal(t, 300*time.Second, tk.TTL())
}

func TestBookingTokenizer_UniquePerSeal(t *testing.T) {
	tk := newTestTokenizer(t, time.Minute)

	a, err := tk.Seal(testClaims())
	require.NoError(t, err)
	b, err := tk.Seal(testClaims())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestBookingTokenizer_Expired(t *testing.T) {
	tk := newTestTokenizer(t, 300*time.Second)
	start := time.Now()
	tk.now = func() time.Time { return start }

	tok, err := tk.Seal(testClaims())
	require.NoError(t, err)

	tk.now = func() time.Time { return start.Add(299 * time.Second) }
	_, err = tk.Open(tok)
	assert.NoError(t, err)

	tk.now = func() time.Time { return start.Add(301 * time.Second) }
	_, err = tk.Open(tok)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestBookingTokenizer_Tampered(t *testing.T) {
	tk := newTestTokenizer(t, time.Minute)
	tok, err := tk.Seal(testClaims())
	require.NoError(t, err)

	// flip one character in the ciphertext body
	i := len(tok) / 2
	replacement := "A"
	if tok[i] == 'A' {
		replacement = "B"
	}
	tampered := tok[:i] + replacement + tok[i+1:]

	tests := []struct {
		name string
		tok  string
	}{
		{"tampered", tampered},
		{"truncated", tok[:10]},
		{"empty", ""},
		{"not base64", "!!!" + strings.Repeat("x", 60)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tk.Open(tt.tok)
			assert.ErrorIs(t, err, domain.ErrInvalidToken)
		})
	}
}

func TestBookingTokenizer_WrongKey(t *testing.T) {
	tk := newTestTokenizer(t, time.Minute)
	tok, err := tk.Seal(testClaims())
	require.NoError(t, err)

	other, err := RandomKey()
	require.NoError(t, err)
	tk2, err := NewBookingTokenizer(other, time.Minute)
	require.NoError(t, err)

	_, err = tk2.Open(tok)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestKeyFromHex(t *testing.T) {
	_, err := KeyFromHex("zz")
	assert.Error(t, err)

	_, err = KeyFromHex("0011")
	assert.Error(t, err)

	key, err := KeyFromHex(testKeyHex)
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestUnsubscribeSigner(t *testing.T) {
	s := NewUnsubscribeSigner("secret", time.Hour)

	tok, err := s.Sign(5, 9)
	require.NoError(t, err)

	userID, err := s.Verify(tok, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(9), userID)

	_, err = s.Verify(tok, 6)
	assert.ErrorIs(t, err, ErrInvalidUnsubscribeToken)

	_, err = NewUnsubscribeSigner("other", time.Hour).Verify(tok, 5)
	assert.ErrorIs(t, err, ErrInvalidUnsubscribeToken)

	expired, err := NewUnsubscribeSigner("secret", -time.Minute).Sign(5, 9)
	require.NoError(t, err)
	_, err = s.Verify(expired, 5)
	assert.ErrorIs(t, err, ErrInvalidUnsubscribeToken)
}
