package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed and tampered download tokens.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned for well-signed tokens past their expiry.
	ErrTokenExpired = errors.New("download token expired")
)

const tokenVersion = "d1"

// SignedURLSigner issues expiring download tokens for stored documents.
// A token reads d1.<base64 key>.<unix expiry>.<base64 HMAC-SHA256>.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate binds key to an expiry ttl from now.
func (s *SignedURLSigner) Generate(key string) (string, time.Time, error) {
	switch {
	case key == "":
		return "", time.Time{}, errors.New("document key required")
	case len(s.secret) == 0:
		return "", time.Time{}, errors.New("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second).UTC()
	payload := tokenVersion + "." + base64.RawURLEncoding.EncodeToString([]byte(key)) + "." + strconv.FormatInt(expiresAt.Unix(), 10)
	return payload + "." + s.mac(payload), expiresAt, nil
}

// Parse returns the document key of a valid token. The signature is checked
// before the expiry.
func (s *SignedURLSigner) Parse(token string) (string, time.Time, error) {
	cut := strings.LastIndexByte(token, '.')
	if cut < 0 || len(s.secret) == 0 {
		return "", time.Time{}, ErrInvalidToken
	}
	payload, signature := token[:cut], token[cut+1:]
	if !hmac.Equal([]byte(s.mac(payload)), []byte(signature)) {
		return "", time.Time{}, ErrInvalidToken
	}
	parts := strings.Split(payload, ".")
	if len(parts) != 3 || parts[0] != tokenVersion {
		return "", time.Time{}, ErrInvalidToken
	}
	unix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", time.Time{}, ErrInvalidToken
	}
	key, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || len(key) == 0 {
		return "", time.Time{}, ErrInvalidToken
	}
	expiresAt := time.Unix(unix, 0).UTC()
	if !s.now().Before(expiresAt) {
		return "", expiresAt, ErrTokenExpired
	}
	return string(key), expiresAt, nil
}

func (s *SignedURLSigner) mac(payload string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
