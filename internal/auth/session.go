package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"billops/internal/storage"
)

const DefaultSessionTTL = 14 * 24 * time.Hour

var randReader io.Reader = rand.Reader

// Sessions issues opaque login tokens. Only the sha256 of a token is
// persisted.
type Sessions struct {
	db  *storage.DB
	ttl time.Duration
	now func() time.Time
}

func NewSessions(db *storage.DB, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{db: db, ttl: ttl, now: time.Now}
}

func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

func (s *Sessions) Create(employeeID string) (string, error) {
	var b [32]byte
	if _, err := io.ReadFull(randReader, b[:]); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b[:])
	if err := s.db.CreateSession(tokenHash(token), employeeID, s.now().Add(s.ttl)); err != nil {
		return "", err
	}
	return token, nil
}

// Lookup returns the employee a live token belongs to. Unknown, expired and
// revoked tokens report ok=false without an error.
func (s *Sessions) Lookup(token string) (employeeID string, ok bool, err error) {
	if token == "" {
		return "", false, nil
	}
	sess, err := s.db.GetSession(tokenHash(token))
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if sess.Revoked || !s.now().Before(sess.ExpiresAt) {
		return "", false, nil
	}
	return sess.EmployeeID, true, nil
}

func (s *Sessions) Revoke(token string) error {
	if token == "" {
		return nil
	}
	return s.db.RevokeSession(tokenHash(token))
}

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
