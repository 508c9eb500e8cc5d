package storage

import (
	"database/sql"
	"errors"
	"time"
)

// Session is a login session keyed by the sha256 of its token; the token
// itself is never stored.
type Session struct {
	EmployeeID string
	ExpiresAt  time.Time
	Revoked    bool
}

func (d *DB) CreateSession(tokenSHA256, employeeID string, expiresAt time.Time) error {
	_, err := d.conn.Exec(`
INSERT INTO sessions (token_sha256, employee_id, expires_at, created_at)
VALUES (?, ?, ?, ?)
`, tokenSHA256, employeeID, expiresAt.UTC().Format(time.RFC3339), now())
	return err
}

func (d *DB) GetSession(tokenSHA256 string) (Session, error) {
	var (
		s       Session
		expires string
		revoked sql.NullString
	)
	err := d.conn.QueryRow(`SELECT employee_id, expires_at, revoked_at FROM sessions WHERE token_sha256 = ?`, tokenSHA256).
		Scan(&s.EmployeeID, &expires, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if s.ExpiresAt, err = time.Parse(time.RFC3339, expires); err != nil {
		return Session{}, err
	}
	s.Revoked = revoked.Valid
	return s, nil
}

func (d *DB) RevokeSession(tokenSHA256 string) error {
	_, err := d.conn.Exec(`UPDATE sessions SET revoked_at = ? WHERE token_sha256 = ? AND revoked_at IS NULL`, now(), tokenSHA256)
	return err
}
