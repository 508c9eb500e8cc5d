package storage

import (
	"database/sql"
	"errors"

	"billops/internal"
)

func (d *DB) UpsertAdminUser(u internal.AdminUser) error {
	if u.Role == "" {
		u.Role = "operator"
	}
	ts := now()
	_, err := d.conn.Exec(`
INSERT INTO admin_users (employee_id, name, position, role, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(employee_id) DO UPDATE SET
  name=excluded.name,
  position=excluded.position,
  role=excluded.role,
  password_hash=excluded.password_hash,
  updated_at=excluded.updated_at
`, u.EmployeeID, u.Name, u.Position, u.Role, u.PasswordHash, ts, ts)
	return err
}

func (d *DB) GetAdminUser(employeeID string) (internal.AdminUser, error) {
	var u internal.AdminUser
	err := d.conn.QueryRow(`
SELECT employee_id, name, position, role, password_hash, created_at, updated_at
FROM admin_users WHERE employee_id = ?`, employeeID).Scan(
		&u.EmployeeID, &u.Name, &u.Position, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.AdminUser{}, ErrNotFound
	}
	return u, err
}

func (d *DB) ListAdminUsers() ([]internal.AdminUser, error) {
	rows, err := d.conn.Query(`
SELECT employee_id, name, position, role, password_hash, created_at, updated_at
FROM admin_users ORDER BY employee_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.AdminUser
	for rows.Next() {
		var u internal.AdminUser
		if err := rows.Scan(&u.EmployeeID, &u.Name, &u.Position, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
