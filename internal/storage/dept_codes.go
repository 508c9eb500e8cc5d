package storage

import "billops/internal"

func (d *DB) UpsertDeptCodes(codes []internal.DeptCode) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO dept_codes (dept_name, dept_code) VALUES (?, ?)
ON CONFLICT(dept_name) DO UPDATE SET dept_code=excluded.dept_code
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range codes {
		if _, err := stmt.Exec(c.DeptName, c.DeptCode); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeptCodes returns dept_name -> dept_code.
func (d *DB) DeptCodes() (map[string]string, error) {
	rows, err := d.conn.Query(`SELECT dept_name, dept_code FROM dept_codes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, code string
		if err := rows.Scan(&name, &code); err != nil {
			return nil, err
		}
		out[name] = code
	}
	return out, rows.Err()
}
