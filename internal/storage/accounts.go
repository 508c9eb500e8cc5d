package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"billops/internal"
)

func AccountID(company string, accountType internal.AccountType) string {
	return fmt.Sprintf("%s_%s", company, accountType)
}

const accountColumns = `id, company_name, account_type, site_url, username, password, notes, status, created_at, updated_at`

func scanAccount(s interface{ Scan(...any) error }) (internal.Account, error) {
	var a internal.Account
	var accountType string
	err := s.Scan(&a.ID, &a.CompanyName, &accountType, &a.SiteURL, &a.Username, &a.Password, &a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	a.AccountType = internal.AccountType(accountType)
	return a, err
}

// CreateAccount stores a crawl account under the id {company}_{type},
// replacing whatever was stored under that id before.
func (d *DB) CreateAccount(a internal.Account) (string, error) {
	if a.CompanyName == "" || a.AccountType == "" {
		return "", errors.New("company_name and account_type are required")
	}
	if a.Status == "" {
		a.Status = "active"
	}
	id := AccountID(a.CompanyName, a.AccountType)
	ts := now()
	_, err := d.conn.Exec(`
INSERT INTO accounts (`+accountColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  site_url=excluded.site_url,
  username=excluded.username,
  password=excluded.password,
  notes=excluded.notes,
  status=excluded.status,
  updated_at=excluded.updated_at
`, id, a.CompanyName, string(a.AccountType), a.SiteURL, a.Username, a.Password, a.Notes, a.Status, ts, ts)
	if err != nil {
		return "", err
	}
	return id, nil
}

// AccountPatch holds the fields of an account update; nil means unchanged.
type AccountPatch struct {
	CompanyName *string `json:"company_name"`
	AccountType *string `json:"account_type"`
	SiteURL     *string `json:"site_url"`
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	Notes       *string `json:"notes"`
	Status      *string `json:"status"`
}

func (d *DB) UpdateAccount(id string, p AccountPatch) error {
	current, err := d.GetAccount(id)
	if err != nil {
		return err
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&current.CompanyName, p.CompanyName)
	apply(&current.SiteURL, p.SiteURL)
	apply(&current.Username, p.Username)
	apply(&current.Password, p.Password)
	apply(&current.Notes, p.Notes)
	apply(&current.Status, p.Status)
	if p.AccountType != nil {
		current.AccountType = internal.AccountType(*p.AccountType)
	}

	_, err = d.conn.Exec(`
UPDATE accounts SET company_name=?, account_type=?, site_url=?, username=?, password=?, notes=?, status=?, updated_at=?
WHERE id = ?
`, current.CompanyName, string(current.AccountType), current.SiteURL, current.Username, current.Password, current.Notes, current.Status, now(), id)
	return err
}

func (d *DB) DeleteAccount(id string) error {
	res, err := d.conn.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) GetAccount(id string) (internal.Account, error) {
	a, err := scanAccount(d.conn.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Account{}, ErrNotFound
	}
	return a, err
}

// FindAccount returns the active account of the given type for a company.
func (d *DB) FindAccount(company string, accountType internal.AccountType) (internal.Account, error) {
	a, err := scanAccount(d.conn.QueryRow(`
SELECT `+accountColumns+` FROM accounts
WHERE company_name = ? AND account_type = ? AND status = 'active'
ORDER BY updated_at DESC LIMIT 1`, company, string(accountType)))
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Account{}, ErrNotFound
	}
	return a, err
}

func (d *DB) ListAccounts() ([]internal.Account, error) {
	rows, err := d.conn.Query(`SELECT ` + accountColumns + ` FROM accounts ORDER BY company_name, account_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
