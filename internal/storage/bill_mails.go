package storage

import (
	"database/sql"
	"errors"

	"billops/internal"
)

func (d *DB) UpsertBillMail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.BillMailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO bill_mails (provider, message_id, subject, sender, received_at, hash, status, raw_ref)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, message_id) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  received_at=excluded.received_at,
  hash=excluded.hash,
  raw_ref=excluded.raw_ref,
  updated_at=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.BillMailRow{}, err
	}

	row, err := d.GetBillMail(provider, messageID)
	if err != nil {
		return internal.BillMailRow{}, err
	}
	if row == nil {
		return internal.BillMailRow{}, errors.New("failed to upsert bill mail")
	}
	return *row, nil
}

func (d *DB) GetBillMail(provider, messageID string) (*internal.BillMailRow, error) {
	var row internal.BillMailRow
	var subject, sender, receivedAt sql.NullString
	err := d.conn.QueryRow(`
SELECT id, provider, message_id, subject, sender, received_at, hash, status, raw_ref
FROM bill_mails WHERE provider = ? AND message_id = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &subject, &sender, &receivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.Subject, row.Sender, row.ReceivedAt = subject.String, sender.String, receivedAt.String
	return &row, nil
}

func (d *DB) SetBillMailStatus(id int, status string) error {
	_, err := d.conn.Exec(`UPDATE bill_mails SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}

// PendingBillMails lists fetched mails of a provider, oldest first.
func (d *DB) PendingBillMails(provider string, limit int) ([]internal.BillMailRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, message_id, COALESCE(subject, ''), COALESCE(sender, ''), COALESCE(received_at, ''), hash, status, raw_ref
FROM bill_mails WHERE provider = ? AND status = 'fetched'
ORDER BY id LIMIT ?
`, provider, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.BillMailRow
	for rows.Next() {
		var r internal.BillMailRow
		if err := rows.Scan(&r.ID, &r.Provider, &r.MessageID, &r.Subject, &r.Sender, &r.ReceivedAt, &r.Hash, &r.Status, &r.RawRef); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
