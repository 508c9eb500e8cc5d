package storage

import "billops/internal"

func (d *DB) BillAmounts() (map[string]internal.BillAmount, error) {
	rows, err := d.conn.Query(`SELECT company, amount, update_date, image_path, pdf_file FROM bill_amounts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]internal.BillAmount{}
	for rows.Next() {
		var b internal.BillAmount
		if err := rows.Scan(&b.Company, &b.Amount, &b.UpdateDate, &b.ImagePath, &b.PDFFile); err != nil {
			return nil, err
		}
		out[b.Company] = b
	}
	return out, rows.Err()
}

func (d *DB) BillAmount(company string) (*internal.BillAmount, error) {
	all, err := d.BillAmounts()
	if err != nil {
		return nil, err
	}
	b, ok := all[company]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// SaveBillAmounts replaces the stored row of every company in the batch.
func (d *DB) SaveBillAmounts(batch map[string]internal.BillAmount) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO bill_amounts (company, amount, update_date, image_path, pdf_file, updated_at)
VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(company) DO UPDATE SET
  amount=excluded.amount,
  update_date=excluded.update_date,
  image_path=excluded.image_path,
  pdf_file=excluded.pdf_file,
  updated_at=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for company, b := range batch {
		if _, err := stmt.Exec(company, b.Amount, b.UpdateDate, b.ImagePath, b.PDFFile); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ClearBillAmounts() error {
	_, err := d.conn.Exec(`DELETE FROM bill_amounts`)
	return err
}
