package storage

import (
	"encoding/json"
	"time"

	"billops/internal"
)

func (d *DB) SetFileList(kind internal.FileListKind, company string, files []string) error {
	if files == nil {
		files = []string{}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO file_lists (kind, company, files_json, timestamp) VALUES (?, ?, ?, ?)
ON CONFLICT(kind, company) DO UPDATE SET files_json=excluded.files_json, timestamp=excluded.timestamp
`, string(kind), company, string(filesJSON), time.Now().Format("2006-01-02T15:04:05.000000"))
	return err
}

func (d *DB) FileLists(kind internal.FileListKind) (map[string]internal.FileList, error) {
	rows, err := d.conn.Query(`SELECT company, files_json, timestamp FROM file_lists WHERE kind = ?`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]internal.FileList{}
	for rows.Next() {
		fl := internal.FileList{Kind: kind}
		var filesJSON string
		if err := rows.Scan(&fl.Company, &filesJSON, &fl.Timestamp); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(filesJSON), &fl.Files)
		out[fl.Company] = fl
	}
	return out, rows.Err()
}

func (d *DB) ClearFileList(kind internal.FileListKind, company string) error {
	_, err := d.conn.Exec(`DELETE FROM file_lists WHERE kind = ? AND company = ?`, string(kind), company)
	return err
}
