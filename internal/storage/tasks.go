package storage

import (
	"database/sql"
	"encoding/json"
	"errors"

	"billops/internal"
)

func (d *DB) SaveTask(t internal.Task) error {
	if t.Files == nil {
		t.Files = []string{}
	}
	if t.Logs == nil {
		t.Logs = []string{}
	}
	filesJSON, err := json.Marshal(t.Files)
	if err != nil {
		return err
	}
	logsJSON, err := json.Marshal(t.Logs)
	if err != nil {
		return err
	}
	if t.CreatedAt == "" {
		t.CreatedAt = now()
	}
	_, err = d.conn.Exec(`
INSERT INTO tasks (id, company, status, progress, files_json, logs_json, error, crawling_mode, start_date, end_date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  status=excluded.status,
  progress=excluded.progress,
  files_json=excluded.files_json,
  logs_json=excluded.logs_json,
  error=excluded.error,
  updated_at=excluded.updated_at
`, t.ID, t.Company, string(t.Status), t.Progress, string(filesJSON), string(logsJSON), t.Error, t.CrawlingMode, t.StartDate, t.EndDate, t.CreatedAt, now())
	return err
}

func (d *DB) GetTask(id string) (internal.Task, error) {
	var t internal.Task
	var status, filesJSON, logsJSON string
	err := d.conn.QueryRow(`
SELECT id, company, status, progress, files_json, logs_json, error, crawling_mode, start_date, end_date, created_at, updated_at
FROM tasks WHERE id = ?`, id).Scan(
		&t.ID, &t.Company, &status, &t.Progress, &filesJSON, &logsJSON, &t.Error, &t.CrawlingMode, &t.StartDate, &t.EndDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Task{}, ErrNotFound
	}
	if err != nil {
		return internal.Task{}, err
	}
	t.Status = internal.TaskStatus(status)
	_ = json.Unmarshal([]byte(filesJSON), &t.Files)
	_ = json.Unmarshal([]byte(logsJSON), &t.Logs)
	return t, nil
}
