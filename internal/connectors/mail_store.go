package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"billops/internal"
	"billops/internal/storage"
)

var ErrEmptyMail = errors.New("bill mail has no raw body")

// MailStore files fetched bill mails under <rawDir>/<provider>/<sha256>.eml
// and registers them in bill_mails as fetched, which is what the listener
// polls for. A body already on disk is kept; a refetch only refreshes the row.
type MailStore struct {
	db     *storage.DB
	rawDir string
}

func NewMailStore(db *storage.DB, rawDir string) *MailStore {
	return &MailStore{db: db, rawDir: rawDir}
}

func (s *MailStore) Store(msg internal.FetchedMailMessage) (internal.BillMailRow, error) {
	if len(msg.Raw) == 0 {
		return internal.BillMailRow{}, fmt.Errorf("%s mail %s: %w", msg.Provider, msg.MessageID, ErrEmptyMail)
	}
	dir := filepath.Join(s.rawDir, msg.Provider)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return internal.BillMailRow{}, fmt.Errorf("create raw mail dir %s: %w", dir, err)
	}

	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])
	rawPath := filepath.Join(dir, hash+".eml")
	if err := writeOnce(rawPath, msg.Raw); err != nil {
		return internal.BillMailRow{}, fmt.Errorf("save bill mail %s: %w", msg.MessageID, err)
	}

	row, err := s.db.UpsertBillMail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
	if err != nil {
		return internal.BillMailRow{}, fmt.Errorf("record bill mail %s: %w", msg.MessageID, err)
	}
	return row, nil
}

func writeOnce(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
