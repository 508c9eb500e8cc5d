package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"billops/internal/util"
)

var (
	ErrAlreadyUploaded = errors.New("file already uploaded")
	ErrNotFound        = errors.New("file not found")
	ErrNotRegular      = errors.New("not a regular file")
	ErrUnreadable      = errors.New("file not readable")
	ErrBadName         = errors.New("invalid file name")
)

// Workspace owns the on-disk directories shared by uploads, collection,
// pre-processing and bill intake.
type Workspace struct {
	Downloads  string
	Temp       string
	BillImages string
	BillPDFs   string

	now func() time.Time
}

func New(downloads, temp, billImages, billPDFs string) (*Workspace, error) {
	w := &Workspace{Downloads: downloads, Temp: temp, BillImages: billImages, BillPDFs: billPDFs, now: time.Now}
	for _, dir := range []string{downloads, temp, billImages, billPDFs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// UploadName is {company without '/'}_{label}_{YYYYmmdd_HHMMSS}_{orig}.
func (w *Workspace) UploadName(company, label, orig string) string {
	ts := w.now().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s_%s", strings.ReplaceAll(company, "/", ""), label, ts, util.NFC(filepath.Base(orig)))
}

// SaveUpload writes an uploaded file into temp_processing.
func (w *Workspace) SaveUpload(company, label, orig string, r io.Reader) (string, error) {
	if err := checkName(orig); err != nil {
		return "", err
	}
	name := w.UploadName(company, label, orig)
	dst := filepath.Join(w.Temp, name)
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return name, ErrAlreadyUploaded
	}
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", err
	}
	return name, f.Close()
}

// CopyCollected copies a collected file from downloads into temp_processing
// under the upload naming scheme. When the target already exists the name is
// returned with ErrAlreadyUploaded.
func (w *Workspace) CopyCollected(company, label, collected string) (string, error) {
	src, err := w.CheckCollected(collected)
	if err != nil {
		return "", err
	}
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "", fmt.Errorf("%s: %w", collected, ErrUnreadable)
		}
		return "", err
	}
	defer in.Close()
	return w.SaveUpload(company, label, collected, in)
}

// CheckCollected returns the path of a collected file in downloads.
func (w *Workspace) CheckCollected(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	path := filepath.Join(w.Downloads, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s: %w", name, ErrNotRegular)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, ErrUnreadable)
	}
	_ = f.Close()
	return path, nil
}

// Resolve finds a downloadable file: exact name in downloads then
// temp_processing, then a partial match ignoring the invoice suffix.
func (w *Workspace) Resolve(name string) (string, error) {
	decoded, err := url.PathUnescape(name)
	if err != nil {
		decoded = name
	}
	if err := checkName(decoded); err != nil {
		return "", err
	}
	dirs := []string{w.Downloads, w.Temp}
	for _, dir := range dirs {
		p := filepath.Join(dir, decoded)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}

	base := trimInvoiceSuffix(util.NFC(decoded))
	if base == "" {
		return "", fmt.Errorf("%s: %w", decoded, ErrNotFound)
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			fb := trimInvoiceSuffix(util.NFC(e.Name()))
			if fb != "" && (strings.Contains(fb, base) || strings.Contains(base, fb)) {
				return filepath.Join(dir, e.Name()), nil
			}
		}
	}
	return "", fmt.Errorf("%s: %w", decoded, ErrNotFound)
}

// ServeFrom resolves a file directly inside dir, e.g. a bill image.
func ServeFrom(dir, name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	p := filepath.Join(dir, name)
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return p, nil
}

func trimInvoiceSuffix(s string) string {
	s = strings.ReplaceAll(s, " 청구내역서.xlsx", "")
	return strings.ReplaceAll(s, ".xlsx", "")
}

type Entry struct {
	Name    string
	Path    string
	ModTime time.Time
}

// FindUploads lists uploads in temp_processing whose name contains the
// company (slash removed), newest first. A zero freshness disables the age
// check.
func (w *Workspace) FindUploads(company string, exts []string, freshness time.Duration) ([]Entry, error) {
	key := util.SafeCompany(company)
	return w.scan(w.Temp, func(name string, mod time.Time) bool {
		if !strings.Contains(name, key) || !hasExt(name, exts) {
			return false
		}
		return freshness <= 0 || w.now().Sub(mod) <= freshness
	})
}

// NewSince lists files in dir modified at or after since whose name contains
// any of the keywords (all files when none are given), newest first.
func (w *Workspace) NewSince(dir string, since time.Time, keywords ...string) ([]Entry, error) {
	return w.scan(dir, func(name string, mod time.Time) bool {
		if mod.Before(since) {
			return false
		}
		return len(keywords) == 0 || util.ContainsAny(name, keywords...)
	})
}

func (w *Workspace) scan(dir string, keep func(name string, mod time.Time) bool) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := util.NFC(e.Name())
		if !keep(name, info.ModTime()) {
			continue
		}
		out = append(out, Entry{Name: name, Path: filepath.Join(dir, e.Name()), ModTime: info.ModTime()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	return out, nil
}

// Clear removes the regular files directly inside dir.
func Clear(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if e.Type().IsRegular() {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Reset empties temp_processing and bill_images.
func (w *Workspace) Reset() error {
	return errors.Join(Clear(w.Temp), Clear(w.BillImages))
}

func hasExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.Contains(name, "\x00") {
		return fmt.Errorf("%q: %w", name, ErrBadName)
	}
	return nil
}
