package templates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"billops/internal/util"
)

var ErrNotFound = errors.New("template not found")

// Source hands out invoice workbook templates as local file paths.
type Source interface {
	Fetch(ctx context.Context, name string) (string, error)
	List(ctx context.Context, contains string) ([]string, error)
}

type LocalSource struct {
	Dir string
}

func (s LocalSource) Fetch(_ context.Context, name string) (string, error) {
	p := filepath.Join(s.Dir, filepath.Base(name))
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return p, nil
}

func (s LocalSource) List(_ context.Context, contains string) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := util.NFC(e.Name())
		if e.IsDir() || strings.HasPrefix(name, "~$") || !strings.HasSuffix(strings.ToLower(name), ".xlsx") {
			continue
		}
		if contains == "" || strings.Contains(name, contains) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// GCSSource reads templates from a Cloud Storage bucket and caches them in
// a local directory.
type GCSSource struct {
	svc      *storage.Service
	bucket   string
	cacheDir string
}

func NewGCSSource(ctx context.Context, bucket, cacheDir string, opts ...option.ClientOption) (*GCSSource, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("missing template bucket")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, err
	}
	return &GCSSource{svc: svc, bucket: bucket, cacheDir: cacheDir}, nil
}

// GCSOptions builds client options from a service-account file; an empty
// path falls back to application default credentials.
func GCSOptions(credentialsFile string) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(storage.DevstorageReadOnlyScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	return opts
}

func (s *GCSSource) Fetch(ctx context.Context, name string) (string, error) {
	resp, err := s.svc.Objects.Get(s.bucket, name).Context(ctx).Download()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("download template %s: %w", name, err)
	}
	defer resp.Body.Close()

	dst := filepath.Join(s.cacheDir, filepath.Base(name))
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return "", err
	}
	return dst, f.Close()
}

func (s *GCSSource) List(ctx context.Context, contains string) ([]string, error) {
	var out []string
	err := s.svc.Objects.List(s.bucket).Context(ctx).Pages(ctx, func(objs *storage.Objects) error {
		for _, o := range objs.Items {
			name := util.NFC(o.Name)
			if !strings.HasSuffix(strings.ToLower(name), ".xlsx") {
				continue
			}
			if contains == "" || strings.Contains(name, contains) {
				out = append(out, o.Name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	sort.Strings(out)
	return out, nil
}
