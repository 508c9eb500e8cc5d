package collector

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"billops/internal/util"
)

// DirCollector waits for an external exporter to drop a company's files into
// the downloads directory.
type DirCollector struct {
	Dir      string
	Wait     time.Duration
	Interval time.Duration
	// Since is compared with file modification times; zero means now.
	Since time.Time
}

func (d DirCollector) Collect(ctx context.Context, req Request) ([]string, error) {
	since := d.Since
	if since.IsZero() {
		since = time.Now()
	}
	interval := d.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	deadline := time.Now().Add(d.Wait)

	keys := []string{util.SafeCompany(req.Company.Name)}
	if req.Company.Collector != nil {
		for _, exp := range req.Company.Collector.Exports {
			if !req.wants(exp.Kind) {
				continue
			}
			if prefix, _, ok := strings.Cut(exp.FileName, "_{"); ok {
				keys = append(keys, prefix)
			}
		}
	}

	for {
		found, err := d.scan(since, keys)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 || !time.Now().Before(deadline) {
			return found, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (d DirCollector) scan(since time.Time, keys []string) ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	type hit struct {
		name string
		mod  time.Time
	}
	var hits []hit
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := util.NFC(e.Name())
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".xlsx" && ext != ".xls" && ext != ".csv" {
			continue
		}
		if !util.ContainsAny(name, keys...) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().Before(since) {
			continue
		}
		if name != e.Name() {
			// macOS exports carry decomposed Hangul.
			if err := os.Rename(filepath.Join(d.Dir, e.Name()), filepath.Join(d.Dir, name)); err != nil {
				return nil, err
			}
		}
		hits = append(hits, hit{name: name, mod: info.ModTime()})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].mod.After(hits[j].mod) })
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out, nil
}
