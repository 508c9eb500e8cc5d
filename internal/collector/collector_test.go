package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/unicode/norm"

	"billops/internal"
	"billops/internal/catalog"
)

const loginPage = `<html><body>
<form action="/login.do" method="post">
  <input type="hidden" name="_csrf" value="tok-1">
  <input type="text" name="userCd">
  <input type="password" name="userPs">
</form></body></html>`

func fakeSite(t *testing.T, exportFailures int32) (*httptest.Server, *int32) {
	t.Helper()
	var exportCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login.do", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(loginPage))
			return
		}
		_ = r.ParseForm()
		if r.Form.Get("_csrf") != "tok-1" || r.Form.Get("userCd") != "metam" || r.Form.Get("userPs") != "pw" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(loginPage))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "ok", Path: "/"})
		_, _ = w.Write([]byte("<html><body>welcome</body></html>"))
	})
	mux.HandleFunc("/sms/history/excel.do", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&exportCalls, 1)
		if n <= exportFailures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if c, err := r.Cookie("SESSION"); err != nil || c.Value != "ok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("schSdate") != "20250201" || r.URL.Query().Get("schEdate") != "20250228" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = w.Write([]byte("PK-fake-xlsx"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &exportCalls
}

func testRequest(siteURL, password string) Request {
	company, _ := catalog.Default().Get("구쁘")
	return Request{
		Company: company,
		Accounts: map[internal.AccountType]internal.Account{
			internal.AccountSMS: {ID: "구쁘_sms", SiteURL: siteURL, Username: "metam", Password: password},
		},
		Start: time.Date(2025, 2, 1, 0, 0, 0, 0, time.Local),
		End:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.Local),
	}
}

func TestHTTPCollectorLogsInAndDownloadsWithRetry(t *testing.T) {
	srv, calls := fakeSite(t, 1)
	dir := t.TempDir()
	c := NewHTTPCollector(Options{DownloadDir: dir, Timeout: 5 * time.Second, RateRPS: 1000, Retries: 3})

	files, err := c.Collect(context.Background(), testRequest(srv.URL, "pw"))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 1 || files[0] != "구쁘_발송이력_20250201_20250228.xlsx" {
		t.Fatalf("unexpected files %v", files)
	}
	blob, err := os.ReadFile(filepath.Join(dir, files[0]))
	if err != nil || string(blob) != "PK-fake-xlsx" {
		t.Fatalf("unexpected file content %q err=%v", blob, err)
	}
	if atomic.LoadInt32(calls) != 2 {
		t.Fatalf("expected one retry, got %d export calls", *calls)
	}
}

func TestHTTPCollectorRejectsBadCredentials(t *testing.T) {
	srv, _ := fakeSite(t, 0)
	c := NewHTTPCollector(Options{DownloadDir: t.TempDir(), Timeout: 5 * time.Second, RateRPS: 1000})

	_, err := c.Collect(context.Background(), testRequest(srv.URL, "wrong"))
	if !errors.Is(err, ErrLogin) {
		t.Fatalf("expected ErrLogin, got %v", err)
	}
}

func TestHTTPCollectorRequiresDefinition(t *testing.T) {
	company, _ := catalog.Default().Get("W컨셉")
	c := NewHTTPCollector(Options{DownloadDir: t.TempDir()})
	_, err := c.Collect(context.Background(), Request{Company: company})
	if !errors.Is(err, ErrNoCollector) {
		t.Fatalf("expected ErrNoCollector, got %v", err)
	}
}

func TestDirCollectorPicksUpFreshFiles(t *testing.T) {
	dir := t.TempDir()
	since := time.Now().Add(-time.Minute)
	old := filepath.Join(dir, "구쁘_발송이력_old.xlsx")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_ = os.Chtimes(old, since.Add(-time.Hour), since.Add(-time.Hour))
	if err := os.WriteFile(filepath.Join(dir, "구쁘_발송이력_new.xlsx"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "앤하우스_발송이력.xlsx"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	company, _ := catalog.Default().Get("구쁘")
	got, err := DirCollector{Dir: dir, Since: since}.Collect(context.Background(), Request{Company: company})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "구쁘_발송이력_new.xlsx" {
		t.Fatalf("unexpected files %v", got)
	}
}

func TestDirCollectorComposesDecomposedNames(t *testing.T) {
	dir := t.TempDir()
	decomposed := norm.NFD.String("구쁘_발송이력.xlsx")
	if err := os.WriteFile(filepath.Join(dir, decomposed), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	company, _ := catalog.Default().Get("구쁘")
	got, err := DirCollector{Dir: dir, Since: time.Now().Add(-time.Minute)}.Collect(context.Background(), Request{Company: company})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "구쁘_발송이력.xlsx" {
		t.Fatalf("unexpected files %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, got[0])); err != nil {
		t.Fatalf("composed name not on disk: %v", err)
	}
}

func TestDefaultRange(t *testing.T) {
	start, end := DefaultRange(time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local))
	if start.Day() != 1 || start.Month() != time.February || end.Day() != 28 {
		t.Fatalf("unexpected range %v %v", start, end)
	}
}
