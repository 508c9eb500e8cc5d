package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"billops/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "billops.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenRunsMigrationsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billops.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != 2 {
		t.Fatalf("expected schema version 2, got %d", v)
	}
}

func TestAccountCRUD(t *testing.T) {
	db := openTestDB(t)

	id, err := db.CreateAccount(internal.Account{
		CompanyName: "구쁘",
		AccountType: internal.AccountSMS,
		SiteURL:     "https://sms.example.com",
		Username:    "metam",
		Password:    "secret",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "구쁘_sms" {
		t.Fatalf("unexpected id %q", id)
	}

	notes := "월말 수집"
	if err := db.UpdateAccount(id, AccountPatch{Notes: &notes}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := db.FindAccount("구쁘", internal.AccountSMS)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Notes != notes || got.Username != "metam" || got.Status != "active" {
		t.Fatalf("unexpected account %+v", got)
	}

	if err := db.DeleteAccount(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.GetAccount(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.UpdateAccount(id, AccountPatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestTaskRoundTrip(t *testing.T) {
	db := openTestDB(t)

	task := internal.Task{ID: "t1", Company: "앤하우스", Status: internal.TaskStarting, CrawlingMode: true}
	if err := db.SaveTask(task); err != nil {
		t.Fatalf("save: %v", err)
	}
	task.Status = internal.TaskCompleted
	task.Progress = 100
	task.Files = []string{"발송이력.xlsx"}
	task.Logs = []string{"started", "done"}
	if err := db.SaveTask(task); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := db.GetTask("t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != internal.TaskCompleted || got.Progress != 100 || len(got.Files) != 1 || len(got.Logs) != 2 || !got.CrawlingMode {
		t.Fatalf("unexpected task %+v", got)
	}
	if _, err := db.GetTask("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBillAmountsAndFileListsReset(t *testing.T) {
	db := openTestDB(t)

	err := db.SaveBillAmounts(map[string]internal.BillAmount{
		"구쁘": {Amount: "123,456원", UpdateDate: "10/01"},
	})
	if err != nil {
		t.Fatalf("save bill amounts: %v", err)
	}
	b, err := db.BillAmount("구쁘")
	if err != nil || b == nil || b.Amount != "123,456원" {
		t.Fatalf("unexpected bill amount %+v err=%v", b, err)
	}

	if err := db.SetFileList(internal.FilesProcessed, "구쁘", []string{"a.xlsx"}); err != nil {
		t.Fatalf("set file list: %v", err)
	}
	lists, err := db.FileLists(internal.FilesProcessed)
	if err != nil || len(lists["구쁘"].Files) != 1 {
		t.Fatalf("unexpected lists %+v err=%v", lists, err)
	}

	if err := db.ResetState(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	all, _ := db.BillAmounts()
	lists, _ = db.FileLists(internal.FilesProcessed)
	if len(all) != 0 || len(lists) != 0 {
		t.Fatalf("expected empty state after reset, got %d amounts %d lists", len(all), len(lists))
	}
}

func TestBillMailUpsertKeepsStatus(t *testing.T) {
	db := openTestDB(t)

	row, err := db.UpsertBillMail("imap", "42", "요금 고지서", "bill@carrier", "", "h1", "raw/h1.eml", "fetched")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := db.SetBillMailStatus(row.ID, "processed"); err != nil {
		t.Fatalf("status: %v", err)
	}
	again, err := db.UpsertBillMail("imap", "42", "요금 고지서", "bill@carrier", "", "h1", "raw/h1.eml", "fetched")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.ID != row.ID || again.Status != "processed" {
		t.Fatalf("expected status to survive re-upsert, got %+v", again)
	}
}

func TestPendingBillMails(t *testing.T) {
	db := openTestDB(t)
	for _, id := range []string{"1", "2", "3"} {
		if _, err := db.UpsertBillMail("gmail", id, "", "", "", "h"+id, "raw/h"+id+".eml", "fetched"); err != nil {
			t.Fatal(err)
		}
	}
	done, err := db.GetBillMail("gmail", "2")
	if err != nil || done == nil {
		t.Fatalf("get: %v", err)
	}
	if err := db.SetBillMailStatus(done.ID, "skipped"); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingBillMails("gmail", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].MessageID != "1" || pending[1].MessageID != "3" {
		t.Fatalf("unexpected pending %+v", pending)
	}
	if other, _ := db.PendingBillMails("imap", 10); len(other) != 0 {
		t.Fatalf("expected no imap mails, got %+v", other)
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := db.CreateSession("h1", "admin", expires); err != nil {
		t.Fatal(err)
	}
	s, err := db.GetSession("h1")
	if err != nil {
		t.Fatal(err)
	}
	if s.EmployeeID != "admin" || s.Revoked || !s.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected session %+v", s)
	}
	if err := db.RevokeSession("h1"); err != nil {
		t.Fatal(err)
	}
	if s, _ := db.GetSession("h1"); !s.Revoked {
		t.Fatal("session not revoked")
	}
	if _, err := db.GetSession("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
