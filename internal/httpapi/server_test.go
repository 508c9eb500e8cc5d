package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"billops/internal"
	"billops/internal/auth"
	"billops/internal/bills"
	"billops/internal/catalog"
	"billops/internal/config"
	"billops/internal/expense"
	"billops/internal/files"
	"billops/internal/pipeline"
	"billops/internal/queue"
	"billops/internal/storage"
	"billops/internal/tasks"
	"billops/internal/templates"
)

type recordingDispatcher struct{ msgs []queue.JobMessage }

func (d *recordingDispatcher) Dispatch(_ context.Context, msg queue.JobMessage) error {
	d.msgs = append(d.msgs, msg)
	return nil
}

type fakeSubmitter struct {
	batch expense.Batch
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, creds expense.Credentials, b expense.Batch) (expense.Result, error) {
	f.batch = b
	if f.err != nil {
		return expense.Result{}, f.err
	}
	return expense.Result{Processed: len(b.Rows), Total: len(b.Rows)}, nil
}

type testEnv struct {
	srv        *Server
	db         *storage.DB
	ws         *files.Workspace
	dispatcher *recordingDispatcher
	submitter  *fakeSubmitter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvMode(t, auth.ModeEnforce)
}

func newTestEnvMode(t *testing.T, mode auth.Mode) *testEnv {
	t.Helper()
	root := t.TempDir()
	db, err := storage.Open(filepath.Join(root, "billops.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ws, err := files.New(filepath.Join(root, "downloads"), filepath.Join(root, "temp"), filepath.Join(root, "images"), filepath.Join(root, "pdfs"))
	if err != nil {
		t.Fatal(err)
	}
	authzDir := filepath.Join("..", "..", "config", "authz")
	authz, err := auth.NewAuthorizer(filepath.Join(authzDir, "model.conf"), filepath.Join(authzDir, "policy.csv"), mode)
	if err != nil {
		t.Fatal(err)
	}
	authSvc := auth.NewService(db, nil)
	if err := authSvc.CreateUser(internal.AdminUser{EmployeeID: "admin", Name: "관리자", Role: auth.RoleAdmin}, "admin"); err != nil {
		t.Fatal(err)
	}
	if err := authSvc.CreateUser(internal.AdminUser{EmployeeID: "op", Name: "운영자"}, "oper"); err != nil {
		t.Fatal(err)
	}

	cat := catalog.Default()
	env := &testEnv{db: db, ws: ws, dispatcher: &recordingDispatcher{}, submitter: &fakeSubmitter{}}
	cfg := config.Config{AllowedOrigin: "http://localhost:3000", MaxUploadMB: 1}
	env.srv = NewServer(cfg, Deps{
		DB:         db,
		Workspace:  ws,
		Catalog:    cat,
		Tasks:      tasks.NewManager(db),
		Dispatcher: env.dispatcher,
		Processor:  pipeline.NewProcessingService(db, ws, templates.LocalSource{Dir: root}, cat, pipeline.Options{}),
		Bills:      bills.NewService(db, ws, cat, nil),
		Expense:    env.submitter,
		Auth:       authSvc,
		Sessions:   auth.NewSessions(db, time.Hour),
		Authz:      authz,
	})
	return env
}

// login signs in and returns the session cookie header for later requests.
func (e *testEnv) login(t *testing.T, id, password string) map[string]string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"employeeId": id, "password": password}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status=%d body=%s", id, rec.Code, rec.Body)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return map[string]string{"Cookie": c.Name + "=" + c.Value}
		}
	}
	t.Fatalf("login %s set no session cookie", id)
	return nil
}

func (e *testEnv) do(t *testing.T, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) multipart(t *testing.T, target string, fields map[string]string, fileField, fileName string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestCompaniesHealthAndHeaders(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/companies", nil, map[string]string{"X-Request-ID": "abc-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	companies := decode(t, rec)["companies"].([]any)
	if len(companies) != len(catalog.Default().Names()) || companies[0] != "앤하우스" {
		t.Fatalf("unexpected companies %v", companies)
	}
	if rec.Header().Get("X-Request-ID") != "abc-1" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing headers %v", rec.Header())
	}

	rec = e.do(t, http.MethodGet, "/api/health", nil, nil)
	body := decode(t, rec)
	if body["status"] != "healthy" || body["crawling_available"] != true {
		t.Fatalf("unexpected health %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestHealthReportsSchemaAndPreprocessors(t *testing.T) {
	e := newTestEnv(t)

	body := decode(t, e.do(t, http.MethodGet, "/api/health", nil, nil))
	if body["schema_version"] != float64(2) {
		t.Fatalf("unexpected schema version %v", body["schema_version"])
	}
	if _, ok := body["dept_codes_imported_at"]; ok {
		t.Fatal("no import has happened yet")
	}
	supported := map[string]bool{}
	for _, name := range body["preprocess_companies"].([]any) {
		supported[name.(string)] = true
	}
	if !supported["SK일렉링크"] || !supported["코오롱Fnc"] || supported["메디빌더"] {
		t.Fatalf("unexpected preprocess companies %v", body["preprocess_companies"])
	}

	if err := e.db.SetMetadata(storage.MetaDeptCodesImportedAt, "2025-04-02T10:00:00Z"); err != nil {
		t.Fatal(err)
	}
	body = decode(t, e.do(t, http.MethodGet, "/api/health", nil, nil))
	if body["dept_codes_imported_at"] != "2025-04-02T10:00:00Z" {
		t.Fatalf("unexpected import time %v", body["dept_codes_imported_at"])
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/accounts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" ||
		rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("status=%d headers=%v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("foreign origin must not be allowed")
	}
}

func TestCollectDataAndTaskStatus(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/collect-data", map[string]string{}, nil)
	if rec.Code != http.StatusBadRequest || decode(t, rec)["error"] != "필수 파라미터 누락" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	rec = e.do(t, http.MethodPost, "/api/collect-data", map[string]string{"company_name": "SK일렉링크"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("manual company accepted: %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/collect-data", map[string]string{"company_name": "구쁘"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	id, _ := body["task_id"].(string)
	if id == "" || body["status"] != "started" {
		t.Fatalf("unexpected body %v", body)
	}
	if len(e.dispatcher.msgs) != 1 {
		t.Fatalf("expected one dispatched job, got %d", len(e.dispatcher.msgs))
	}
	msg := e.dispatcher.msgs[0]
	if msg.Kind != queue.JobCollect || msg.TaskID != id || msg.StartDate == "" || msg.EndDate == "" {
		t.Fatalf("unexpected job %+v", msg)
	}

	rec = e.do(t, http.MethodGet, "/api/task-status/"+id, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	body = decode(t, rec)
	if body["status"] != "starting" {
		t.Fatalf("unexpected task %v", body)
	}
	if lines, ok := body["log"].([]any); !ok || len(lines) != 1 || lines[0] != "구쁘 데이터 수집 시작" {
		t.Fatalf("task log missing under \"log\": %v", body)
	}
	rec = e.do(t, http.MethodGet, "/api/task-status/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUploadAndDownload(t *testing.T) {
	e := newTestEnv(t)

	rec := e.multipart(t, "/api/upload-file", map[string]string{"company_name": "디싸이더스/애드프로젝트", "file_label": "SMS", "file_index": "1"}, "file", "발송이력.xlsx", []byte("data"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	name := body["filename"].(string)
	if !strings.HasPrefix(name, "디싸이더스애드프로젝트_SMS_") || !strings.HasSuffix(name, "_발송이력.xlsx") || body["file_index"] != float64(1) {
		t.Fatalf("unexpected upload %v", body)
	}
	if _, err := os.Stat(filepath.Join(e.ws.Temp, name)); err != nil {
		t.Fatal(err)
	}

	rec = e.multipart(t, "/api/upload-file", map[string]string{"company_name": "구쁘", "file_label": "SMS", "collected_filename": "missing.xlsx"}, "", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	if err := os.WriteFile(filepath.Join(e.ws.Downloads, "2503_구쁘 청구내역서.xlsx"), []byte("xlsx"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec = e.do(t, http.MethodPost, "/api/auto-upload", map[string]any{"company_name": "구쁘", "collected_filename": "2503_구쁘 청구내역서.xlsx", "file_label": "SMS"}, nil)
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "파일 확인 완료" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}

	rec = e.do(t, http.MethodGet, "/api/download/2503_%EA%B5%AC%EC%81%98%20%EC%B2%AD%EA%B5%AC%EB%82%B4%EC%97%AD%EC%84%9C.xlsx", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "xlsx" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	rec = e.do(t, http.MethodGet, "/api/bill-pdf/none.pdf", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestFileLists(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/save-uploaded-files", map[string]any{"company_name": "구쁘", "uploaded_files": []string{"a.xlsx"}}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	if err := e.db.SetFileList(internal.FilesProcessed, "구쁘", []string{"2503_구쁘.xlsx"}); err != nil {
		t.Fatal(err)
	}

	body := decode(t, e.do(t, http.MethodGet, "/api/get-processed-files", nil, nil))
	uploaded := body["uploaded_files"].(map[string]any)["구쁘"].([]any)
	processed := body["processed_files"].(map[string]any)["구쁘"].(map[string]any)["processed_files"].([]any)
	if len(uploaded) != 1 || uploaded[0] != "a.xlsx" || len(processed) != 1 {
		t.Fatalf("unexpected lists %v", body)
	}

	rec = e.do(t, http.MethodPost, "/api/clear-processed-files", map[string]string{"company_name": "구쁘"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	body = decode(t, e.do(t, http.MethodGet, "/api/get-processed-files", nil, nil))
	if len(body["processed_files"].(map[string]any)) != 0 {
		t.Fatalf("processed list not cleared: %v", body)
	}
}

func TestProcessRejectsUnsupportedCompany(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/process-file", map[string]string{"company_name": "메디빌더", "collection_date": "2025-04-02"}, nil)
	if rec.Code != http.StatusBadRequest || decode(t, rec)["error"] != "메디빌더은 전처리를 지원하지 않습니다" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	rec = e.do(t, http.MethodPost, "/api/process-file", map[string]string{"company_name": "SK일렉링크", "collection_date": "2025-04-02"}, nil)
	if rec.Code != http.StatusInternalServerError || decode(t, rec)["error"] != "전처리 실패" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
}

func TestUploadBills(t *testing.T) {
	e := newTestEnv(t)
	rec := e.multipart(t, "/api/upload-bills", nil, "files", "notes.txt", []byte("x"))
	if rec.Code != http.StatusBadRequest || decode(t, rec)["error"] != "HTML 또는 PDF 파일이 없습니다" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}

	html := `<html><body><p>(주)메타엠 SK일렉링크 고객님 1,234,560원</p></body></html>`
	rec = e.multipart(t, "/api/upload-bills", nil, "files", "bill.html", []byte(html))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	amounts := decode(t, rec)["bill_amounts"].(map[string]any)
	sk, ok := amounts["SK일렉링크"].(map[string]any)
	if !ok || sk["amount"] != "1,234,560원" {
		t.Fatalf("unexpected amounts %v", amounts)
	}

	body := decode(t, e.do(t, http.MethodGet, "/api/bill-amounts", nil, nil))
	if _, ok := body["SK일렉링크"]; !ok {
		t.Fatalf("bill amount not stored: %v", body)
	}
}

func TestAccountsRequireAdminToWrite(t *testing.T) {
	e := newTestEnv(t)
	account := map[string]string{"company_name": "구쁘", "account_type": "sms", "username": "u", "password": "p"}

	if rec := e.do(t, http.MethodPost, "/api/accounts", account, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous create: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/accounts", account, map[string]string{"X-Employee-Id": "admin"}); rec.Code != http.StatusForbidden {
		t.Fatalf("header identity accepted: %d", rec.Code)
	}
	op := e.login(t, "op", "oper")
	if rec := e.do(t, http.MethodPost, "/api/accounts", account, op); rec.Code != http.StatusForbidden {
		t.Fatalf("operator create: %d", rec.Code)
	}
	admin := e.login(t, "admin", "admin")
	rec := e.do(t, http.MethodPost, "/api/accounts", account, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	id := url.PathEscape(decode(t, rec)["account_id"].(string))

	rec = e.do(t, http.MethodGet, "/api/accounts", nil, op)
	if rec.Code != http.StatusOK || len(decode(t, rec)["accounts"].([]any)) != 1 {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	rec = e.do(t, http.MethodPut, "/api/accounts/"+id, map[string]string{"notes": "메모"}, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	rec = e.do(t, http.MethodGet, "/api/accounts/"+id, nil, admin)
	if decode(t, rec)["notes"] != "메모" {
		t.Fatalf("update not applied: %s", rec.Body)
	}
	if rec := e.do(t, http.MethodDelete, "/api/accounts/"+id, nil, admin); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = e.do(t, http.MethodGet, "/api/accounts/"+id, nil, admin)
	if rec.Code != http.StatusNotFound || decode(t, rec)["error"] != "계정을 찾을 수 없습니다" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
}

// The admin screens call these endpoints without any session; the default
// shadow mode must keep serving them.
func TestShadowModeServesSessionlessScreens(t *testing.T) {
	e := newTestEnvMode(t, auth.ModeShadow)
	account := map[string]string{"company_name": "구쁘", "account_type": "sms", "username": "u", "password": "p"}

	rec := e.do(t, http.MethodGet, "/api/accounts", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/accounts", account, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", rec.Code, rec.Body)
	}
	id := url.PathEscape(decode(t, rec)["account_id"].(string))
	if rec := e.do(t, http.MethodPut, "/api/accounts/"+id, map[string]string{"notes": "메모"}, nil); rec.Code != http.StatusOK {
		t.Fatalf("update: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/api/accounts/"+id, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = e.do(t, http.MethodPut, "/api/admin-users/op", map[string]string{"name": "새이름"}, nil)
	if rec.Code != http.StatusOK || decode(t, rec)["success"] != true {
		t.Fatalf("profile: status=%d body=%s", rec.Code, rec.Body)
	}
	if rec := e.do(t, http.MethodPost, "/api/reset", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("reset: %d", rec.Code)
	}
}

func TestLoginAndProfile(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"employeeId": "op", "password": "bad"}, nil)
	if rec.Code != http.StatusUnauthorized || decode(t, rec)["success"] != false {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	rec = e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"employeeId": "op", "password": "oper"}, nil)
	body := decode(t, rec)
	if rec.Code != http.StatusOK || body["success"] != true || body["user"].(map[string]any)["employeeId"] != "op" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	if _, leaked := body["user"].(map[string]any)["PasswordHash"]; leaked {
		t.Fatal("password hash leaked")
	}

	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %s", rec.Body)
	}
	self := map[string]string{"Authorization": "Bearer " + token}
	rec = e.do(t, http.MethodPut, "/api/admin-users/op", map[string]string{"position": "팀장"}, self)
	if rec.Code != http.StatusOK || decode(t, rec)["user"].(map[string]any)["position"] != "팀장" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	rec = e.do(t, http.MethodPut, "/api/admin-users/op", map[string]string{"password": "abc"}, self)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("short password accepted: %d", rec.Code)
	}
	rec = e.do(t, http.MethodPut, "/api/admin-users/admin", map[string]string{"name": "x"}, self)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("operator edited another user: %d", rec.Code)
	}

	forged := map[string]string{"X-Employee-Id": "admin"}
	rec = e.do(t, http.MethodPut, "/api/admin-users/admin", map[string]string{"password": "pwnd"}, forged)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("forged header changed the admin password: %d", rec.Code)
	}
	if _, err := e.srv.deps.Auth.Login("admin", "admin"); err != nil {
		t.Fatalf("admin password changed: %v", err)
	}

	if rec := e.do(t, http.MethodPost, "/api/auth/logout", nil, self); rec.Code != http.StatusOK {
		t.Fatalf("logout: %d", rec.Code)
	}
	rec = e.do(t, http.MethodPut, "/api/admin-users/op", map[string]string{"position": "사원"}, self)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("revoked token still accepted: %d", rec.Code)
	}
}

func TestResetRequiresAdmin(t *testing.T) {
	e := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(e.ws.Temp, "upload.xlsx"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if rec := e.do(t, http.MethodPost, "/api/reset", nil, e.login(t, "op", "oper")); rec.Code != http.StatusForbidden {
		t.Fatalf("operator reset: %d", rec.Code)
	}
	rec := e.do(t, http.MethodPost, "/api/reset", nil, e.login(t, "admin", "admin"))
	if rec.Code != http.StatusOK || decode(t, rec)["success"] != true {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	if _, err := os.Stat(filepath.Join(e.ws.Temp, "upload.xlsx")); !os.IsNotExist(err) {
		t.Fatal("temp_processing not cleared")
	}
}

func TestExpenseAutomation(t *testing.T) {
	e := newTestEnv(t)
	csv := []byte("매출금액,표준적요,증빙유형,적요,프로젝트\n\"12,000\",156,3,OpenAI,D100\n,156,3,빈행,\n")
	fields := map[string]string{"start_date": "20250301", "end_date": "20250331", "user_id": "kim", "password": "pw"}

	rec := e.multipart(t, "/api/expense-automation", map[string]string{"start_date": "2025-03-01", "end_date": "20250331", "user_id": "kim", "password": "pw"}, "file", "card.csv", csv)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date accepted: %d", rec.Code)
	}
	rec = e.multipart(t, "/api/expense-automation", map[string]string{"start_date": "20250301"}, "file", "card.csv", csv)
	if rec.Code != http.StatusBadRequest || !strings.Contains(decode(t, rec)["error"].(string), "end_date, user_id, password") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}

	rec = e.multipart(t, "/api/expense-automation", fields, "file", "card.csv", csv)
	body := decode(t, rec)
	if rec.Code != http.StatusOK || body["success"] != true || body["processed_count"] != float64(1) || body["total_count"] != float64(2) {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	if e.submitter.batch.Category != expense.DefaultCategory || e.submitter.batch.Rows[0].EvidenceType != "003" {
		t.Fatalf("unexpected batch %+v", e.submitter.batch)
	}

	e.submitter.err = expense.ErrLoginFailed
	rec = e.multipart(t, "/api/expense-automation", fields, "file", "card.csv", csv)
	if rec.Code != http.StatusOK || decode(t, rec)["success"] != false {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
}

func TestUploadLimit(t *testing.T) {
	e := newTestEnv(t)
	big := bytes.Repeat([]byte("a"), 2<<20)
	rec := e.multipart(t, "/api/upload-file", map[string]string{"company_name": "구쁘"}, "file", "big.xlsx", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}
