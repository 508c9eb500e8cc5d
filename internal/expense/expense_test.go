package expense

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"
)

func statementXLSX(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	data := statementXLSX(t, [][]any{
		{"카드 사용 내역"},
		{"매출일자", "매출금액", "표준적요", "증빙유형", "적요", "프로젝트"},
		{"2025-03-02", 12345.6, 156, 3, "OpenAI_GPT API 토큰 비용", "D100"},
		{"2025-03-03", "", 156, 3, "취소", "D100"},
		{"2025-03-04", "1,000", "156", "12", "AWS", 2001},
	})

	st, err := Parse(data, "카드내역.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 3 || len(st.Rows) != 2 {
		t.Fatalf("total=%d rows=%d", st.Total, len(st.Rows))
	}
	first := st.Rows[0]
	if first.Amount != "12345" || first.StandardSummary != "156" || first.EvidenceType != "003" || first.Project != "D100" {
		t.Fatalf("unexpected first row %+v", first)
	}
	second := st.Rows[1]
	if second.Amount != "1000" || second.EvidenceType != "012" || second.Note != "AWS" || second.Project != "2001" {
		t.Fatalf("unexpected second row %+v", second)
	}
}

func TestParseCSV(t *testing.T) {
	data := []byte("\xEF\xBB\xBF매출금액,표준적요,증빙유형,적요,프로젝트\n\"2,500\",156,003,점심,\n")
	st, err := Parse(data, "card.csv")
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Rows) != 1 || st.Rows[0].Amount != "2500" || st.Rows[0].EvidenceType != "003" {
		t.Fatalf("unexpected rows %+v", st.Rows)
	}
}

func TestValidatePeriod(t *testing.T) {
	tests := []struct {
		start, end string
		ok         bool
	}{
		{"20250301", "20250331", true},
		{"2025-03-01", "20250331", false},
		{"20250301", "2025031", false},
		{"20251301", "20251331", false},
		{"20250331", "20250301", false},
	}
	for _, tt := range tests {
		err := ValidatePeriod(tt.start, tt.end)
		if tt.ok && err != nil {
			t.Errorf("%s~%s: unexpected error %v", tt.start, tt.end, err)
		}
		if !tt.ok && !errors.Is(err, ErrBadPeriod) {
			t.Errorf("%s~%s: expected ErrBadPeriod, got %v", tt.start, tt.end, err)
		}
	}
}

const loginPage = `<html><body><form action="/login" method="post">
<input type="hidden" name="token" value="t0k">
<input id="userId" name="userId"><input id="userPw" name="userPw" type="password">
</form></body></html>`

type fakeGroupware struct {
	mu      sync.Mutex
	amounts []string
	tokens  []string
}

func (f *fakeGroupware) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(loginPage))
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.tokens = append(f.tokens, r.FormValue("token"))
		f.mu.Unlock()
		if r.FormValue("userId") != "kim" || r.FormValue("userPw") != "secret" {
			_, _ = w.Write([]byte(loginPage))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
		_, _ = w.Write([]byte("<html>main</html>"))
	})
	mux.HandleFunc("POST /save", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "ok" {
			http.Error(w, "no session", http.StatusUnauthorized)
			return
		}
		if r.FormValue("amount") == "0" || r.FormValue("category") == "" {
			http.Error(w, "bad row", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.amounts = append(f.amounts, r.FormValue("amount"))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	})
	return mux
}

func TestGroupwareSubmit(t *testing.T) {
	gw := &fakeGroupware{}
	srv := httptest.NewServer(gw.handler())
	defer srv.Close()

	client := NewGroupwareClient(GroupwareOptions{BaseURL: srv.URL, LoginPath: "/login", SubmitPath: "/save"})
	st, err := Parse([]byte("매출금액,표준적요\n1000,156\n2000,156\n"), "card.csv")
	if err != nil {
		t.Fatal(err)
	}
	st.Rows = append(st.Rows, st.Rows[0])
	st.Rows[2].Amount = "0"

	res, err := client.Submit(context.Background(), Credentials{UserID: "kim", Password: "secret"}, Batch{StartDate: "20250301", EndDate: "20250331", Rows: st.Rows})
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 2 || res.Total != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(gw.amounts) != 2 || gw.amounts[0] != "1000" || gw.amounts[1] != "2000" {
		t.Fatalf("unexpected submitted amounts %v", gw.amounts)
	}
	if len(gw.tokens) != 1 || gw.tokens[0] != "t0k" {
		t.Fatalf("hidden login fields not forwarded: %v", gw.tokens)
	}
}

func TestGroupwareSubmitBadLogin(t *testing.T) {
	gw := &fakeGroupware{}
	srv := httptest.NewServer(gw.handler())
	defer srv.Close()

	client := NewGroupwareClient(GroupwareOptions{BaseURL: srv.URL, LoginPath: "/login", SubmitPath: "/save"})
	_, err := client.Submit(context.Background(), Credentials{UserID: "kim", Password: "wrong"}, Batch{Rows: nil})
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
}
