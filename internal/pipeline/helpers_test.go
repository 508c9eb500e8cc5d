package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"billops/internal"
	"billops/internal/catalog"
	"billops/internal/files"
	"billops/internal/storage"
	"billops/internal/templates"
)

type fixture struct {
	svc  *ProcessingService
	db   *storage.DB
	ws   *files.Workspace
	tpls string
}

func newFixture(t *testing.T) *fixture {
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
	tpls := filepath.Join(root, "templates")
	if err := os.MkdirAll(tpls, 0o755); err != nil {
		t.Fatal(err)
	}
	svc := NewProcessingService(db, ws, templates.LocalSource{Dir: tpls}, catalog.Default(), Options{UploadFreshness: time.Hour})
	svc.now = func() time.Time { return time.Date(2025, time.April, 2, 10, 0, 0, 0, time.Local) }
	return &fixture{svc: svc, db: db, ws: ws, tpls: tpls}
}

// sheetSpec is one worksheet of a generated workbook: cell values, and
// formulas keyed by cell.
type sheetSpec struct {
	name     string
	cells    map[string]any
	formulas map[string]string
}

func writeWorkbook(t *testing.T, path string, specs ...sheetSpec) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, s := range specs {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				t.Fatal(err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			t.Fatal(err)
		}
		for cell, v := range s.cells {
			if err := f.SetCellValue(s.name, cell, v); err != nil {
				t.Fatal(err)
			}
		}
		for cell, formula := range s.formulas {
			if err := f.SetCellFormula(s.name, cell, formula); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

// writeRows writes rows into the first sheet of a new workbook.
func writeRows(t *testing.T, path string, rows [][]any) {
	t.Helper()
	cells := map[string]any{}
	for r, row := range rows {
		for c, v := range row {
			cells[cellName(c+1, r+1)] = v
		}
	}
	writeWorkbook(t, path, sheetSpec{name: "Sheet1", cells: cells})
}

// standardTemplate has the sheets every invoice template shares.
func (fx *fixture) standardTemplate(t *testing.T, name string, extra ...sheetSpec) {
	t.Helper()
	specs := []sheetSpec{
		{
			name: sheetOfficial,
			cells: map[string]any{
				"B9":  "문서번호  : MMP-0000",
				"B13": "제       목 : 2025년 07월 상담솔루션 서비스 수수료 정산 요청",
				"B16": "2025년7월 사용분에 대한 수수료를 청구합니다.",
			},
			formulas: map[string]string{"D24": "'2025년 07월'!E20"},
		},
		{name: "2025년 07월", cells: map[string]any{"B1": "2025년 07월 수수료 청구 금액"}},
		{name: sheetDetail, cells: map[string]any{"B9": ""}},
	}
	writeWorkbook(t, filepath.Join(fx.tpls, name), append(specs, extra...)...)
}

func (fx *fixture) setBill(t *testing.T, company, amount string) {
	t.Helper()
	if err := fx.db.SaveBillAmounts(map[string]internal.BillAmount{company: {Amount: amount, UpdateDate: "04/01"}}); err != nil {
		t.Fatal(err)
	}
}

func (fx *fixture) upload(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(fx.ws.Temp, name)
}

func openOutput(t *testing.T, fx *fixture, name string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(filepath.Join(fx.ws.Downloads, name))
	if err != nil {
		t.Fatalf("open output %s: %v", name, err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cellValue(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell)
	if err != nil {
		t.Fatalf("%s!%s: %v", sheet, cell, err)
	}
	return v
}

func expectCells(t *testing.T, f *excelize.File, sheet string, want map[string]string) {
	t.Helper()
	for cell, w := range want {
		if got := cellValue(t, f, sheet, cell); got != w {
			t.Errorf("%s!%s = %q, want %q", sheet, cell, got, w)
		}
	}
}

func march2025() time.Time {
	return time.Date(2025, time.March, 15, 0, 0, 0, 0, time.Local)
}
