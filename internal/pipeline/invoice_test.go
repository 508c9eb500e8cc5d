package pipeline

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestSplitVAT(t *testing.T) {
	cases := []struct {
		total int64
		net   int64
	}{
		{862120, 783745},
		{1000, 909},
		{11, 10},
		{14850, 13500},
		{16, 14},
		{0, 0},
	}
	for _, tc := range cases {
		if got := SplitVAT(tc.total); got != tc.net {
			t.Errorf("SplitVAT(%d) = %d, want %d", tc.total, got, tc.net)
		}
	}
	if VATOf(783745) != 78375 {
		t.Fatalf("unexpected vat %d", VATOf(783745))
	}
}

func TestInvoiceStamp(t *testing.T) {
	fx := newFixture(t)
	fx.standardTemplate(t, "base.xlsx")

	iv, err := openInvoice(filepath.Join(fx.tpls, "base.xlsx"), time.Date(2025, time.March, 1, 0, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatal(err)
	}
	defer iv.Close()
	if err := iv.stamp(); err != nil {
		t.Fatal(err)
	}

	if sheets := iv.f.GetSheetList(); !slices.Contains(sheets, "2025년 03월") || slices.Contains(sheets, "2025년 07월") {
		t.Fatalf("month sheet not renamed: %v", sheets)
	}
	expectCells(t, iv.f, sheetOfficial, map[string]string{
		"B9":  "문서번호  : MMP-2503",
		"B13": "제       목 : 2025년 03월 상담솔루션 서비스 수수료 정산 요청",
		"B16": "2025년 03월 사용분에 대한 수수료를 청구합니다.",
	})
	expectCells(t, iv.f, sheetDetail, map[string]string{"B9": "문서번호  : MMP-2503"})
	expectCells(t, iv.f, "2025년 03월", map[string]string{"B1": "2025년 03월 수수료 청구 금액"})

	formula, err := iv.f.GetCellFormula(sheetOfficial, "D24")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(formula, "'2025년 03월'!E20") {
		t.Fatalf("formula not retargeted: %q", formula)
	}
}
