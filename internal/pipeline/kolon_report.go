package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary  = "요약"
	sheetOverseas = "코오롱 해외결제"
)

var matchCSVHeader = []string{"매출일자", "승인시각", "매출금액", "계정", "표준적요", "증빙유형", "적요", "프로젝트"}

// writeMatchCSV writes every matched charge in the groupware upload layout,
// UTF-8 with BOM so Excel opens it as Korean text. projects maps an account
// to its department code; unmapped accounts stand for themselves.
func writeMatchCSV(path string, matches []chargeMatch, projects map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(utf8BOM); err != nil {
		_ = f.Close()
		return err
	}

	w := csv.NewWriter(f)
	_ = w.Write(matchCSVHeader)
	for _, m := range matches {
		account := m.Charge.Account
		project := projects[account]
		if project == "" {
			project = account
		}
		_ = w.Write([]string{
			m.Txn.SaleDate,
			m.Txn.ApprovalTime,
			m.Txn.KRW.String(),
			account,
			"156",
			"003",
			"OpenAI_GPT API 토큰 비용_" + account,
			project,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// writeKolonReport writes the summary workbook and returns the KRW total
// written to 요약!D3.
func writeKolonReport(path string, txns []cardTxn) (decimal.Decimal, error) {
	days, err := summaryDays(txns)
	if err != nil {
		return decimal.Zero, err
	}

	usdByDay := map[string]decimal.Decimal{}
	krwByDay := map[string]decimal.Decimal{}
	usdSum, krwSum := decimal.Zero, decimal.Zero
	for _, t := range txns {
		usdByDay[t.SaleDate] = usdByDay[t.SaleDate].Add(t.USD)
		krwByDay[t.SaleDate] = krwByDay[t.SaleDate].Add(t.KRW)
		usdSum = usdSum.Add(t.USD)
		krwSum = krwSum.Add(t.KRW)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return decimal.Zero, err
	}

	set := func(sheet string, col, row int, v any) {
		_ = f.SetCellValue(sheet, cellName(col, row), v)
	}
	set(sheetSummary, 2, 2, "")
	set(sheetSummary, 3, 2, "승인금액(USD)")
	set(sheetSummary, 4, 2, "승인금액(원화)")
	set(sheetSummary, 2, 3, "합계")
	set(sheetSummary, 3, 3, usdSum.InexactFloat64())
	set(sheetSummary, 4, 3, krwSum.InexactFloat64())
	for i, day := range days {
		r := 4 + i
		set(sheetSummary, 2, r, fmt.Sprintf("%s.%s.%s", day[:4], day[4:6], day[6:]))
		set(sheetSummary, 3, r, usdByDay[day].InexactFloat64())
		set(sheetSummary, 4, r, krwByDay[day].InexactFloat64())
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	plain, err := f.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		return decimal.Zero, err
	}
	total, err := f.NewStyle(&excelize.Style{
		Border: border,
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"92D050"}, Pattern: 1},
	})
	if err != nil {
		return decimal.Zero, err
	}
	lastRow := 3 + len(days)
	if err := f.SetCellStyle(sheetSummary, "B2", cellName(4, lastRow), plain); err != nil {
		return decimal.Zero, err
	}
	if err := f.SetCellStyle(sheetSummary, "B3", "D3", total); err != nil {
		return decimal.Zero, err
	}

	if _, err := f.NewSheet(sheetOverseas); err != nil {
		return decimal.Zero, err
	}
	for i, h := range []string{"매출일자", "승인시각", "해외접수달러금액", "기준환율", "해외사용수수료", "원화환산금액"} {
		set(sheetOverseas, i+1, 1, h)
	}
	for i, t := range txns {
		r := i + 2
		set(sheetOverseas, 1, r, t.SaleDate)
		set(sheetOverseas, 2, r, t.ApprovalTime)
		set(sheetOverseas, 3, r, t.USD.InexactFloat64())
		set(sheetOverseas, 4, r, numberOrText(t.Rate))
		set(sheetOverseas, 5, r, numberOrText(t.Fee))
		set(sheetOverseas, 6, r, t.KRW.InexactFloat64())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return decimal.Zero, err
	}
	if err := f.SaveAs(path); err != nil {
		return decimal.Zero, err
	}
	return krwSum, nil
}

func numberOrText(s string) any {
	if d, err := decimal.NewFromString(s); err == nil {
		return d.InexactFloat64()
	}
	return s
}
