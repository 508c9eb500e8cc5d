package expense

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"billops/internal"
	"billops/internal/sheets"
	"billops/internal/util"
)

const (
	DefaultCategory = "해외결제 법인카드"
	periodLayout    = "20060102"
)

var (
	ErrBadPeriod = errors.New("날짜 형식이 올바르지 않습니다 (YYYYMMDD)")
	ErrNoRows    = errors.New("처리할 데이터가 없습니다")
)

const (
	colAmount   = "매출금액"
	colSummary  = "표준적요"
	colEvidence = "증빙유형"
	colNote     = "적요"
	colProject  = "프로젝트"
)

// Statement is a parsed card statement.
type Statement struct {
	Rows []internal.ExpenseRow
	// Total counts every data row, including the ones without an amount.
	Total int
}

// Parse reads a csv, xls or xlsx card statement.
func Parse(data []byte, filename string) (Statement, error) {
	raw, err := sheets.ReadRows(data, filename)
	if err != nil {
		return Statement{}, err
	}
	table, err := sheets.NewTable(raw, colAmount)
	if err != nil {
		return Statement{}, err
	}

	st := Statement{}
	for _, row := range table.Rows {
		st.Total++
		amount := cleanAmount(table.Get(row, colAmount))
		if amount == "" {
			continue
		}
		st.Rows = append(st.Rows, internal.ExpenseRow{
			Amount:          amount,
			StandardSummary: cleanText(table.Get(row, colSummary)),
			EvidenceType:    evidenceType(table.Get(row, colEvidence)),
			Note:            cleanText(table.Get(row, colNote)),
			Project:         cleanText(table.Get(row, colProject)),
		})
	}
	return st, nil
}

// ValidatePeriod checks a YYYYMMDD start and end.
func ValidatePeriod(start, end string) error {
	if len(start) != 8 || len(end) != 8 {
		return ErrBadPeriod
	}
	from, err := time.Parse(periodLayout, start)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadPeriod, start)
	}
	to, err := time.Parse(periodLayout, end)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadPeriod, end)
	}
	if to.Before(from) {
		return fmt.Errorf("%w: %s < %s", ErrBadPeriod, end, start)
	}
	return nil
}

// cleanAmount drops separators and any fraction: "12,345.60" -> "12345".
func cleanAmount(s string) string {
	d, ok := util.ParseDecimal(s)
	if !ok || d.IsZero() {
		return ""
	}
	return d.Truncate(0).String()
}

// cleanText turns numeric cells read as floats back into integers.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "eE") {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// evidenceType zero-pads numeric codes to three digits: "3" -> "003".
func evidenceType(s string) string {
	s = cleanText(s)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return s
	}
	return fmt.Sprintf("%03d", n)
}
