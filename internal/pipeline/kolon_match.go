package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"billops/internal/sheets"
	"billops/internal/util"
)

// matchTolerance is the largest USD gap between a card transaction and an
// API invoice line that still counts as the same charge.
var matchTolerance = decimal.RequireFromString("0.5")

// cardTxn is one overseas card transaction from the finance team export.
type cardTxn struct {
	ID           int
	SaleDate     string // YYYYMMDD
	ApprovalTime string // HHMMSS
	SaleAmount   decimal.Decimal
	USD          decimal.Decimal // 해외접수달러금액
	KRW          decimal.Decimal // 원화환산금액
	Rate         string          // 기준환율
	Fee          string          // 해외사용수수료
}

// apiCharge is one line of the OpenAI billing export.
type apiCharge struct {
	At      time.Time
	USD     decimal.Decimal
	Account string
}

func (c apiCharge) Day() string {
	if c.At.IsZero() {
		return ""
	}
	return c.At.Format("20060102")
}

type chargeMatch struct {
	Txn    cardTxn
	Charge apiCharge
	Diff   decimal.Decimal
}

func zfill(s string, n int) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".0")
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

func decimalCell(s string) decimal.Decimal {
	d, _ := util.ParseDecimal(s)
	return d
}

func parseCardTxns(tbl *sheets.Table) []cardTxn {
	out := make([]cardTxn, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		date := tbl.Get(row, "매출일자")
		if date == "" {
			continue
		}
		out = append(out, cardTxn{
			ID:           len(out) + 1,
			SaleDate:     zfill(date, 8)[:8],
			ApprovalTime: zfill(tbl.Get(row, "승인시각"), 6),
			SaleAmount:   decimalCell(tbl.Get(row, "매출금액")),
			USD:          decimalCell(tbl.Get(row, "해외접수달러금액")),
			KRW:          decimalCell(tbl.Get(row, "원화환산금액")),
			Rate:         tbl.Get(row, "기준환율"),
			Fee:          tbl.Get(row, "해외사용수수료"),
		})
	}
	return out
}

var reKoreanDateTime = regexp.MustCompile(`^(\d{4})년\s+(\d{1,2})월\s+(\d{1,2})일\s+(오전|오후)\s+(\d{1,2}):(\d{2})`)

// parseKoreanDateTime reads "2025년 7월 30일 오후 10:13".
func parseKoreanDateTime(s string) (time.Time, bool) {
	m := reKoreanDateTime.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	n := make([]int, 0, 5)
	for _, part := range []string{m[1], m[2], m[3], m[5], m[6]} {
		v, err := strconv.Atoi(part)
		if err != nil {
			return time.Time{}, false
		}
		n = append(n, v)
	}
	hour := n[3]
	switch {
	case m[4] == "오후" && hour < 12:
		hour += 12
	case m[4] == "오전" && hour == 12:
		hour = 0
	}
	return time.Date(n[0], time.Month(n[1]), n[2], hour, n[4], 0, 0, time.Local), true
}

func parseAPICharges(tbl *sheets.Table) []apiCharge {
	out := make([]apiCharge, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		at, _ := parseKoreanDateTime(tbl.Get(row, "날짜"))
		usd, ok := util.ParseDecimal(tbl.Get(row, "금액"))
		if !ok {
			continue
		}
		out = append(out, apiCharge{At: at, USD: usd, Account: tbl.Get(row, "계정")})
	}
	return out
}

// matchCharges pairs every card transaction with the first same-day API
// charge that has an account and lies within matchTolerance.
func matchCharges(txns []cardTxn, charges []apiCharge) (matched []chargeMatch, unmatched []cardTxn) {
	byDay := map[string][]apiCharge{}
	for _, c := range charges {
		if day := c.Day(); day != "" {
			byDay[day] = append(byDay[day], c)
		}
	}
	for _, t := range txns {
		found := false
		for _, c := range byDay[t.SaleDate] {
			diff := t.USD.Sub(c.USD).Abs()
			if c.Account == "" || diff.GreaterThan(matchTolerance) {
				continue
			}
			matched = append(matched, chargeMatch{Txn: t, Charge: c, Diff: diff})
			found = true
			break
		}
		if !found {
			unmatched = append(unmatched, t)
		}
	}
	return matched, unmatched
}

// summaryDays lists the summary rows: dates outside the main month in the
// order they occur, then every day of the main month. The main month is the
// month of the first transaction.
func summaryDays(txns []cardTxn) ([]string, error) {
	if len(txns) == 0 {
		return nil, nil
	}
	main, err := time.ParseInLocation("20060102", txns[0].SaleDate, time.Local)
	if err != nil {
		return nil, fmt.Errorf("sale date %q: %w", txns[0].SaleDate, err)
	}
	prefix := main.Format("200601")

	var days []string
	seen := map[string]bool{}
	for _, t := range txns {
		if !strings.HasPrefix(t.SaleDate, prefix) && !seen[t.SaleDate] {
			seen[t.SaleDate] = true
			days = append(days, t.SaleDate)
		}
	}
	last := util.DaysInMonth(main.Year(), main.Month())
	for d := 1; d <= last; d++ {
		days = append(days, fmt.Sprintf("%s%02d", prefix, d))
	}
	return days, nil
}
