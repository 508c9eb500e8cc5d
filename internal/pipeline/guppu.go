package pipeline

import (
	"context"
	"strings"
	"time"

	"billops/internal/files"
	"billops/internal/sheets"
	"billops/internal/util"
)

// Columns of the 구쁘 send-history export, by position: F title, H status,
// I message type.
const (
	guppuTitleCol  = 5
	guppuStatusCol = 7
	guppuTypeCol   = 8
)

func (s *ProcessingService) processGuppu(ctx context.Context, j job) ([]string, error) {
	total, err := s.billTotal(j.company.Name)
	if err != nil {
		return nil, err
	}
	net := SplitVAT(total)

	var counts messageCounts
	ups, err := s.uploads(j.company.Name, 0)
	if err != nil {
		return nil, err
	}
	if f, ok := guppuHistory(ups); ok {
		rows, err := sheets.ReadFile(f.Path)
		if err != nil {
			return nil, err
		}
		counts = countGuppu(rows)
		j.logger.InfoContext(ctx, "delivered messages counted", "file", f.Name,
			"sms", counts.SMS, "lms", counts.LMS, "talk", counts.TALK)
	} else {
		j.logger.WarnContext(ctx, "no send history upload, message counts left at zero")
	}

	tpl, err := s.template(ctx, j, 0)
	if err != nil {
		return nil, err
	}
	iv, err := openInvoice(tpl, j.month)
	if err != nil {
		return nil, err
	}
	defer iv.Close()

	if err := iv.stamp(); err != nil {
		return nil, err
	}
	if err := iv.setAll("통신서비스 이용료", map[string]any{"D2": j.month.Format("2006-01")}); err != nil {
		return nil, err
	}
	cells := map[string]any{
		"E4":  net,
		"E7":  VATOf(net),
		"E8":  total,
		"D12": counts.SMS,
		"D13": counts.LMS,
		"D14": counts.MMS,
		"D15": counts.TALK,
	}
	for k, v := range icsUsageCells(j.month) {
		cells[k] = v
	}
	if err := iv.setAll(sheetDetail, cells); err != nil {
		return nil, err
	}

	name := invoiceName(j.month, "구쁘_상담솔루션 청구내역서")
	if err := iv.saveAs(s.output(name)); err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func guppuHistory(ups []files.Entry) (files.Entry, bool) {
	for _, f := range ups {
		if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			continue
		}
		if util.ContainsAny(f.Name, "SMS", "발송이력") {
			return f, true
		}
	}
	return files.Entry{}, false
}

// countGuppu counts successful sends. A title tagged SMS_ is an SMS whatever
// its type column says; MMS is not billed separately.
func countGuppu(rows [][]string) messageCounts {
	var c messageCounts
	if len(rows) < 2 {
		return c
	}
	for _, row := range rows[1:] {
		if sheets.At(row, guppuStatusCol) != "성공" {
			continue
		}
		title := sheets.At(row, guppuTitleCol)
		kind := sheets.At(row, guppuTypeCol)
		switch {
		case strings.Contains(title, "SMS_"):
			c.SMS++
		case strings.Contains(kind, "LMS/MMS"):
			c.LMS++
		case strings.Contains(kind, "알림톡"):
			c.TALK++
		}
	}
	return c
}

// icsUsageCells fills the per-day ICS usage grid: E35 is the month length
// and columns AJ/AK mark days 30 and 31 on rows 37-38. February also marks
// AH and clears AI through AK.
func icsUsageCells(month time.Time) map[string]any {
	last := util.DaysInMonth(month.Year(), month.Month())
	flag := func(ok bool) int {
		if ok {
			return 1
		}
		return 0
	}
	cells := map[string]any{"E35": last}
	for _, row := range []string{"37", "38"} {
		cells["AJ"+row] = flag(last >= 30)
		cells["AK"+row] = flag(last >= 31)
		if month.Month() == time.February {
			cells["AH"+row] = 1
			cells["AI"+row] = 0
			cells["AJ"+row] = 0
			cells["AK"+row] = 0
		}
	}
	return cells
}
