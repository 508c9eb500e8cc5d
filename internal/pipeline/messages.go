package pipeline

import (
	"billops/internal/sheets"
)

const delivered = "성공(전달)"

type messageCounts struct {
	SMS  int
	LMS  int
	MMS  int
	TALK int
}

// countDelivered tallies the delivered rows of a send-history export that
// keep accepts; a nil keep accepts every row.
func countDelivered(tbl *sheets.Table, keep func(row []string) bool) messageCounts {
	var c messageCounts
	for _, row := range tbl.Rows {
		if tbl.Get(row, "발송상태") != delivered {
			continue
		}
		if keep != nil && !keep(row) {
			continue
		}
		c.count(tbl.Get(row, "문자유형"))
	}
	return c
}

// count files one message under its billing type. Exports spell the types
// either bare or with the site's suffix, e.g. "LMS/MMS", "TALK(알림톡)".
func (c *messageCounts) count(kind string) {
	switch kind {
	case "SMS":
		c.SMS++
	case "LMS", "LMS/MMS":
		c.LMS++
	case "MMS":
		c.MMS++
	case "TALK", "TALK(알림톡)":
		c.TALK++
	}
}
