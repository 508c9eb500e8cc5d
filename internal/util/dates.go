package util

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// YYMM formats the invoice prefix, e.g. 2025-03 -> "2503".
func YYMM(t time.Time) string {
	return t.Format("0601")
}

// KoreanYearMonth renders "2025년 3월".
func KoreanYearMonth(t time.Time) string {
	return fmt.Sprintf("%d년 %d월", t.Year(), int(t.Month()))
}

// PreviousMonth returns the first and last day of the month before now.
func PreviousMonth(now time.Time) (time.Time, time.Time) {
	firstThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	start := firstThis.AddDate(0, -1, 0)
	end := firstThis.AddDate(0, 0, -1)
	return start, end
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.Local)
}
