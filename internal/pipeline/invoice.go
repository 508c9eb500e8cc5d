package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	sheetDetail   = "세부내역"
	sheetOfficial = "대외공문"
)

var (
	reMonthSpaced = regexp.MustCompile(`\d{4}년 \d{1,2}월`)
	reMonthTight  = regexp.MustCompile(`\d{4}년\d{1,2}월`)
	reMonthSheet  = regexp.MustCompile(`^\d{4}년 \d{1,2}월$`)
	reMonthRef    = regexp.MustCompile(`'\d{4}년 \d{1,2}월'!`)
)

// invoice is an invoice workbook opened from a template.
type invoice struct {
	f     *excelize.File
	month time.Time
	// label replaces every "YYYY년 M월" occurrence.
	label string
}

func openInvoice(templatePath string, month time.Time) (*invoice, error) {
	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("open template %s: %w", filepath.Base(templatePath), err)
	}
	return &invoice{f: f, month: month, label: sheetMonthLabel(month)}, nil
}

// sheetMonthLabel renders "2025년 03월".
func sheetMonthLabel(t time.Time) string {
	return fmt.Sprintf("%d년 %02d월", t.Year(), int(t.Month()))
}

func documentNumber(month time.Time) string {
	return "MMP-" + month.Format("0601")
}

func (iv *invoice) hasSheet(name string) bool {
	for _, s := range iv.f.GetSheetList() {
		if s == name {
			return true
		}
	}
	return false
}

// stamp applies the month to the parts every template shares: the document
// number, the cover letter title lines and formulas, and the monthly sheet.
func (iv *invoice) stamp() error {
	docNo := "문서번호  : " + documentNumber(iv.month)
	for _, s := range iv.f.GetSheetList() {
		if strings.Contains(s, sheetDetail) || strings.Contains(s, sheetOfficial) {
			if err := iv.f.SetCellValue(s, "B9", docNo); err != nil {
				return err
			}
		}
	}

	monthSheet := ""
	for _, s := range iv.f.GetSheetList() {
		if reMonthSheet.MatchString(s) {
			monthSheet = s
			break
		}
	}
	if monthSheet != "" && monthSheet != iv.label {
		if err := iv.f.SetSheetName(monthSheet, iv.label); err != nil {
			return fmt.Errorf("rename %s: %w", monthSheet, err)
		}
	}
	if monthSheet != "" {
		if err := iv.substitute(iv.label, "B1", reMonthSpaced); err != nil {
			return err
		}
	}

	if !iv.hasSheet(sheetOfficial) {
		return nil
	}
	if err := iv.substitute(sheetOfficial, "B13", reMonthSpaced); err != nil {
		return err
	}
	if err := iv.substitute(sheetOfficial, "B16", reMonthTight, reMonthSpaced); err != nil {
		return err
	}
	return iv.retargetFormulas(sheetOfficial)
}

// substitute rewrites the month inside a text cell with the first pattern
// that changes it.
func (iv *invoice) substitute(sheet, cell string, patterns ...*regexp.Regexp) error {
	old, err := iv.f.GetCellValue(sheet, cell)
	if err != nil || old == "" {
		return err
	}
	for _, re := range patterns {
		next := re.ReplaceAllString(old, iv.label)
		if next != old {
			return iv.f.SetCellValue(sheet, cell, next)
		}
	}
	return nil
}

// retargetFormulas points the cover letter totals at the renamed month sheet.
func (iv *invoice) retargetFormulas(sheet string) error {
	ref := "'" + iv.label + "'!"
	for row := 24; row <= 27; row++ {
		for _, col := range []string{"B", "C", "D"} {
			cell := fmt.Sprintf("%s%d", col, row)
			formula, err := iv.f.GetCellFormula(sheet, cell)
			if err != nil {
				return err
			}
			if formula == "" {
				continue
			}
			next := reMonthRef.ReplaceAllString(formula, ref)
			if next == formula {
				continue
			}
			if err := iv.f.SetCellFormula(sheet, cell, next); err != nil {
				return err
			}
		}
	}
	return nil
}

// setAll writes cells on sheet; a template without the sheet is left alone.
func (iv *invoice) setAll(sheet string, cells map[string]any) error {
	if !iv.hasSheet(sheet) {
		return nil
	}
	for cell, v := range cells {
		if err := iv.f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("%s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func (iv *invoice) saveAs(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return iv.f.SaveAs(path)
}

func (iv *invoice) Close() error {
	return iv.f.Close()
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}
