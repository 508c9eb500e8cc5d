package sheets

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"billops/internal/util"
)

var (
	ErrEmpty         = errors.New("worksheet is empty")
	ErrMissingColumn = errors.New("required column missing")
)

const maxXLSRows = 100000

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadFile reads the first worksheet of a spreadsheet export.
func ReadFile(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rows, err := ReadRows(data, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// ReadRows decodes xls, xlsx and csv data. SMS-site exports are often HTML
// tables saved with an .xls extension; those are detected by content.
func ReadRows(data []byte, filename string) ([][]string, error) {
	var (
		rows [][]string
		err  error
	)
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".csv":
		rows, err = readCSV(data)
	case looksLikeHTML(data):
		rows, err = readHTMLTable(data)
	case ext == ".xls":
		rows, err = readXLS(data)
	default:
		rows, err = readXLSX(data)
	}
	if err != nil {
		return nil, err
	}
	rows = dropEmpty(rows)
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	return rows, nil
}

func readXLS(data []byte) ([][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if workbook.NumSheets() == 0 {
		return nil, fmt.Errorf("no worksheet found")
	}
	return workbook.ReadAllCells(maxXLSRows), nil
}

func readXLSX(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no worksheet found")
	}
	return file.GetRows(sheetName)
}

func readCSV(data []byte) ([][]string, error) {
	var r io.Reader
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		r = bytes.NewReader(data[len(utf8BOM):])
	case utf8.Valid(data):
		r = bytes.NewReader(data)
	default:
		r = transform.NewReader(bytes.NewReader(data), korean.EUCKR.NewDecoder())
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func looksLikeHTML(data []byte) bool {
	head := data
	if len(head) > 2048 {
		head = head[:2048]
	}
	lower := bytes.ToLower(head)
	return bytes.Contains(lower, []byte("<html")) || bytes.Contains(lower, []byte("<table"))
}

func readHTMLTable(data []byte) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no table found")
	}
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, util.CollapseSpaces(cell.Text()))
		})
		rows = append(rows, cells)
	})
	return rows, nil
}

func dropEmpty(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		for _, c := range row {
			if util.CellText(c) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
