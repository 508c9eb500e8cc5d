package sheets

import (
	"fmt"
	"strings"

	"billops/internal/util"
)

// Table is a worksheet with a located header row.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable takes the first row holding every required column as the header.
// Title rows above the header, e.g. "통화내역", are skipped.
func NewTable(rows [][]string, required ...string) (*Table, error) {
	for i, row := range rows {
		header := make([]string, len(row))
		index := make(map[string]int, len(row))
		for j, h := range row {
			header[j] = util.NFC(strings.TrimSpace(h))
			if _, dup := index[header[j]]; !dup {
				index[header[j]] = j
			}
		}
		if hasAll(index, required) {
			return &Table{Header: header, Rows: rows[i+1:], index: index}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(required, ", "))
}

func hasAll(index map[string]int, cols []string) bool {
	for _, c := range cols {
		if _, ok := index[c]; !ok {
			return false
		}
	}
	return true
}

func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Find returns the first header containing any of the fragments.
func (t *Table) Find(fragments ...string) (string, bool) {
	for _, h := range t.Header {
		if util.ContainsAny(h, fragments...) {
			return h, true
		}
	}
	return "", false
}

// Get returns the trimmed cell of row under col, "" when absent.
func (t *Table) Get(row []string, col string) string {
	i, ok := t.index[col]
	if !ok {
		return ""
	}
	return At(row, i)
}

// At returns the trimmed cell at a zero-based column position.
func At(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return util.CellText(row[i])
}
