package pipeline

import (
	"errors"
	"fmt"
	"time"

	"billops/internal"
	"billops/internal/sheets"
	"billops/internal/storage"
	"billops/internal/util"
)

var ErrNoDeptCodes = errors.New("no department codes in sheet")

// deptHeaders are the accepted name/code header pairs. The groupware export
// uses DEPT_NM and DEPT_CD.
var deptHeaders = [][2]string{
	{"DEPT_NM", "DEPT_CD"},
	{"부서명", "부서코드"},
	{"dept_name", "dept_code"},
}

// ImportDeptCodes loads a department code sheet (csv, xls or xlsx) into
// dept_codes, which the 코오롱Fnc match file uses for its 프로젝트 column.
// Existing names are overwritten; names missing from the sheet are kept.
func ImportDeptCodes(db *storage.DB, path string, now time.Time) (int, error) {
	rows, err := sheets.ReadFile(path)
	if err != nil {
		return 0, err
	}
	codes, err := parseDeptCodes(rows)
	if err != nil {
		return 0, fmt.Errorf("dept codes: %w", err)
	}
	if err := db.UpsertDeptCodes(codes); err != nil {
		return 0, err
	}
	if err := db.SetMetadata(storage.MetaDeptCodesImportedAt, now.UTC().Format(time.RFC3339)); err != nil {
		return 0, err
	}
	return len(codes), nil
}

func parseDeptCodes(rows [][]string) ([]internal.DeptCode, error) {
	var lastErr error
	for _, h := range deptHeaders {
		tbl, err := sheets.NewTable(rows, h[0], h[1])
		if err != nil {
			lastErr = err
			continue
		}
		index := map[string]int{}
		var out []internal.DeptCode
		for _, row := range tbl.Rows {
			name, code := util.NFC(tbl.Get(row, h[0])), tbl.Get(row, h[1])
			if name == "" || code == "" {
				continue
			}
			// later rows win, as they would in the upsert
			if i, ok := index[name]; ok {
				out[i].DeptCode = code
				continue
			}
			index[name] = len(out)
			out = append(out, internal.DeptCode{DeptName: name, DeptCode: code})
		}
		if len(out) == 0 {
			return nil, ErrNoDeptCodes
		}
		return out, nil
	}
	return nil, lastErr
}
