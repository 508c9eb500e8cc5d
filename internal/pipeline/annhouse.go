package pipeline

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"billops/internal/sheets"
	"billops/internal/util"
)

const sheetCallFee = "통화료"

// annhouseTeam binds a team template to the team name in the call export and
// to the caller ID its messages go out from.
type annhouseTeam struct {
	team   string
	suffix string
	sender string
}

func annhouseTeamFor(template string) (annhouseTeam, bool) {
	base := path.Base(template)
	switch {
	case strings.Contains(base, "annhouse_CS"):
		return annhouseTeam{team: "CS팀", suffix: "CS", sender: "15888298"}, true
	case strings.Contains(base, "annhouse_TS"):
		return annhouseTeam{team: "엔하우스", suffix: "TS", sender: "15884611"}, true
	case base == "annhouse.xlsx":
		return annhouseTeam{team: "사업지원팀", suffix: "창업", sender: "15880656"}, true
	}
	return annhouseTeam{}, false
}

// keep reports whether a send-history row belongs to the team. The
// business support team also owns rows without a caller ID.
func (t annhouseTeam) keep(sender string) bool {
	key := util.PhoneKey(sender)
	if t.suffix == "창업" && key == "" {
		return true
	}
	return key == t.sender
}

var callTimeColumns = []struct {
	header string
	col    string
}{
	{"통화시간", "C"},
	{"콜시작시간", "D"},
	{"대기시작시간", "E"},
	{"링시작시간", "F"},
	{"통화시작시간", "G"},
	{"콜종료시간", "H"},
}

// callCharge prices one call: mobile numbers bill 10 won per started 10
// seconds, landlines 30 won per started 180 seconds.
type callCharge struct {
	Settlement string
	Seconds    int
	Units      int
	Amount     int
}

func chargeCall(customer, duration string) callCharge {
	c := callCharge{Settlement: "시내/시외", Seconds: parseHMS(duration)}
	unit, rate := 180, 30
	if strings.HasPrefix(strings.TrimSpace(customer), "010") {
		c.Settlement = "이동전화"
		unit, rate = 10, 10
	}
	c.Units = (c.Seconds + unit - 1) / unit
	c.Amount = c.Units * rate
	return c
}

func parseHMS(s string) int {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}

func (s *ProcessingService) processAnnhouse(ctx context.Context, j job) ([]string, error) {
	ups, err := s.uploads(j.company.Name, 0)
	if err != nil {
		return nil, err
	}
	if len(ups) > 2 {
		ups = ups[:2]
	}

	var (
		calls *sheets.Table
		sends *sheets.Table
	)
	for _, f := range ups {
		rows, err := sheets.ReadFile(f.Path)
		if err != nil {
			return nil, err
		}
		if t, err := sheets.NewTable(rows, "팀"); err == nil && calls == nil {
			calls = t
			continue
		}
		if t, err := sheets.NewTable(rows, "발송상태", "문자유형"); err == nil && sends == nil {
			sends = t
		}
	}
	if calls == nil {
		return nil, fmt.Errorf("%s: no call export among uploads: %w", j.company.Name, ErrInputMissing)
	}

	byTeam := map[string][][]string{}
	for _, row := range calls.Rows {
		team := calls.Get(row, "팀")
		byTeam[team] = append(byTeam[team], row)
	}

	contains := "annhouse"
	if len(j.company.Templates) > 0 {
		contains = j.company.Templates[0]
	}
	names, err := s.templates.List(ctx, contains)
	if err != nil {
		return nil, err
	}

	var produced []string
	for _, tplName := range names {
		team, ok := annhouseTeamFor(tplName)
		if !ok {
			j.logger.WarnContext(ctx, "template matches no team", "template", tplName)
			continue
		}
		rows, ok := byTeam[team.team]
		if !ok {
			j.logger.WarnContext(ctx, "no calls for team", "team", team.team)
			continue
		}
		name, err := s.annhouseInvoice(ctx, j, tplName, team, calls, rows, sends)
		if err != nil {
			return produced, err
		}
		produced = append(produced, name)
	}
	if len(produced) == 0 {
		return nil, fmt.Errorf("%s: no team invoice produced: %w", j.company.Name, ErrInputMissing)
	}
	return produced, nil
}

func (s *ProcessingService) annhouseInvoice(ctx context.Context, j job, tplName string, team annhouseTeam, calls *sheets.Table, rows [][]string, sends *sheets.Table) (string, error) {
	tpl, err := s.templates.Fetch(ctx, tplName)
	if err != nil {
		return "", err
	}
	iv, err := openInvoice(tpl, j.month)
	if err != nil {
		return "", err
	}
	defer iv.Close()
	iv.label = util.KoreanYearMonth(j.month)

	if err := iv.stamp(); err != nil {
		return "", err
	}

	if sends != nil {
		counts := countDelivered(sends, func(row []string) bool {
			return team.keep(sends.Get(row, "발신번호"))
		})
		if err := iv.setAll(sheetDetail, map[string]any{
			"D13": counts.SMS,
			"D14": counts.LMS,
			"D15": 0,
			"D16": counts.TALK,
		}); err != nil {
			return "", err
		}
		j.logger.InfoContext(ctx, "team messages counted", "team", team.team,
			"sms", counts.SMS, "lms", counts.LMS, "talk", counts.TALK)
	}

	if iv.hasSheet(sheetCallFee) {
		if err := fillCallFees(iv, calls, rows); err != nil {
			return "", err
		}
	}

	name := invoiceName(j.month, "앤하우스 수수료 청구내역서_"+team.suffix)
	if err := iv.saveAs(s.output(name)); err != nil {
		return "", err
	}
	return name, nil
}

// fillCallFees rewrites the call list from row 8 and the ICS usage grid of
// the 통화료 sheet.
func fillCallFees(iv *invoice, calls *sheets.Table, rows [][]string) error {
	f := iv.f
	if err := f.SetCellValue(sheetCallFee, "H3", iv.label); err != nil {
		return err
	}

	existing, err := f.GetRows(sheetCallFee)
	if err != nil {
		return err
	}
	for r := 8; r <= len(existing); r++ {
		for c := range existing[r-1] {
			if existing[r-1][c] == "" {
				continue
			}
			if err := f.SetCellValue(sheetCallFee, cellName(c+1, r), nil); err != nil {
				return err
			}
		}
	}

	for i, row := range rows {
		r := 8 + i
		set := func(col string, v any) error {
			return f.SetCellValue(sheetCallFee, fmt.Sprintf("%s%d", col, r), v)
		}
		if err := set("B", iv.label); err != nil {
			return err
		}
		for _, m := range callTimeColumns {
			if calls.Has(m.header) {
				if err := set(m.col, calls.Get(row, m.header)); err != nil {
					return err
				}
			}
		}
		charge := chargeCall(calls.Get(row, "고객번호"), calls.Get(row, "통화시간"))
		for col, v := range map[string]any{"I": charge.Settlement, "J": charge.Seconds, "K": charge.Units, "L": charge.Amount} {
			if err := set(col, v); err != nil {
				return err
			}
		}
	}

	days := util.DaysInMonth(iv.month.Year(), iv.month.Month())
	if err := f.SetCellValue(sheetCallFee, "AJ29", days); err != nil {
		return err
	}
	full := 0
	if days >= 31 {
		full = 1
	}
	for r := 31; r <= 38; r++ {
		if err := f.SetCellValue(sheetCallFee, fmt.Sprintf("AJ%d", r), 1); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetCallFee, fmt.Sprintf("AK%d", r), full); err != nil {
			return err
		}
	}
	return nil
}
