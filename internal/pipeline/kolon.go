package pipeline

import (
	"context"
	"errors"
	"fmt"

	"billops/internal/files"
	"billops/internal/sheets"
	"billops/internal/util"
)

// ErrNoMatches means no card transaction matched an API charge.
var ErrNoMatches = errors.New("no matching transactions")

const kolonAccount = "코오롱"

// processKolon reconciles the finance team's overseas card export with the
// OpenAI billing export, then bills the 코오롱 account's share.
func (s *ProcessingService) processKolon(ctx context.Context, j job) ([]string, error) {
	ups, err := s.uploads(j.company.Name, 0)
	if err != nil {
		return nil, err
	}
	cards, charges, err := kolonInputs(ups)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", j.company.Name, err)
	}
	txns := parseCardTxns(cards)
	apiCharges := parseAPICharges(charges)

	matched, unmatched := matchCharges(txns, apiCharges)
	j.logger.InfoContext(ctx, "transactions matched", "matched", len(matched), "unmatched", len(unmatched), "charges", len(apiCharges))
	if len(matched) == 0 {
		return nil, fmt.Errorf("%s: %w", j.company.Name, ErrNoMatches)
	}

	projects, err := s.db.DeptCodes()
	if err != nil {
		return nil, err
	}
	stamp := s.now().Format("20060102_150405")
	ym := j.month.Format("200601")

	csvName := fmt.Sprintf("OpenAI_정확매칭결과_%s_%s.csv", stamp, ym)
	if err := writeMatchCSV(s.output(csvName), matched, projects); err != nil {
		return nil, err
	}
	produced := []string{csvName}

	var own []cardTxn
	for _, m := range matched {
		if m.Charge.Account == kolonAccount {
			own = append(own, m.Txn)
		}
	}
	if len(own) == 0 {
		j.logger.WarnContext(ctx, "no transactions for account, only the match file was written", "account", kolonAccount)
		return produced, nil
	}

	reportName := fmt.Sprintf("코오롱_청구내역서_%s_%s.xlsx", stamp, ym)
	krw, err := writeKolonReport(s.output(reportName), own)
	if err != nil {
		return produced, err
	}
	produced = append(produced, reportName)

	total := krw.Round(0).IntPart()
	tpl, err := s.template(ctx, j, 0)
	if err != nil {
		return produced, err
	}
	iv, err := openInvoice(tpl, j.month)
	if err != nil {
		return produced, err
	}
	defer iv.Close()

	if err := iv.stamp(); err != nil {
		return produced, err
	}
	if err := iv.setAll(sheetDetail, map[string]any{
		"E12": SplitVAT(total),
		"E15": total,
		"E36": util.DaysInMonth(j.month.Year(), j.month.Month()),
	}); err != nil {
		return produced, err
	}
	name := invoiceName(j.month, "코오롱FnC_상담솔루션 청구내역서")
	if err := iv.saveAs(s.output(name)); err != nil {
		return produced, err
	}
	return append(produced, name), nil
}

// kolonInputs picks the newest finance export (has 매출일자) and the newest
// OpenAI export (has 날짜) among the uploads.
func kolonInputs(ups []files.Entry) (cards, charges *sheets.Table, err error) {
	for _, f := range ups {
		if cards != nil && charges != nil {
			break
		}
		rows, err := sheets.ReadFile(f.Path)
		if err != nil {
			return nil, nil, err
		}
		if cards == nil {
			if t, err := sheets.NewTable(rows, "매출일자", "해외접수달러금액", "원화환산금액"); err == nil {
				cards = t
				continue
			}
		}
		if charges == nil {
			if t, err := sheets.NewTable(rows, "날짜", "금액", "계정"); err == nil {
				charges = t
			}
		}
	}
	switch {
	case cards == nil:
		return nil, nil, fmt.Errorf("finance card export: %w", ErrInputMissing)
	case charges == nil:
		return nil, nil, fmt.Errorf("openai billing export: %w", ErrInputMissing)
	}
	return cards, charges, nil
}
