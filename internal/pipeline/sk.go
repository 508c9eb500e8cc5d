package pipeline

import (
	"context"

	"billops/internal/util"
)

// metaLCSAccounts is the fixed MetaLCS seat count on the SK일렉링크 contract.
const metaLCSAccounts = 14

func (s *ProcessingService) processSK(ctx context.Context, j job) ([]string, error) {
	total, err := s.billTotal(j.company.Name)
	if err != nil {
		return nil, err
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
	days := util.DaysInMonth(j.month.Year(), j.month.Month())
	if err := iv.setAll(sheetDetail, map[string]any{
		"E4":  SplitVAT(total),
		"E8":  total,
		"E38": days,
	}); err != nil {
		return nil, err
	}
	j.logger.DebugContext(ctx, "metalcs usage", "accounts", metaLCSAccounts, "days", days)

	name := invoiceName(j.month, "SK일렉링크_청구내역서")
	if err := iv.saveAs(s.output(name)); err != nil {
		return nil, err
	}
	return []string{name}, nil
}
