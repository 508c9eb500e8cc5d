package pipeline

import (
	"context"
	"fmt"

	"billops/internal/sheets"
)

func (s *ProcessingService) processMathpresso(ctx context.Context, j job) ([]string, error) {
	total, err := s.billTotal(j.company.Name)
	if err != nil {
		return nil, err
	}
	ups, err := s.uploads(j.company.Name, s.opts.UploadFreshness)
	if err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("%s: no recent upload: %w", j.company.Name, ErrInputMissing)
	}
	rows, err := sheets.ReadFile(ups[0].Path)
	if err != nil {
		return nil, err
	}
	tbl, err := sheets.NewTable(rows, "발송상태", "문자유형")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ups[0].Name, err)
	}
	counts := countDelivered(tbl, nil)
	j.logger.InfoContext(ctx, "delivered messages counted", "file", ups[0].Name,
		"sms", counts.SMS, "lms", counts.LMS, "mms", counts.MMS, "talk", counts.TALK)

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
	if err := iv.setAll(sheetDetail, map[string]any{
		"E12": counts.SMS,
		"E13": counts.LMS,
		"E14": counts.MMS,
		"E15": counts.TALK,
		"F4":  SplitVAT(total),
	}); err != nil {
		return nil, err
	}

	name := invoiceName(j.month, "매스프레소(콴다)_청구내역서")
	if err := iv.saveAs(s.output(name)); err != nil {
		return nil, err
	}
	return []string{name}, nil
}
