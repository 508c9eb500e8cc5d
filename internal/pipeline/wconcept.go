package pipeline

import (
	"context"
	"errors"
)

// W컨셉 is billed one month in arrears.
func (s *ProcessingService) processWConcept(ctx context.Context, j job) ([]string, error) {
	month := j.month.AddDate(0, -1, 0)
	licenses := j.req.LicenseCount
	if licenses <= 0 {
		licenses = s.opts.DefaultLicenseCount
	}

	tpl, err := s.template(ctx, j, 0)
	if err != nil {
		return nil, err
	}
	iv, err := openInvoice(tpl, month)
	if err != nil {
		return nil, err
	}
	defer iv.Close()

	if err := iv.stamp(); err != nil {
		return nil, err
	}
	cells := map[string]any{"D5": licenses}
	total, err := s.billTotal(j.company.Name)
	switch {
	case err == nil:
		cells["E17"] = SplitVAT(total)
		cells["E21"] = total
	case errors.Is(err, ErrBillAmountMissing):
		j.logger.WarnContext(ctx, "no bill amount, invoice keeps template amounts")
	default:
		return nil, err
	}
	if err := iv.setAll(sheetDetail, cells); err != nil {
		return nil, err
	}

	name := invoiceName(month, "W컨셉_청구내역서")
	if err := iv.saveAs(s.output(name)); err != nil {
		return nil, err
	}
	return []string{name}, nil
}
