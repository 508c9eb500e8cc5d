package bills

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"billops/internal"
	"billops/internal/catalog"
	"billops/internal/files"
	"billops/internal/log"
	"billops/internal/storage"
	"billops/internal/util"
)

// ErrNoBills means none of the uploaded files was an HTML or PDF bill.
var ErrNoBills = errors.New("no html or pdf bills")

// Upload is one bill file as received from the API or a mail attachment.
type Upload struct {
	Name string
	Data []byte
}

type Service struct {
	db     *storage.DB
	ws     *files.Workspace
	index  *catalog.Index
	logger *log.Logger
	now    func() time.Time
}

func NewService(db *storage.DB, ws *files.Workspace, cat *catalog.Catalog, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		db:     db,
		ws:     ws,
		index:  catalog.BuildIndex(cat),
		logger: logger.WithComponent(log.ComponentBills),
		now:    time.Now,
	}
}

// Accepted reports whether name is an HTML or PDF bill.
func Accepted(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".pdf":
		return true
	}
	return false
}

// Ingest reads every accepted bill, records the amounts and archive files it
// finds and returns the full stored amount map. Unrecognized bills are
// logged and skipped.
func (s *Service) Ingest(ctx context.Context, uploads []Upload) (map[string]internal.BillAmount, error) {
	current, err := s.db.BillAmounts()
	if err != nil {
		return nil, err
	}
	changed := map[string]internal.BillAmount{}
	accepted := 0

	for _, up := range uploads {
		if !Accepted(up.Name) {
			s.logger.DebugContext(ctx, "ignoring non-bill file", log.FieldFile, up.Name)
			continue
		}
		accepted++

		lookup := func(company string) internal.BillAmount {
			if b, ok := changed[company]; ok {
				return b
			}
			return current[company]
		}
		ingest := s.ingestHTML
		if strings.EqualFold(filepath.Ext(up.Name), ".pdf") {
			ingest = s.ingestPDF
		}
		company, rec, err := ingest(ctx, up, lookup)
		if err != nil {
			s.logger.WarnContext(ctx, "bill skipped", log.FieldFile, up.Name, log.FieldError, err)
			continue
		}
		rec.Company = company
		changed[company] = rec
	}
	if accepted == 0 {
		return nil, ErrNoBills
	}

	if len(changed) > 0 {
		if err := s.db.SaveBillAmounts(changed); err != nil {
			return nil, fmt.Errorf("save bill amounts: %w", err)
		}
	}
	s.logger.InfoContext(ctx, "bills ingested", "files", accepted, "updated", len(changed))
	return s.db.BillAmounts()
}

// ErrUnknownCustomer means a bill names no catalog company.
var ErrUnknownCustomer = errors.New("bill customer not recognized")

var reCustomer = []*regexp.Regexp{
	regexp.MustCompile(`\(주\)메타엠[_\s]*([가-힣\p{L}\p{N}_\s/()]+?)\s+고객님`),
	regexp.MustCompile(`㈜메타엠[_\s]*([가-힣\p{L}\p{N}_\s/()]+?)\s+고객님`),
}

// Customer finds the "(주)메타엠 <name> 고객님" greeting and maps the name to
// a catalog company.
func (s *Service) Customer(text string) (string, bool) {
	for _, re := range reCustomer {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			raw := strings.TrimSpace(strings.SplitN(strings.TrimSpace(m[1]), "\n", 2)[0])
			if company, ok := s.index.CompanyForBillName(raw); ok {
				return company, true
			}
		}
	}
	return "", false
}

// Amount returns the last "<customer> 고객님 <n>원" amount for company.
func (s *Service) Amount(company, text string) (string, bool) {
	re := s.index.Catalog().AmountPattern(company)
	if re == nil {
		return "", false
	}
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	m := matches[len(matches)-1]
	return strings.TrimSpace(m[len(m)-1]), true
}

func (s *Service) ingestHTML(ctx context.Context, up Upload, lookup func(string) internal.BillAmount) (string, internal.BillAmount, error) {
	text, locked, err := HTMLText(up.Data)
	if err != nil {
		return "", internal.BillAmount{}, err
	}
	company, ok := s.Customer(text)
	if !ok {
		if locked {
			return "", internal.BillAmount{}, fmt.Errorf("password protected bill: %w", ErrUnknownCustomer)
		}
		return "", internal.BillAmount{}, ErrUnknownCustomer
	}
	amount, ok := s.Amount(company, text)
	if !ok {
		return "", internal.BillAmount{}, fmt.Errorf("%s: no amount on bill", company)
	}

	archive, err := s.archiveHTML(company, up.Data)
	if err != nil {
		return "", internal.BillAmount{}, err
	}
	rec := lookup(company)
	rec.Amount = amount
	rec.UpdateDate = s.now().Format("01/02")
	rec.ImagePath = archive
	s.logger.InfoContext(ctx, "html bill read", log.FieldCompany, company, log.FieldFile, up.Name, "amount", amount)
	return company, rec, nil
}

// archiveHTML keeps one {customer}_{YYYYmmdd}_통신비.html per customer.
func (s *Service) archiveHTML(company string, data []byte) (string, error) {
	prefix := archivePrefix(company)
	name := fmt.Sprintf("%s_%s_통신비.html", prefix, s.now().Format("20060102"))
	old, _ := filepath.Glob(filepath.Join(s.ws.BillImages, prefix+"_*_통신비.*"))
	for _, p := range old {
		_ = os.Remove(p)
	}
	if err := os.WriteFile(filepath.Join(s.ws.BillImages, name), data, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

func archivePrefix(company string) string {
	first, _, _ := strings.Cut(company, "/")
	return util.SafeCompany(first)
}

func (s *Service) ingestPDF(ctx context.Context, up Upload, lookup func(string) internal.BillAmount) (string, internal.BillAmount, error) {
	name := util.NFC(filepath.Base(up.Name))
	company, ok := s.index.CompanyForPDF(name)
	if !ok {
		return "", internal.BillAmount{}, ErrUnknownCustomer
	}
	if err := os.WriteFile(filepath.Join(s.ws.BillPDFs, name), up.Data, 0o644); err != nil {
		return "", internal.BillAmount{}, err
	}
	entries, err := os.ReadDir(s.ws.BillPDFs)
	if err != nil {
		return "", internal.BillAmount{}, err
	}
	for _, e := range entries {
		other := util.NFC(e.Name())
		if other == name || e.IsDir() {
			continue
		}
		if c, ok := s.index.CompanyForPDF(other); ok && c == company {
			_ = os.Remove(filepath.Join(s.ws.BillPDFs, e.Name()))
		}
	}

	rec := lookup(company)
	rec.UpdateDate = s.now().Format("01/02")
	rec.PDFFile = name
	if text, err := PDFText(up.Data); err != nil {
		s.logger.DebugContext(ctx, "pdf text unavailable", log.FieldFile, name, log.FieldError, err)
	} else if amount, ok := s.Amount(company, text); ok {
		rec.Amount = amount
	}
	s.logger.InfoContext(ctx, "pdf bill stored", log.FieldCompany, company, log.FieldFile, name)
	return company, rec, nil
}
