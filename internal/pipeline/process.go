package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"billops/internal"
	"billops/internal/catalog"
	"billops/internal/files"
	"billops/internal/log"
	"billops/internal/storage"
	"billops/internal/templates"
	"billops/internal/util"
)

var (
	ErrUnsupportedCompany = errors.New("company has no preprocessor")
	ErrBillAmountMissing  = errors.New("bill amount missing")
	ErrInputMissing       = errors.New("input files missing")
)

var spreadsheetExts = []string{".xls", ".xlsx", ".csv"}

type Request struct {
	Company        string
	CollectionDate time.Time
	LicenseCount   int
}

type Result struct {
	Company string
	Files   []string
}

type Options struct {
	// UploadFreshness bounds how old an upload may be for processors that
	// take only the newest file. Zero disables the check.
	UploadFreshness     time.Duration
	DefaultLicenseCount int
	Logger              *log.Logger
}

type ProcessingService struct {
	db        *storage.DB
	ws        *files.Workspace
	templates templates.Source
	catalog   *catalog.Catalog
	opts      Options
	logger    *log.Logger
	now       func() time.Time
}

func NewProcessingService(db *storage.DB, ws *files.Workspace, tpl templates.Source, cat *catalog.Catalog, opts Options) *ProcessingService {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	if opts.DefaultLicenseCount <= 0 {
		opts.DefaultLicenseCount = 40
	}
	return &ProcessingService{
		db:        db,
		ws:        ws,
		templates: tpl,
		catalog:   cat,
		opts:      opts,
		logger:    logger.WithComponent(log.ComponentPipeline),
		now:       time.Now,
	}
}

type job struct {
	req     Request
	company catalog.Company
	month   time.Time
	logger  *log.Logger
}

type processor func(s *ProcessingService, ctx context.Context, j job) ([]string, error)

var processors = map[string]processor{
	"wconcept":   (*ProcessingService).processWConcept,
	"sk":         (*ProcessingService).processSK,
	"mathpresso": (*ProcessingService).processMathpresso,
	"guppu":      (*ProcessingService).processGuppu,
	"annhouse":   (*ProcessingService).processAnnhouse,
	"deciders":   (*ProcessingService).processDeciders,
	"kolon":      (*ProcessingService).processKolon,
}

// Supports reports whether company has a preprocessor.
func (s *ProcessingService) Supports(company string) bool {
	co, ok := s.catalog.Get(company)
	if !ok {
		return false
	}
	_, ok = processors[co.Preprocessor]
	return ok
}

// Process fills the company's invoice templates for the month of the
// collection date and records the produced files.
func (s *ProcessingService) Process(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	co, ok := s.catalog.Get(req.Company)
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", req.Company, ErrUnsupportedCompany)
	}
	run, ok := processors[co.Preprocessor]
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", req.Company, ErrUnsupportedCompany)
	}
	if req.CollectionDate.IsZero() {
		req.CollectionDate = s.now()
	}

	logger := s.logger.With(log.FieldOperation, log.OpPreprocess, log.FieldCompany, req.Company)
	j := job{
		req:     req,
		company: co,
		month:   time.Date(req.CollectionDate.Year(), req.CollectionDate.Month(), 1, 0, 0, 0, 0, time.Local),
		logger:  logger,
	}
	logger.InfoContext(ctx, "preprocess started", "collection_date", req.CollectionDate.Format(util.DateLayout))

	produced, err := run(s, ctx, j)
	if err != nil {
		logger.ErrorContext(ctx, "preprocess failed", log.FieldError, err)
		return Result{}, err
	}
	if err := s.db.SetFileList(internal.FilesProcessed, req.Company, produced); err != nil {
		return Result{}, fmt.Errorf("save processed files: %w", err)
	}
	logger.InfoContext(ctx, "preprocess completed", "files", len(produced), log.FieldDuration, time.Since(start).Milliseconds())
	return Result{Company: req.Company, Files: produced}, nil
}

// billTotal reads the stored bill amount for company in won.
func (s *ProcessingService) billTotal(company string) (int64, error) {
	b, err := s.db.BillAmount(company)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, fmt.Errorf("%s: %w", company, ErrBillAmountMissing)
	}
	v, ok := util.ParseWon(b.Amount)
	if !ok {
		return 0, fmt.Errorf("%s: unreadable amount %q: %w", company, b.Amount, ErrBillAmountMissing)
	}
	return v, nil
}

// template returns the local path of the company's i-th template.
func (s *ProcessingService) template(ctx context.Context, j job, i int) (string, error) {
	if i >= len(j.company.Templates) {
		return "", fmt.Errorf("%s: template %d: %w", j.company.Name, i, templates.ErrNotFound)
	}
	return s.templates.Fetch(ctx, j.company.Templates[i])
}

// uploads lists the company's uploads in temp_processing, newest first.
func (s *ProcessingService) uploads(key string, freshness time.Duration) ([]files.Entry, error) {
	return s.ws.FindUploads(key, spreadsheetExts, freshness)
}

func (s *ProcessingService) output(name string) string {
	return filepath.Join(s.ws.Downloads, name)
}

func invoiceName(month time.Time, title string) string {
	return util.YYMM(month) + "_" + title + ".xlsx"
}
