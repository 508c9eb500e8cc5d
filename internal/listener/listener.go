package listener

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"billops/internal/bills"
	"billops/internal/config"
	"billops/internal/connectors"
	gmailconnector "billops/internal/connectors/gmail"
	imapconnector "billops/internal/connectors/imap"
	"billops/internal/log"
	"billops/internal/storage"
)

const (
	statusProcessed = "processed"
	statusSkipped   = "skipped"
	statusFailed    = "failed"
)

// Service polls the bill mailbox and feeds bill mails to the bills service.
type Service struct {
	db        *storage.DB
	cfg       config.Config
	bills     *bills.Service
	connector connectors.MailConnector
	logger    *log.Logger
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Skipped   int
	Failed    int
}

// NewService builds the listener. A nil connector is created from the
// configured provider on the first cycle.
func NewService(db *storage.DB, cfg config.Config, billSvc *bills.Service, connector connectors.MailConnector, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		db:        db,
		cfg:       cfg,
		bills:     billSvc,
		connector: connector,
		logger:    logger.WithComponent(log.ComponentListener),
	}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.BillMailIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s.logger.InfoContext(ctx, "bill listener started", "provider", s.provider(), "interval", interval.String())
	for {
		if res, err := s.RunCycle(ctx); err != nil {
			s.logger.ErrorContext(ctx, "listener cycle failed", log.FieldError, err)
		} else {
			s.logger.InfoContext(ctx, "listener cycle done",
				"fetched", res.Fetched, "stored", res.Stored, "processed", res.Processed, "skipped", res.Skipped, "failed", res.Failed)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle fetches new mail, then processes every pending mail of the provider.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult
	connector, err := s.mailConnector(ctx)
	if err != nil {
		return res, err
	}

	fetched, err := connectors.NewFetchService(s.db, s.cfg.RawMailDir, connector).FetchAndStore(ctx, s.cfg.BillMailLabel, s.cfg.BillMailFetchMax)
	res.Fetched, res.Stored = fetched.Fetched, fetched.Stored
	if err != nil {
		return res, err
	}

	pending, err := s.db.PendingBillMails(s.provider(), max(s.cfg.BillMailFetchMax, 1)*2)
	if err != nil {
		return res, err
	}
	for _, row := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		logger := s.logger.With(log.FieldMessageID, row.MessageID)
		status := statusSkipped

		raw, err := os.ReadFile(row.RawRef)
		if err == nil {
			var mr bills.MailResult
			mr, err = s.bills.IngestMail(ctx, raw, s.cfg.BillMailThreshold)
			if err == nil && mr.Detect.IsBill {
				status = statusProcessed
				logger.InfoContext(ctx, "bill mail ingested", "subject", mr.Subject, "score", mr.Detect.Score, "updated", mr.Ingested)
			} else if err == nil {
				logger.DebugContext(ctx, "mail is not a bill", "subject", mr.Subject, "score", mr.Detect.Score)
			}
		}
		if err != nil {
			status = statusFailed
			logger.WarnContext(ctx, "bill mail failed", log.FieldError, err)
		}

		if err := s.db.SetBillMailStatus(row.ID, status); err != nil {
			return res, err
		}
		switch status {
		case statusProcessed:
			res.Processed++
		case statusSkipped:
			res.Skipped++
		default:
			res.Failed++
		}
	}
	return res, nil
}

func (s *Service) provider() string {
	return strings.ToLower(strings.TrimSpace(s.cfg.BillMailProvider))
}

func (s *Service) mailConnector(ctx context.Context) (connectors.MailConnector, error) {
	if s.connector != nil {
		return s.connector, nil
	}
	var (
		c   connectors.MailConnector
		err error
	)
	switch s.provider() {
	case "gmail":
		c, err = gmailconnector.NewConnector(ctx, s.cfg)
	case "imap":
		c, err = imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported bill mail provider: %s", s.cfg.BillMailProvider)
	}
	if err != nil {
		return nil, err
	}
	s.connector = c
	return c, nil
}
