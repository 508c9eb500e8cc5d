package tasks

import (
	"context"
	"errors"

	"billops/internal/log"
	"billops/internal/pipeline"
	"billops/internal/queue"
	"billops/internal/storage"
	"billops/internal/util"
)

// Worker runs jobs consumed from the queue.
type Worker struct {
	runner    *Runner
	processor *pipeline.ProcessingService
	logger    *log.Logger
}

func NewWorker(runner *Runner, processor *pipeline.ProcessingService, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Nop()
	}
	return &Worker{runner: runner, processor: processor, logger: logger.WithComponent(log.ComponentWorker)}
}

// Handle returns an error only when the job is worth retrying.
func (w *Worker) Handle(ctx context.Context, msg *queue.JobMessage) error {
	switch msg.Kind {
	case queue.JobCollect:
		if msg.TaskID == "" {
			w.logger.WarnContext(ctx, "collect job without task id dropped", log.FieldCompany, msg.Company)
			return nil
		}
		err := w.runner.Run(ctx, msg.TaskID)
		if errors.Is(err, storage.ErrNotFound) {
			w.logger.WarnContext(ctx, "collect job for unknown task dropped", log.FieldTaskID, msg.TaskID, log.FieldCompany, msg.Company)
			return nil
		}
		return err

	case queue.JobPreprocess:
		date, err := util.ParseDate(msg.CollectionDate)
		if err != nil {
			w.logger.WarnContext(ctx, "preprocess job with bad date dropped", log.FieldCompany, msg.Company, log.FieldError, err)
			return nil
		}
		res, err := w.processor.Process(ctx, pipeline.Request{Company: msg.Company, CollectionDate: date, LicenseCount: msg.LicenseCount})
		if permanent(err) {
			w.logger.WarnContext(ctx, "preprocess job rejected", log.FieldCompany, msg.Company, log.FieldError, err)
			return nil
		}
		if err != nil {
			return err
		}
		w.logger.InfoContext(ctx, "preprocess job done", log.FieldCompany, msg.Company, "files", res.Files)
		return nil
	}
	w.logger.WarnContext(ctx, "job of unknown kind dropped", "kind", string(msg.Kind), log.FieldCompany, msg.Company)
	return nil
}

func permanent(err error) bool {
	return errors.Is(err, pipeline.ErrUnsupportedCompany) ||
		errors.Is(err, pipeline.ErrBillAmountMissing) ||
		errors.Is(err, pipeline.ErrInputMissing) ||
		errors.Is(err, pipeline.ErrNoMatches)
}
