package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"billops/internal"
	"billops/internal/catalog"
	"billops/internal/collector"
	"billops/internal/files"
	"billops/internal/log"
	"billops/internal/storage"
	"billops/internal/util"
)

const (
	companyAnnhouse = "앤하우스"
	companyDeciders = "디싸이더스/애드프로젝트"
)

var spreadsheetExts = []string{".xlsx", ".xls", ".csv"}

// Runner executes collection tasks.
type Runner struct {
	tasks     *Manager
	db        *storage.DB
	catalog   *catalog.Catalog
	collector collector.Collector
	ws        *files.Workspace
	logger    *log.Logger
	now       func() time.Time
}

func NewRunner(m *Manager, db *storage.DB, cat *catalog.Catalog, c collector.Collector, ws *files.Workspace, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Nop()
	}
	return &Runner{
		tasks:     m,
		db:        db,
		catalog:   cat,
		collector: c,
		ws:        ws,
		logger:    logger.WithComponent(log.ComponentTasks),
		now:       time.Now,
	}
}

// Run drives one task to completed or failed. Collection problems end up in
// the task; the returned error is reserved for storage failures.
func (r *Runner) Run(ctx context.Context, taskID string) error {
	t, err := r.tasks.track(taskID)
	if err != nil {
		return err
	}
	logger := r.logger.With(log.FieldTaskID, taskID, log.FieldCompany, t.task.Company)
	started := r.now()
	logger.InfoContext(ctx, "collection started", log.FieldOperation, log.OpCollect)

	err = r.collect(ctx, t, logger)
	if err != nil {
		logger.ErrorContext(ctx, "collection failed", log.FieldError, err)
		if ferr := t.fail(err); ferr != nil {
			return ferr
		}
		return nil
	}

	msg := "데이터 수집 완료!"
	if len(t.task.Files) == 0 {
		msg = "수집된 파일이 없습니다 (데이터 없음 또는 오류)"
	}
	logger.InfoContext(ctx, "collection finished", "files", len(t.task.Files), log.FieldDuration, r.now().Sub(started).Milliseconds())
	return t.complete(msg)
}

func (r *Runner) collect(ctx context.Context, t *tracker, logger *log.Logger) error {
	company, ok := r.catalog.Get(t.task.Company)
	if !ok {
		return fmt.Errorf("알 수 없는 고객사: %s", t.task.Company)
	}
	if !company.Crawlable {
		return fmt.Errorf("%s는 자동 수집을 지원하지 않습니다", company.Name)
	}
	if err := t.step(ProgressStarted, "시스템 초기화 중..."); err != nil {
		return err
	}

	start, end, err := r.dateRange(t.task)
	if err != nil {
		return err
	}
	if err := t.logf("날짜 설정: %s ~ %s", start.Format(util.DateLayout), end.Format(util.DateLayout)); err != nil {
		return err
	}

	if err := t.step(ProgressAccount, company.Name+" SMS 계정 조회..."); err != nil {
		return err
	}
	sms, err := r.db.FindAccount(company.Name, internal.AccountSMS)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s SMS 계정 정보를 찾을 수 없습니다", company.Name)
	}
	if err != nil {
		return err
	}

	// Failures past this point are logged into the task and collection
	// moves on, so one broken export does not hide the others.
	if err := t.step(ProgressSMS, company.Name+" SMS 데이터 수집 시작..."); err != nil {
		return err
	}
	smsStart := r.now().Add(-time.Second)
	smsFiles, smsErr := r.stage(ctx, collector.Request{
		Company:  company,
		Accounts: map[internal.AccountType]internal.Account{internal.AccountSMS: sms},
		Start:    start,
		End:      end,
		Kinds:    []string{"sms"},
	}, smsStart)
	if smsErr != nil {
		logger.WarnContext(ctx, "sms collection failed", log.FieldError, smsErr)
		if err := t.logf("SMS 데이터 수집 실패: %v", smsErr); err != nil {
			return err
		}
	}
	picked := pickSMS(company.Name, smsFiles)
	t.addFiles(picked...)
	for _, f := range picked {
		if err := t.logf("SMS 파일 수집 완료: %s", f); err != nil {
			return err
		}
	}

	switch company.Name {
	case companyDeciders:
		if err := t.step(ProgressSecondary, "CHAT 데이터 수집 시작..."); err != nil {
			return err
		}
		chat, err := r.stage(ctx, collector.Request{
			Company:  company,
			Accounts: map[internal.AccountType]internal.Account{internal.AccountSMS: sms},
			Start:    start,
			End:      end,
			Kinds:    []string{"chat"},
		}, smsStart)
		return r.secondary(ctx, t, logger, "CHAT", chat, err, "채팅")

	case companyAnnhouse:
		if err := t.step(ProgressSecondary, "앤하우스 CALL 데이터 수집 시작..."); err != nil {
			return err
		}
		call, err := r.db.FindAccount(company.Name, internal.AccountCall)
		if err != nil {
			return t.logf("CALL 수집 중 오류: %s CALL 계정 정보를 찾을 수 없습니다", company.Name)
		}
		callFiles, cerr := r.stage(ctx, collector.Request{
			Company:  company,
			Accounts: map[internal.AccountType]internal.Account{internal.AccountCall: call},
			Start:    start,
			End:      end,
			Kinds:    []string{"call"},
		}, smsStart)
		return r.secondary(ctx, t, logger, "CALL", callFiles, cerr, "통화내역")
	}
	return nil
}

// secondary records the newest file of a CHAT or CALL stage that the SMS
// stage did not already claim, preferring names containing keyword.
func (r *Runner) secondary(ctx context.Context, t *tracker, logger *log.Logger, label string, found []files.Entry, err error, keyword string) error {
	if err != nil {
		logger.WarnContext(ctx, strings.ToLower(label)+" collection failed", log.FieldError, err)
		return t.logf("%s 수집 중 오류: %v", label, err)
	}
	var fresh []files.Entry
	for _, f := range found {
		if !slices.Contains(t.task.Files, f.Name) {
			fresh = append(fresh, f)
		}
	}
	if len(fresh) == 0 {
		return t.logf("%s 파일을 찾을 수 없음", label)
	}
	pick := fresh[0]
	for _, f := range fresh {
		if strings.Contains(f.Name, keyword) {
			pick = f
			break
		}
	}
	t.addFiles(pick.Name)
	return t.logf("%s 파일 수집 완료: %s", label, pick.Name)
}

// stage runs the collector and returns the spreadsheets in downloads written
// since the stage began, newest first. Names the collector reported win over
// whatever else appeared in the directory.
func (r *Runner) stage(ctx context.Context, req collector.Request, since time.Time) ([]files.Entry, error) {
	names, err := r.collector.Collect(ctx, req)
	if err != nil {
		return nil, err
	}
	entries, err := r.ws.NewSince(r.ws.Downloads, since)
	if err != nil {
		return nil, err
	}
	var out []files.Entry
	for _, e := range entries {
		if !slices.Contains(spreadsheetExts, strings.ToLower(filepath.Ext(e.Name))) {
			continue
		}
		if len(names) > 0 && !slices.Contains(names, e.Name) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// pickSMS chooses the SMS stage results: every 발송이력 file (oldest first)
// for 디싸이더스, the newest 발송이력 file for 앤하우스, otherwise the newest.
func pickSMS(company string, found []files.Entry) []string {
	if len(found) == 0 {
		return nil
	}
	var history []string
	for _, f := range found {
		if strings.Contains(f.Name, "발송이력") {
			history = append(history, f.Name)
		}
	}
	switch company {
	case companyDeciders:
		slices.Reverse(history)
		return history
	case companyAnnhouse:
		if len(history) > 0 {
			return history[:1]
		}
	}
	return []string{found[0].Name}
}

func (r *Runner) dateRange(t internal.Task) (time.Time, time.Time, error) {
	if t.StartDate == "" || t.EndDate == "" {
		start, end := collector.DefaultRange(r.now())
		return start, end, nil
	}
	start, err := util.ParseDate(t.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := util.ParseDate(t.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s is before start_date %s", t.EndDate, t.StartDate)
	}
	return start, end, nil
}
