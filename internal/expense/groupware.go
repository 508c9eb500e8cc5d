package expense

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"billops/internal"
	"billops/internal/collector"
	"billops/internal/log"
)

var ErrLoginFailed = errors.New("그룹웨어 로그인 실패")

type Credentials struct {
	UserID   string
	Password string
}

// Batch is one submission: statement rows for a card category and period.
type Batch struct {
	Category  string
	StartDate string
	EndDate   string
	Rows      []internal.ExpenseRow
}

type Result struct {
	Processed int `json:"processed_count"`
	Total     int `json:"total_count"`
}

type Submitter interface {
	Submit(ctx context.Context, creds Credentials, b Batch) (Result, error)
}

type GroupwareOptions struct {
	BaseURL    string
	Timeout    time.Duration
	LoginPath  string
	SubmitPath string
	Logger     *log.Logger
}

// GroupwareClient files expense rows through the groupware's card
// interface forms.
type GroupwareClient struct {
	opts   GroupwareOptions
	logger *log.Logger
}

func NewGroupwareClient(opts GroupwareOptions) *GroupwareClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/gw/uat/uia/egovLoginUsr.do"
	}
	if opts.SubmitPath == "" {
		opts.SubmitPath = "/exp/expend/card/interface/save.do"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &GroupwareClient{opts: opts, logger: logger.WithComponent(log.ComponentExpense)}
}

// Submit logs in and posts every row. Rows the groupware rejects are logged
// and left out of Processed; only a failed login or a cancelled context
// aborts the batch.
func (g *GroupwareClient) Submit(ctx context.Context, creds Credentials, b Batch) (Result, error) {
	res := Result{Total: len(b.Rows)}
	if strings.TrimSpace(g.opts.BaseURL) == "" {
		return res, errors.New("missing required env var: GROUPWARE_BASE_URL")
	}
	if b.Category == "" {
		b.Category = DefaultCategory
	}

	client, err := g.login(ctx, creds)
	if err != nil {
		return res, err
	}
	target, err := g.resolve(g.opts.SubmitPath)
	if err != nil {
		return res, err
	}

	for i, row := range b.Rows {
		form := url.Values{
			"category":                 {b.Category},
			"txtExpendCardFromDate":    {b.StartDate},
			"txtExpendCardToDate":      {b.EndDate},
			"amount":                   {row.Amount},
			"txtExpendCardDispSummary": {row.StandardSummary},
			"txtExpendCardDispAuth":    {row.EvidenceType},
			"txtExpendCardDispNote":    {row.Note},
			"txtExpendCardDispProject": {row.Project},
		}
		if _, err := client.PostForm(ctx, target, form); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			g.logger.WarnContext(ctx, "expense row rejected", "row", i+1, "amount", row.Amount, log.FieldError, err)
			continue
		}
		res.Processed++
	}
	g.logger.InfoContext(ctx, "expense batch submitted", log.FieldOperation, log.OpSubmit, "processed", res.Processed, "total", res.Total)
	return res, nil
}

func (g *GroupwareClient) login(ctx context.Context, creds Credentials) (*collector.Client, error) {
	// Saves are not idempotent, so requests are never retried.
	client, err := collector.NewClient(g.opts.Timeout, collector.NewRateLimiter(5), 0)
	if err != nil {
		return nil, err
	}
	loginURL, err := g.resolve(g.opts.LoginPath)
	if err != nil {
		return nil, err
	}

	page, err := client.Get(ctx, loginURL, nil)
	if err != nil {
		return nil, fmt.Errorf("load groupware login page: %w", err)
	}
	form, action, err := collector.LoginForm(page.Body, page.URL)
	if err != nil {
		return nil, err
	}
	if action == "" {
		action = loginURL
	}
	form.Set("userId", creds.UserID)
	form.Set("userPw", creds.Password)

	resp, err := client.PostForm(ctx, action, form)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if collector.OnLoginPage(resp.Body) {
		return nil, ErrLoginFailed
	}
	g.logger.InfoContext(ctx, "groupware login ok", log.FieldOperation, log.OpLogin)
	return client, nil
}

func (g *GroupwareClient) resolve(path string) (string, error) {
	base, err := url.Parse(strings.TrimRight(g.opts.BaseURL, "/") + "/")
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
