package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"billops/internal"
	"billops/internal/catalog"
	"billops/internal/log"
	"billops/internal/util"
)

var (
	ErrNoCollector = errors.New("company has no collector definition")
	ErrLogin       = errors.New("site login failed")
)

type Request struct {
	Company  catalog.Company
	Accounts map[internal.AccountType]internal.Account
	Start    time.Time
	End      time.Time
	// Kinds restricts the exports to run; empty means all.
	Kinds []string
}

func (r Request) wants(kind string) bool {
	if len(r.Kinds) == 0 {
		return true
	}
	for _, k := range r.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Collector downloads a company's usage exports and returns the file names
// written into the downloads directory.
type Collector interface {
	Collect(ctx context.Context, req Request) ([]string, error)
}

// DefaultRange is the previous calendar month.
func DefaultRange(now time.Time) (time.Time, time.Time) {
	return util.PreviousMonth(now)
}

type Options struct {
	DownloadDir string
	Timeout     time.Duration
	RateRPS     int
	Retries     int
	Logger      *log.Logger
}

// HTTPCollector logs into a client's SMS/call site with a plain form post
// and downloads each configured export.
type HTTPCollector struct {
	opts    Options
	limiter *RateLimiter
	logger  *log.Logger
}

func NewHTTPCollector(opts Options) *HTTPCollector {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &HTTPCollector{
		opts:    opts,
		limiter: NewRateLimiter(opts.RateRPS),
		logger:  logger.WithComponent(log.ComponentCollector),
	}
}

func (c *HTTPCollector) Collect(ctx context.Context, req Request) ([]string, error) {
	spec := req.Company.Collector
	if spec == nil {
		return nil, fmt.Errorf("%s: %w", req.Company.Name, ErrNoCollector)
	}
	if err := os.MkdirAll(c.opts.DownloadDir, 0o755); err != nil {
		return nil, err
	}

	sessions := map[string]*Client{}
	var saved []string
	for _, exp := range spec.Exports {
		if !req.wants(exp.Kind) {
			continue
		}
		accountType := internal.AccountType(exp.Account)
		if accountType == "" {
			accountType = internal.AccountSMS
		}
		account, ok := req.Accounts[accountType]
		if !ok {
			return saved, fmt.Errorf("%s: no %s account", req.Company.Name, accountType)
		}

		client, ok := sessions[account.ID]
		if !ok {
			var err error
			client, err = c.login(ctx, spec, account)
			if err != nil {
				return saved, fmt.Errorf("%s %s: %w", req.Company.Name, accountType, err)
			}
			sessions[account.ID] = client
		}

		name, err := c.download(ctx, client, account, exp, req.Start, req.End)
		if err != nil {
			return saved, fmt.Errorf("%s %s export: %w", req.Company.Name, exp.Kind, err)
		}
		c.logger.InfoContext(ctx, "export saved", log.FieldCompany, req.Company.Name, "kind", exp.Kind, log.FieldFile, name)
		saved = append(saved, name)
	}
	return saved, nil
}

func (c *HTTPCollector) login(ctx context.Context, spec *catalog.CollectorSpec, account internal.Account) (*Client, error) {
	client, err := NewClient(c.opts.Timeout, c.limiter, c.opts.Retries)
	if err != nil {
		return nil, err
	}
	loginURL, err := resolve(account.SiteURL, spec.LoginPath)
	if err != nil {
		return nil, err
	}

	page, err := client.Get(ctx, loginURL, nil)
	if err != nil {
		return nil, fmt.Errorf("load login page: %w", err)
	}
	form, action, err := LoginForm(page.Body, page.URL)
	if err != nil {
		return nil, err
	}
	if action == "" {
		action = loginURL
	}
	userField, passField := spec.UserField, spec.PasswordField
	if userField == "" {
		userField = "userCd"
	}
	if passField == "" {
		passField = "userPs"
	}
	form.Set(userField, account.Username)
	form.Set(passField, account.Password)

	resp, err := client.PostForm(ctx, action, form)
	if err != nil {
		return nil, fmt.Errorf("submit login: %w", err)
	}
	if OnLoginPage(resp.Body) {
		return nil, ErrLogin
	}
	return client, nil
}

// LoginForm collects the hidden inputs (CSRF tokens and the like) of the
// first form holding a password field.
func LoginForm(body []byte, base *url.URL) (url.Values, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	values := url.Values{}
	form := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find(`input[type="password"]`).Length() > 0
	}).First()
	if form.Length() == 0 {
		form = doc.Selection
	}
	form.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		if name == "" {
			return
		}
		value, _ := s.Attr("value")
		values.Set(name, value)
	})

	action, _ := form.Attr("action")
	if action != "" && base != nil {
		if ref, err := url.Parse(action); err == nil {
			action = base.ResolveReference(ref).String()
		}
	}
	return values, action, nil
}

// OnLoginPage reports whether body still shows a password field.
func OnLoginPage(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find(`input[type="password"]`).Length() > 0
}

func (c *HTTPCollector) download(ctx context.Context, client *Client, account internal.Account, exp catalog.Export, start, end time.Time) (string, error) {
	target, err := resolve(account.SiteURL, exp.Path)
	if err != nil {
		return "", err
	}
	layout := exp.DateFormat
	if layout == "" {
		layout = "20060102"
	}
	params := url.Values{}
	for k, v := range exp.Params {
		params.Set(k, v)
	}
	if exp.StartParam != "" {
		params.Set(exp.StartParam, start.Format(layout))
	}
	if exp.EndParam != "" {
		params.Set(exp.EndParam, end.Format(layout))
	}

	var resp response
	if strings.EqualFold(exp.Method, "POST") {
		resp, err = client.PostForm(ctx, target, params)
	} else {
		resp, err = client.Get(ctx, target, params)
	}
	if err != nil {
		return "", err
	}
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/html") {
		return "", fmt.Errorf("expected a spreadsheet, got %s", ct)
	}
	if len(resp.Body) == 0 {
		return "", errors.New("empty export")
	}

	name := exportName(exp, start, end, layout)
	if err := os.WriteFile(filepath.Join(c.opts.DownloadDir, name), resp.Body, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

func exportName(exp catalog.Export, start, end time.Time, layout string) string {
	name := exp.FileName
	if name == "" {
		name = exp.Kind + "_{start}_{end}.xlsx"
	}
	r := strings.NewReplacer(
		"{start}", strings.ReplaceAll(start.Format(layout), "-", ""),
		"{end}", strings.ReplaceAll(end.Format(layout), "-", ""),
	)
	return util.NFC(r.Replace(name))
}

func resolve(base, path string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", errors.New("account has no site_url")
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if path == "" {
		return b.String(), nil
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}
