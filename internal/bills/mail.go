package bills

import (
	"bytes"
	"context"
	"strings"

	"github.com/jhillyerd/enmime"
)

// MailResult describes what a bill mail contributed.
type MailResult struct {
	Subject     string
	Detect      DetectResult
	Attachments []string
	Ingested    int
}

// IngestMail parses a raw RFC 5322 message, scores it and feeds its HTML
// body and HTML/PDF attachments to Ingest when it looks like a bill.
func (s *Service) IngestMail(ctx context.Context, raw []byte, threshold float64) (MailResult, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return MailResult{}, err
	}

	var uploads []Upload
	names := make([]string, 0, len(env.Attachments))
	for _, part := range append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...) {
		name := strings.TrimSpace(part.FileName)
		if name == "" {
			continue
		}
		names = append(names, name)
		if Accepted(name) {
			uploads = append(uploads, Upload{Name: name, Data: part.Content})
		}
	}

	res := MailResult{
		Subject:     env.GetHeader("Subject"),
		Attachments: names,
		Detect:      Detect(env.GetHeader("Subject"), env.Text, env.HTML, names, threshold),
	}
	if !res.Detect.IsBill {
		return res, nil
	}
	if strings.TrimSpace(env.HTML) != "" {
		uploads = append([]Upload{{Name: "mail-body.html", Data: []byte(env.HTML)}}, uploads...)
	}
	if len(uploads) == 0 {
		return res, nil
	}

	before, err := s.db.BillAmounts()
	if err != nil {
		return res, err
	}
	after, err := s.Ingest(ctx, uploads)
	if err != nil {
		return res, err
	}
	for company, b := range after {
		if before[company] != b {
			res.Ingested++
		}
	}
	return res, nil
}
