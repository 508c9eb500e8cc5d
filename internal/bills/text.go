package bills

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
)

var reSpaces = regexp.MustCompile(`[ \t ]+`)

// HTMLText renders a bill page as text: scripts and styles are dropped, each
// line is trimmed and runs separated by two or more spaces become lines.
func HTMLText(data []byte) (text string, locked bool, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", false, err
	}
	locked = doc.Find("input[type='password']").Length() > 0
	doc.Find("script,style").Remove()
	doc.Find("br,p,div,tr,td,th,li,h1,h2,h3").AppendHtml("\n")

	var out []string
	for _, line := range splitLines(doc.Text()) {
		for _, chunk := range strings.Split(line, "  ") {
			if chunk = strings.TrimSpace(chunk); chunk != "" {
				out = append(out, reSpaces.ReplaceAllString(chunk, " "))
			}
		}
	}
	return strings.Join(out, "\n"), locked, nil
}

// PDFText concatenates the plain text of every page.
func PDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		lines = append(lines, splitLines(text)...)
	}
	return strings.Join(lines, "\n"), nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
