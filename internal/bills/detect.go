package bills

import (
	"regexp"
	"strings"
)

type DetectResult struct {
	IsBill bool
	Score  float64
	Reason string
}

var detectKeywords = []string{"고지서", "청구", "요금", "납부", "메타엠", "고객님"}

var reWon = regexp.MustCompile(`[0-9][0-9,]*\s*원`)

// Detect scores a mail on subject and body keywords, won amounts and
// bill-like attachments. A score of threshold or more marks it a bill.
func Detect(subject, text, html string, attachmentNames []string, threshold float64) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)
	html = strings.ToLower(html)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) || strings.Contains(html, kw) {
			score += 0.1
		}
	}

	amounts := len(reWon.FindAllStringIndex(text, 3)) + len(reWon.FindAllStringIndex(html, 3))
	if amounts >= 2 {
		score += 0.4
	} else if amounts == 1 {
		score += 0.2
	}

	for _, name := range attachmentNames {
		if Accepted(name) {
			score += 0.25
			break
		}
	}
	if strings.Contains(html, "<table") {
		score += 0.25
	}
	if score > 1 {
		score = 1
	}

	isBill := score >= threshold
	reason := "rules_negative"
	if isBill {
		reason = "rules_positive"
	}
	return DetectResult{IsBill: isBill, Score: score, Reason: reason}
}
