package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var reSpaces = regexp.MustCompile(`\s+`)

// NFC normalizes Korean file names; macOS uploads arrive decomposed.
func NFC(s string) string {
	return norm.NFC.String(s)
}

func CollapseSpaces(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// CellText trims a spreadsheet cell and drops the "nan"/"None" placeholders
// some exports write for empty cells.
func CellText(s string) string {
	t := strings.TrimSpace(s)
	switch strings.ToLower(t) {
	case "nan", "none", "null":
		return ""
	}
	return t
}

// PhoneKey normalizes a sender number that went through a float column,
// e.g. "15888298.0" -> "15888298".
func PhoneKey(s string) string {
	t := CellText(s)
	t = strings.TrimSuffix(t, ".0")
	return strings.ReplaceAll(t, "-", "")
}

// SafeCompany strips characters that cannot appear in a file name.
func SafeCompany(company string) string {
	return strings.NewReplacer("/", "", "\\", "", ":", "").Replace(company)
}

func ContainsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
