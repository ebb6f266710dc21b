// Package textnorm normalises loosely formatted, human-entered student codes
// so OCR output and spreadsheet cells can still match database rows.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Strip removes diacritic marks only, leaving case and spacing intact.
//
//	"Nguyễn Văn A" -> "Nguyen Van A"
func Strip(s string) string {
	if s == "" {
		return ""
	}
	if out, _, err := transform.String(stripMarks, s); err == nil {
		return out
	}
	return s
}

// StudentCode strips diacritics, uppercases and collapses whitespace.
// Hyphens are kept verbatim.
//
//	"34 TOÁN - 001035" -> "34 TOAN - 001035"
//	"12  tin-001"      -> "12 TIN-001"
//	"Nguyễn Văn A"     -> "NGUYEN VAN A"
func StudentCode(code string) string {
	if code == "" {
		return ""
	}
	if out, _, err := transform.String(stripMarks, code); err == nil {
		code = out
	}
	code = strings.ToUpper(code)
	code = strings.Join(strings.Fields(code), " ")
	return code
}

// Letters keeps only A-Z from an already-normalised string; used to derive
// the specialization fragment of generated student codes ("12 TIN" -> "TIN").
func Letters(s string) string {
	var b strings.Builder
	for _, r := range StudentCode(s) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
