// Package extract derives bylaw identity and consolidation facts from
// document filenames and body text. All extraction is best-effort: fields
// that no pattern matches are left empty, never guessed.
package extract

import (
	"regexp"
	"strings"
	"time"
)

// Metadata holds the facts mined from a single document. Number and Title
// come from the filename, AmendedBylaws and ConsolidatedDate from the body.
type Metadata struct {
	Number           string
	Title            string
	IsConsolidated   bool
	ConsolidatedDate string
	AmendedBylaws    []string
}

type filenamePattern struct {
	re    *regexp.Regexp
	apply func(m []string, md *Metadata)
}

// Filename patterns are tried in priority order; the first match wins and
// extraction stops. New conventions are added to this list, not to Extract.
var filenamePatterns = []filenamePattern{
	{
		// Organized archive convention: bylaw-4742-tree-protection.pdf
		re: regexp.MustCompile(`(?i)^bylaw-(\d+)-(.+?)(?:\.\w+)?$`),
		apply: func(m []string, md *Metadata) {
			md.Number = m[1]
			md.Title = strings.ReplaceAll(m[2], "-", " ")
		},
	},
	{
		// Comma-separated: "4013, Animal Control Bylaw, 1999 (CONSOLIDATED)"
		re: regexp.MustCompile(`^(\d+),\s*([^,]+)`),
		apply: func(m []string, md *Metadata) {
			md.Number = m[1]
			md.Title = strings.TrimSpace(m[2])
		},
	},
	{
		// Space-separated: "4100 Street and Traffic Bylaw.pdf"
		re: regexp.MustCompile(`^(\d+)\s+(.+?)(?:\.\w+)?$`),
		apply: func(m []string, md *Metadata) {
			md.Number = m[1]
			md.Title = strings.TrimSpace(m[2])
		},
	},
	{
		// Prose style: "Bylaw No. 4742"
		re: regexp.MustCompile(`(?i)bylaw\s+no\.?\s*(\d+)`),
		apply: func(m []string, md *Metadata) {
			md.Number = m[1]
		},
	},
}

var amendedRe = regexp.MustCompile(`(?i)amended\s+by\s+bylaw\s+no\.?\s*(\d+)`)

type datePattern struct {
	re     *regexp.Regexp
	layout string
}

// Date formats are tried in order; the first hit wins. Parsed dates are
// normalized to ISO form so the index can compare them lexically.
var datePatterns = []datePattern{
	{regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`), "2006-01-02"},
	{regexp.MustCompile(`\b([A-Z][a-z]+ \d{1,2}, \d{4})\b`), "January 2, 2006"},
	{regexp.MustCompile(`\b(\d{1,2} [A-Z][a-z]+ \d{4})\b`), "2 January 2006"},
	{regexp.MustCompile(`\b([A-Z][a-z]+ \d{4})\b`), "January 2006"},
}

// Extract mines bylaw metadata from a filename and the document body.
func Extract(filename, text string) Metadata {
	var md Metadata

	name := strings.TrimSpace(filename)
	for _, p := range filenamePatterns {
		if m := p.re.FindStringSubmatch(name); m != nil {
			p.apply(m, &md)
			break
		}
	}

	md.IsConsolidated = strings.Contains(strings.ToLower(name), "consolidated")

	for _, m := range amendedRe.FindAllStringSubmatch(text, -1) {
		md.AmendedBylaws = append(md.AmendedBylaws, m[1])
	}

	md.ConsolidatedDate = findDate(text)

	return md
}

func findDate(text string) string {
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		t, err := time.Parse(p.layout, m[1])
		if err != nil {
			continue
		}

		return t.Format("2006-01-02")
	}

	return ""
}
