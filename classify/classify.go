// Package classify assigns section numbers, titles, and a topical category
// to bylaw text chunks using ordered heuristic pattern lists.
package classify

import (
	"regexp"
	"strings"
)

// Section is a best-effort heading extraction. Number is empty when no
// heading pattern matched; callers substitute a positional fallback.
type Section struct {
	Number string
	Title  string
}

// DefaultCategory is assigned when no keyword group matches.
const DefaultCategory = "general"

type headingPattern struct {
	re    *regexp.Regexp
	apply func(m []string) Section
}

// Heading patterns are tried in order; the first match wins. Patterns are
// additive: new heading conventions extend this list.
var headingPatterns = []headingPattern{
	{
		// "5(7)(a) Hours of Work" or "12. Noise"
		re: regexp.MustCompile(`(?m)^\s*(\d+(?:\(\w+\))*)\.?\s+([A-Z][^\n]{2,80})`),
		apply: func(m []string) Section {
			return Section{Number: m[1], Title: strings.TrimSpace(m[2])}
		},
	},
	{
		re: regexp.MustCompile(`(?im)^\s*section\s+(\d+(?:\(\w+\))*)\s*[:.\-–]\s*([^\n]{2,80})`),
		apply: func(m []string) Section {
			return Section{Number: m[1], Title: strings.TrimSpace(m[2])}
		},
	},
	{
		re: regexp.MustCompile(`(?im)^\s*part\s+([IVXLC\d]+)\s*[:.\-–]\s*([^\n]{2,80})`),
		apply: func(m []string) Section {
			return Section{Number: "Part " + m[1], Title: strings.TrimSpace(m[2])}
		},
	},
	{
		re: regexp.MustCompile(`(?im)^\s*division\s+(\d+)\s*[:.\-–]?\s*([^\n]{0,80})`),
		apply: func(m []string) Section {
			return Section{Number: "Division " + m[1], Title: strings.TrimSpace(m[2])}
		},
	},
	{
		re: regexp.MustCompile(`(?im)^\s*schedule\s+([A-Z\d]+)\s*[:.\-–]?\s*([^\n]{0,80})`),
		apply: func(m []string) Section {
			return Section{Number: "Schedule " + m[1], Title: strings.TrimSpace(m[2])}
		},
	},
	{
		// Bare leading section number with no title
		re: regexp.MustCompile(`(?m)^\s*(\d+(?:\(\w+\))+)`),
		apply: func(m []string) Section {
			return Section{Number: m[1]}
		},
	},
}

type categoryGroup struct {
	name     string
	keywords []string
}

// Category groups are tested in order against the section title first, then
// the chunk body; the first group with a keyword hit wins.
var categoryGroups = []categoryGroup{
	{"zoning", []string{"zoning", "zone", "land use", "setback", "density", "subdivision"}},
	{"building", []string{"building", "construction", "demolition", "permit", "renovation"}},
	{"traffic", []string{"traffic", "parking", "street", "highway", "vehicle", "bicycle"}},
	{"utilities", []string{"water", "sewer", "drainage", "utility", "solid waste", "garbage"}},
	{"finance", []string{"tax", "fee", "levy", "assessment", "budget", "financial"}},
	{"parks", []string{"park", "recreation", "tree", "playground", "trail"}},
	{"governance", []string{"council", "procedure", "election", "officer", "delegation"}},
	{"licensing", []string{"licence", "license", "business", "vendor", "animal control", "dog"}},
}

// Heading extracts the first section heading from a chunk, if any.
func Heading(text string) (Section, bool) {
	for _, p := range headingPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			return p.apply(m), true
		}
	}

	return Section{}, false
}

// Category assigns a topical tag from the section title and chunk body.
func Category(title, text string) string {
	title = strings.ToLower(title)
	text = strings.ToLower(text)

	for _, g := range categoryGroups {
		for _, kw := range g.keywords {
			if strings.Contains(title, kw) {
				return g.name
			}
		}
	}

	for _, g := range categoryGroups {
		for _, kw := range g.keywords {
			if strings.Contains(text, kw) {
				return g.name
			}
		}
	}

	return DefaultCategory
}
