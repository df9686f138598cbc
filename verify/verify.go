// Package verify reconciles retrieved records against the canonical bylaw
// registry. It is the trust boundary between heuristic extraction and
// human-reviewed ground truth: a record is only ever marked verified by a
// registry match, never by heuristics.
package verify

import (
	"fmt"
	"strings"

	"github.com/civicgrid/bylawsearch/registry"
	"github.com/civicgrid/bylawsearch/vector"
)

// SourceRegistry marks records that originated from the canonical registry
// rather than heuristic document extraction.
const SourceRegistry = "registry"

// Config configures the verification layer.
type Config struct {
	// URLTemplate builds the fallback official URL from a bylaw number
	// when the registry has none. It must contain exactly one %s verb.
	URLTemplate string `yaml:"urlTemplate"`
}

// Annotation is the trust verdict for one search result.
type Annotation struct {
	Verified         bool
	IsConsolidated   bool
	ConsolidatedDate string
	OfficialURL      string

	// AmendmentWarning flags text-mined amendment chains that cannot be
	// trusted: "cycle" when the chain revisits a bylaw, "unknown:<n>"
	// when it references a number absent from the registry. The hint is
	// reported, never resolved.
	AmendmentWarning string
}

// Verifier annotates search results against the canonical registry.
type Verifier struct {
	registry    *registry.Registry
	urlTemplate string
}

// New creates a Verifier backed by the given registry.
func New(reg *registry.Registry, cfg Config) *Verifier {
	return &Verifier{
		registry:    reg,
		urlTemplate: cfg.URLTemplate,
	}
}

// Annotate reconciles one record's metadata with the registry. Registry data
// always wins over text-mined consolidation signals.
func (v *Verifier) Annotate(record vector.Record) Annotation {
	var a Annotation

	number := record.Metadata[vector.MetaBylawNumber]
	section := record.Metadata[vector.MetaSection]

	if _, ok := v.registry.Section(number, section); ok {
		a.Verified = true
	}

	if record.Metadata[vector.MetaSource] == SourceRegistry {
		a.Verified = true
	}

	a.IsConsolidated = record.Metadata[vector.MetaConsolidated] == "true"
	a.ConsolidatedDate = record.Metadata[vector.MetaConsolidatedDate]

	canonical, inRegistry := v.registry.Lookup(number)
	if inRegistry {
		a.IsConsolidated = canonical.IsConsolidated
		if canonical.ConsolidatedDate != "" {
			a.ConsolidatedDate = canonical.ConsolidatedDate
		}
	}

	a.OfficialURL = v.resolveURL(number, canonical)
	a.AmendmentWarning = v.checkAmendments(number, record.Metadata[vector.MetaAmendedBylaws])

	return a
}

func (v *Verifier) resolveURL(number string, canonical registry.BylawRecord) string {
	if canonical.OfficialURL != "" {
		return canonical.OfficialURL
	}

	if number == "" || number == "unknown" || v.urlTemplate == "" {
		return ""
	}

	return fmt.Sprintf(v.urlTemplate, number)
}

// checkAmendments walks the text-mined amendment hints through the registry.
// The chain is inherently unreliable; a revisit or a hop outside the
// registry stops the walk and surfaces a warning for human review.
func (v *Verifier) checkAmendments(number, amendedList string) string {
	if amendedList == "" {
		return ""
	}

	for _, next := range strings.Split(amendedList, ",") {
		// Hints are independent walks; the same bylaw cited twice is
		// repetition, not a cycle. Only a revisit within one chain is.
		visited := map[string]bool{number: true}

		for next != "" {
			if visited[next] {
				return "cycle"
			}

			visited[next] = true

			canonical, ok := v.registry.Lookup(next)
			if !ok {
				return "unknown:" + next
			}

			next = canonical.AmendedBylaw
		}
	}

	return ""
}
