// Package registry holds the canonical, human-verified bylaw records and
// sections. The registry file is written by an out-of-band curation process
// and read here at startup; it is the source of truth the verification
// layer reconciles search results against.
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BylawRecord is a canonical bylaw entry.
type BylawRecord struct {
	Number           string `yaml:"number" json:"number"`
	Title            string `yaml:"title" json:"title"`
	IsConsolidated   bool   `yaml:"isConsolidated" json:"isConsolidated"`
	ConsolidatedDate string `yaml:"consolidatedDate" json:"consolidatedDate,omitempty"`
	AmendedBylaw     string `yaml:"amendedBylaw" json:"amendedBylaw,omitempty"`
	OfficialURL      string `yaml:"officialUrl" json:"officialUrl,omitempty"`
	LastVerified     string `yaml:"lastVerified" json:"lastVerified,omitempty"`
}

// BylawSection is a canonical section of a bylaw.
type BylawSection struct {
	BylawNumber   string `yaml:"bylawNumber" json:"bylawNumber"`
	SectionNumber string `yaml:"sectionNumber" json:"sectionNumber"`
	Title         string `yaml:"title" json:"title"`
	Content       string `yaml:"content" json:"content,omitempty"`
}

// Config locates the registry file.
type Config struct {
	Path string `yaml:"path"`
}

type file struct {
	Bylaws   []BylawRecord  `yaml:"bylaws"`
	Sections []BylawSection `yaml:"sections"`
}

// Registry is a read-mostly in-memory view of the canonical records.
type Registry struct {
	bylaws   map[string]BylawRecord
	sections map[string]map[string]BylawSection
	order    []string
}

// Load reads the registry file. A missing path yields an empty registry:
// the service still serves results, just all unverified.
func Load(cfg Config) (*Registry, error) {
	if cfg.Path == "" {
		return New(nil, nil), nil
	}

	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil, nil), nil
		}

		return nil, fmt.Errorf("read registry: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}

	return New(f.Bylaws, f.Sections), nil
}

// New builds a registry from explicit records, used by tests and fixtures.
func New(bylaws []BylawRecord, sections []BylawSection) *Registry {
	r := &Registry{
		bylaws:   make(map[string]BylawRecord, len(bylaws)),
		sections: make(map[string]map[string]BylawSection),
	}

	for _, b := range bylaws {
		if _, ok := r.bylaws[b.Number]; !ok {
			r.order = append(r.order, b.Number)
		}

		r.bylaws[b.Number] = b
	}

	for _, s := range sections {
		m, ok := r.sections[s.BylawNumber]
		if !ok {
			m = make(map[string]BylawSection)
			r.sections[s.BylawNumber] = m
		}

		m[s.SectionNumber] = s
	}

	return r
}

// Lookup returns the canonical record for a bylaw number.
func (r *Registry) Lookup(number string) (BylawRecord, bool) {
	b, ok := r.bylaws[number]
	return b, ok
}

// Section returns the canonical section for a bylaw number and section
// number.
func (r *Registry) Section(number, section string) (BylawSection, bool) {
	m, ok := r.sections[number]
	if !ok {
		return BylawSection{}, false
	}

	s, ok := m[section]
	return s, ok
}

// Bylaws lists all canonical records in file order.
func (r *Registry) Bylaws() []BylawRecord {
	out := make([]BylawRecord, 0, len(r.order))
	for _, number := range r.order {
		out = append(out, r.bylaws[number])
	}

	return out
}
