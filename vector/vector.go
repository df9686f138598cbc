// Package vector defines the narrow interface to the vector index service.
package vector

import "context"

// Metadata keys shared between ingestion, filtering, and verification.
const (
	MetaBylawNumber      = "bylaw_number"
	MetaTitle            = "title"
	MetaSection          = "section"
	MetaSectionTitle     = "section_title"
	MetaCategory         = "category"
	MetaConsolidated     = "consolidated"
	MetaConsolidatedDate = "consolidated_date"
	MetaAmendedBylaws    = "amended_bylaws"
	MetaSource           = "source"
	MetaFilename         = "filename"
)

// Config configures the vector index backend.
type Config struct {
	Persistent bool   `yaml:"persistent"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// Index stores embedded records and serves similarity queries. Query results
// come back in descending score order as ranked by the backend; ties are not
// further broken and their order is non-deterministic.
type Index interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]Match, error)
	Count() int
}

// Record is the persisted unit: one chunk embedding plus its metadata bag.
// IDs are deterministic so re-ingestion overwrites instead of duplicating.
type Record struct {
	ID        string            `json:"id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
}

// Match is a query hit with its similarity score.
type Match struct {
	Record
	Score float32 `json:"score"`
}

// Filter restricts a query to matching metadata. Zero-valued fields are
// ignored. Dates are ISO strings compared lexically.
type Filter struct {
	BylawNumber string
	Category    string
	DateFrom    string
	DateTo      string
}

// Empty reports whether the filter restricts anything.
func (f Filter) Empty() bool {
	return f == Filter{}
}
