package bylawsearch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civicgrid/bylawsearch/cache"
	"github.com/civicgrid/bylawsearch/chunker"
	"github.com/civicgrid/bylawsearch/classify"
	"github.com/civicgrid/bylawsearch/embedding"
	"github.com/civicgrid/bylawsearch/extract"
	"github.com/civicgrid/bylawsearch/registry"
	"github.com/civicgrid/bylawsearch/vector"
	"github.com/civicgrid/bylawsearch/verify"
)

var (
	ErrQueryTooShort    = errors.New("query must be at least 2 characters")
	ErrQueryTooLong     = errors.New("query must be at most 500 characters")
	ErrInvalidLimit     = errors.New("limit must be between 1 and 20")
	ErrInvalidMinScore  = errors.New("minScore must be between 0 and 1")
	ErrEmptyDocument    = errors.New("document has no text")
	ErrEmbeddingFailed  = errors.New("embedding provider call failed")
	ErrIndexWriteFailed = errors.New("index write failed after retries")
	ErrIndexQueryFailed = errors.New("index query failed")
)

// Query validation bounds and defaults.
const (
	MinQueryLength  = 2
	MaxQueryLength  = 500
	MaxLimit        = 20
	DefaultLimit    = 5
	DefaultMinScore = 0.5
)

// Config composes per-component configuration the way the config file lays
// it out.
type Config struct {
	Vector    vector.Config    `yaml:"vector"`
	Embedding embedding.Config `yaml:"embedding"`
	Registry  registry.Config  `yaml:"registry"`
	Verify    verify.Config    `yaml:"verify"`
	Cache     cache.Config     `yaml:"cache"`
	Ingest    IngestConfig     `yaml:"ingest"`

	// CallTimeout bounds each embedding and index call, independent of
	// the retry policy. Zero means DefaultCallTimeout.
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// DefaultCallTimeout bounds a single outbound call so one hung request
// cannot stall a whole batch or query.
const DefaultCallTimeout = 30 * time.Second

// IngestConfig tunes the offline ingestion pipeline.
type IngestConfig struct {
	ChunkSize      int `yaml:"chunkSize"`
	Overlap        int `yaml:"overlap"`
	EmbedBatchSize int `yaml:"embedBatchSize"`
	WriteBatchSize int `yaml:"writeBatchSize"`
	Concurrency    int `yaml:"concurrency"`
}

// DefaultWriteBatchSize bounds one index write call.
const DefaultWriteBatchSize = 100

// DefaultConcurrency bounds how many documents ingest in parallel, limited
// in practice by embedding-provider rate limits.
const DefaultConcurrency = 4

// Document is one raw bylaw document handed to ingestion. Bytes are decoded
// by the source; ingestion sees normalized text.
type Document struct {
	Filename string    `json:"filename"`
	Text     string    `json:"text"`
	ModTime  time.Time `json:"modTime,omitempty"`
}

// SearchFilters restrict a query. Dates are ISO strings (YYYY-MM-DD).
type SearchFilters struct {
	Category    string `json:"category,omitempty"`
	BylawNumber string `json:"bylawNumber,omitempty"`
	DateFrom    string `json:"dateFrom,omitempty"`
	DateTo      string `json:"dateTo,omitempty"`
}

// SearchQuery is the query contract of the search service. Limit and
// MinScore are pointers so an omitted field takes the default while an
// explicit out-of-range zero is rejected.
type SearchQuery struct {
	Query    string         `json:"query"`
	Filters  *SearchFilters `json:"filters,omitempty"`
	Limit    *int           `json:"limit,omitempty"`
	MinScore *float32       `json:"minScore,omitempty"`
}

// Validate checks bounds and applies defaults in place. It must pass before
// any network call is made.
func (q *SearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)

	if len(q.Query) < MinQueryLength {
		return ErrQueryTooShort
	}

	if len(q.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}

	if q.Limit == nil {
		n := DefaultLimit
		q.Limit = &n
	}

	if *q.Limit < 1 || *q.Limit > MaxLimit {
		return ErrInvalidLimit
	}

	if q.MinScore == nil {
		s := float32(DefaultMinScore)
		q.MinScore = &s
	}

	if *q.MinScore < 0 || *q.MinScore > 1 {
		return ErrInvalidMinScore
	}

	return nil
}

func (q *SearchQuery) filter() vector.Filter {
	if q.Filters == nil {
		return vector.Filter{}
	}

	return vector.Filter{
		BylawNumber: q.Filters.BylawNumber,
		Category:    q.Filters.Category,
		DateFrom:    q.Filters.DateFrom,
		DateTo:      q.Filters.DateTo,
	}
}

// SearchResult is one ranked hit, annotated by the verification layer.
type SearchResult struct {
	ID               string  `json:"id"`
	BylawNumber      string  `json:"bylawNumber"`
	Title            string  `json:"title,omitempty"`
	Section          string  `json:"section,omitempty"`
	SectionTitle     string  `json:"sectionTitle,omitempty"`
	Category         string  `json:"category,omitempty"`
	Content          string  `json:"content"`
	Score            float32 `json:"score"`
	IsVerified       bool    `json:"isVerified"`
	IsConsolidated   bool    `json:"isConsolidated"`
	ConsolidatedDate string  `json:"consolidatedDate,omitempty"`
	OfficialURL      string  `json:"officialUrl,omitempty"`
	AmendmentWarning string  `json:"amendmentWarning,omitempty"`
}

// SearchMeta describes how a response was produced.
type SearchMeta struct {
	ExecutionTimeMs int64          `json:"executionTimeMs"`
	Filters         *SearchFilters `json:"filters,omitempty"`
}

// SearchResponse is the query API response.
type SearchResponse struct {
	Results   []SearchResult `json:"results"`
	Count     int            `json:"count"`
	FromCache bool           `json:"fromCache"`
	Meta      SearchMeta     `json:"meta"`
}

// DocumentResult reports one document's trip through the pipeline.
type DocumentResult struct {
	Filename    string        `json:"filename"`
	BylawNumber string        `json:"bylawNumber"`
	Chunks      int           `json:"chunks"`
	Batches     int           `json:"batches"`
	Duration    time.Duration `json:"duration"`
	Err         string        `json:"error,omitempty"`
}

// IngestReport aggregates a batch ingestion run. One document's failure
// never cancels its siblings; the job runs to completion and reports.
type IngestReport struct {
	Documents int              `json:"documents"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []DocumentResult `json:"results"`
}

// UnknownBylaw marks records whose bylaw number no pattern could extract.
// The number is left explicitly unknown, never fabricated.
const UnknownBylaw = "unknown"

// RecordID builds the deterministic vector record id for a chunk, so
// re-ingesting the same document overwrites instead of duplicating.
func RecordID(bylawNumber string, chunkIndex int) string {
	if bylawNumber == "" {
		bylawNumber = UnknownBylaw
	}

	return fmt.Sprintf("bylaw-%s-%d", bylawNumber, chunkIndex)
}

// ChunkToRecord assembles the persisted record for one chunk: deterministic
// id, chunk text, and the metadata bag the search and verification layers
// read back.
func ChunkToRecord(doc Document, md extract.Metadata, ch chunker.Chunk) vector.Record {
	number := md.Number
	if number == "" {
		number = UnknownBylaw
	}

	section, sectionTitle := classifyChunk(ch)

	metadata := map[string]string{
		vector.MetaBylawNumber: number,
		vector.MetaSection:     section,
		vector.MetaCategory:    classify.Category(md.Title+" "+sectionTitle, ch.Text),
		vector.MetaSource:      "document",
		vector.MetaFilename:    doc.Filename,
	}

	if md.Title != "" {
		metadata[vector.MetaTitle] = md.Title
	}

	if sectionTitle != "" {
		metadata[vector.MetaSectionTitle] = sectionTitle
	}

	if md.IsConsolidated {
		metadata[vector.MetaConsolidated] = "true"
	}

	if md.ConsolidatedDate != "" {
		metadata[vector.MetaConsolidatedDate] = md.ConsolidatedDate
	}

	if len(md.AmendedBylaws) > 0 {
		metadata[vector.MetaAmendedBylaws] = strings.Join(md.AmendedBylaws, ",")
	}

	return vector.Record{
		ID:       RecordID(number, ch.Index),
		Metadata: metadata,
		Content:  ch.Text,
	}
}

func classifyChunk(ch chunker.Chunk) (section, title string) {
	s, ok := classify.Heading(ch.Text)
	if !ok || s.Number == "" {
		return fmt.Sprintf("chunk-%d", ch.Index), s.Title
	}

	return s.Number, s.Title
}

// MatchToResult projects an index match into the API result shape and
// applies the verifier's annotation.
func MatchToResult(m vector.Match, a verify.Annotation) SearchResult {
	return SearchResult{
		ID:               m.ID,
		BylawNumber:      m.Metadata[vector.MetaBylawNumber],
		Title:            m.Metadata[vector.MetaTitle],
		Section:          m.Metadata[vector.MetaSection],
		SectionTitle:     m.Metadata[vector.MetaSectionTitle],
		Category:         m.Metadata[vector.MetaCategory],
		Content:          m.Content,
		Score:            m.Score,
		IsVerified:       a.Verified,
		IsConsolidated:   a.IsConsolidated,
		ConsolidatedDate: a.ConsolidatedDate,
		OfficialURL:      a.OfficialURL,
		AmendmentWarning: a.AmendmentWarning,
	}
}
