package bylawsearch

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/civicgrid/bylawsearch/chunker"
	"github.com/civicgrid/bylawsearch/extract"
	"github.com/civicgrid/bylawsearch/vector"
)

func intPtr(n int) *int           { return &n }
func scorePtr(s float32) *float32 { return &s }

func TestSearchQueryValidate(t *testing.T) {
	tests := []struct {
		name  string
		query SearchQuery
		err   error
	}{
		{
			name:  "minimum length accepted",
			query: SearchQuery{Query: "ab"},
		},
		{
			name:  "below minimum length",
			query: SearchQuery{Query: "a"},
			err:   ErrQueryTooShort,
		},
		{
			name:  "whitespace only",
			query: SearchQuery{Query: "   \t  "},
			err:   ErrQueryTooShort,
		},
		{
			name:  "maximum length accepted",
			query: SearchQuery{Query: strings.Repeat("q", 500)},
		},
		{
			name:  "above maximum length",
			query: SearchQuery{Query: strings.Repeat("q", 501)},
			err:   ErrQueryTooLong,
		},
		{
			name:  "explicit zero limit rejected",
			query: SearchQuery{Query: "noise", Limit: intPtr(0)},
			err:   ErrInvalidLimit,
		},
		{
			name:  "maximum limit accepted",
			query: SearchQuery{Query: "noise", Limit: intPtr(20)},
		},
		{
			name:  "above maximum limit",
			query: SearchQuery{Query: "noise", Limit: intPtr(21)},
			err:   ErrInvalidLimit,
		},
		{
			name:  "negative min score",
			query: SearchQuery{Query: "noise", MinScore: scorePtr(-0.1)},
			err:   ErrInvalidMinScore,
		},
		{
			name:  "min score above one",
			query: SearchQuery{Query: "noise", MinScore: scorePtr(1.1)},
			err:   ErrInvalidMinScore,
		},
		{
			name:  "zero min score accepted",
			query: SearchQuery{Query: "noise", MinScore: scorePtr(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestSearchQueryValidateAppliesDefaults(t *testing.T) {
	assert := assert.New(t)

	query := SearchQuery{Query: "  construction hours  "}
	require.NoError(t, query.Validate())

	assert.Equal("construction hours", query.Query)
	assert.Equal(DefaultLimit, *query.Limit)
	assert.Equal(float32(DefaultMinScore), *query.MinScore)

	// Explicit values survive validation untouched.
	query = SearchQuery{Query: "noise", Limit: intPtr(3), MinScore: scorePtr(0.9)}
	require.NoError(t, query.Validate())

	assert.Equal(3, *query.Limit)
	assert.Equal(float32(0.9), *query.MinScore)
}

func TestRecordID(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("bylaw-4742-0", RecordID("4742", 0))
	assert.Equal("bylaw-4742-12", RecordID("4742", 12))
	assert.Equal("bylaw-unknown-0", RecordID("", 0))
}

func TestChunkToRecord(t *testing.T) {
	assert := assert.New(t)

	doc := Document{Filename: "bylaw-4742-tree-protection.txt"}
	md := extract.Metadata{
		Number:           "4742",
		Title:            "tree protection",
		IsConsolidated:   true,
		ConsolidatedDate: "2020-05-04",
		AmendedBylaws:    []string{"4800", "4912"},
	}
	ch := chunker.Chunk{
		Index: 2,
		Text:  "5(7)(a) Construction Hours\nNo construction except between 7:00 a.m. and 7:00 p.m.",
	}

	record := ChunkToRecord(doc, md, ch)

	assert.Equal("bylaw-4742-2", record.ID)
	assert.Equal(ch.Text, record.Content)

	assert.Equal("4742", record.Metadata[vector.MetaBylawNumber])
	assert.Equal("tree protection", record.Metadata[vector.MetaTitle])
	assert.Equal("5(7)(a)", record.Metadata[vector.MetaSection])
	assert.Equal("Construction Hours", record.Metadata[vector.MetaSectionTitle])
	assert.Equal("building", record.Metadata[vector.MetaCategory])
	assert.Equal("true", record.Metadata[vector.MetaConsolidated])
	assert.Equal("2020-05-04", record.Metadata[vector.MetaConsolidatedDate])
	assert.Equal("4800,4912", record.Metadata[vector.MetaAmendedBylaws])
	assert.Equal("document", record.Metadata[vector.MetaSource])
	assert.Equal(doc.Filename, record.Metadata[vector.MetaFilename])
}

func TestChunkToRecordWithoutHeading(t *testing.T) {
	assert := assert.New(t)

	doc := Document{Filename: "meeting-minutes.txt"}
	ch := chunker.Chunk{Index: 3, Text: "continuation of the previous provision"}

	record := ChunkToRecord(doc, extract.Metadata{}, ch)

	assert.Equal("bylaw-unknown-3", record.ID)
	assert.Equal("unknown", record.Metadata[vector.MetaBylawNumber])
	assert.Equal("chunk-3", record.Metadata[vector.MetaSection])
	assert.NotContains(record.Metadata, vector.MetaTitle)
	assert.NotContains(record.Metadata, vector.MetaConsolidated)
	assert.NotContains(record.Metadata, vector.MetaAmendedBylaws)
}

func TestConfigDecode(t *testing.T) {
	assert := assert.New(t)

	raw := `
vector:
  persistent: true
  path: /var/lib/bylawsearch/vectors
  collection: bylaws
embedding:
  provider: openai
  model: text-embedding-3-small
  dimensions: 1536
  batchSize: 5
  timeout: 30s
registry:
  path: /etc/bylawsearch/registry.yaml
verify:
  urlTemplate: https://bylaws.example.gov/%s
cache:
  ttl: 5m
  capacity: 100
ingest:
  chunkSize: 1000
  overlap: 200
  embedBatchSize: 5
  writeBatchSize: 100
  concurrency: 4
callTimeout: 30s
`

	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))

	assert.True(cfg.Vector.Persistent)
	assert.Equal("/var/lib/bylawsearch/vectors", cfg.Vector.Path)
	assert.Equal("bylaws", cfg.Vector.Collection)

	assert.Equal("openai", cfg.Embedding.Provider)
	assert.Equal("text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(1536, cfg.Embedding.Dimensions)
	assert.Equal(30*time.Second, cfg.Embedding.Timeout)

	assert.Equal("/etc/bylawsearch/registry.yaml", cfg.Registry.Path)
	assert.Equal("https://bylaws.example.gov/%s", cfg.Verify.URLTemplate)

	assert.Equal(5*time.Minute, cfg.Cache.TTL)
	assert.Equal(100, cfg.Cache.Capacity)

	assert.Equal(1000, cfg.Ingest.ChunkSize)
	assert.Equal(200, cfg.Ingest.Overlap)
	assert.Equal(4, cfg.Ingest.Concurrency)

	assert.Equal(30*time.Second, cfg.CallTimeout)
}
