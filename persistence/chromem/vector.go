// Package chromem implements the vector index on top of chromem-go.
package chromem

import (
	"context"

	"github.com/philippgille/chromem-go"

	"github.com/civicgrid/bylawsearch/vector"
)

// NewIndex opens a chromem-backed vector index, in-memory or persistent on
// disk depending on the configuration.
func NewIndex(cfg vector.Config) (vector.Index, error) {
	var db *chromem.DB
	if !cfg.Persistent {
		db = chromem.NewDB()
	} else {
		d, err := chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, err
		}

		db = d
	}

	// Embeddings are always supplied by the caller, so no embedding
	// function is registered on the collection.
	c, err := db.GetOrCreateCollection(cfg.Collection, nil, noEmbedding)
	if err != nil {
		return nil, err
	}

	return &index{c}, nil
}

func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, nil
}

type index struct {
	collection *chromem.Collection
}

// Upsert writes records by their deterministic IDs. Existing documents with
// the same ID are removed first, so re-ingestion overwrites rather than
// duplicates.
func (idx *index) Upsert(ctx context.Context, records []vector.Record) error {
	for _, record := range records {
		if err := idx.collection.Delete(ctx, nil, nil, record.ID); err != nil {
			return err
		}

		doc := chromem.Document{
			ID:        record.ID,
			Metadata:  record.Metadata,
			Embedding: record.Embedding,
			Content:   record.Content,
		}

		if err := idx.collection.AddDocument(ctx, doc); err != nil {
			return err
		}
	}

	return nil
}

// Query ranks all documents by similarity, applies the filter, and truncates
// to topK. Filtering happens after ranking: chromem's where clause rejects
// queries asking for more results than the filtered candidate set holds, and
// date ranges are not expressible as equality matches anyway.
func (idx *index) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.Match, error) {
	n := idx.collection.Count()
	if n == 0 {
		return nil, nil
	}

	results, err := idx.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, err
	}

	matches := make([]vector.Match, 0, topK)
	for _, result := range results {
		record := vector.Record{
			ID:        result.ID,
			Metadata:  result.Metadata,
			Embedding: result.Embedding,
			Content:   result.Content,
		}

		if !matchesFilter(record.Metadata, filter) {
			continue
		}

		matches = append(matches, vector.Match{
			Record: record,
			Score:  result.Similarity,
		})

		if len(matches) == topK {
			break
		}
	}

	return matches, nil
}

func (idx *index) Count() int {
	return idx.collection.Count()
}

func matchesFilter(metadata map[string]string, filter vector.Filter) bool {
	if filter.Empty() {
		return true
	}

	if filter.BylawNumber != "" && metadata[vector.MetaBylawNumber] != filter.BylawNumber {
		return false
	}

	if filter.Category != "" && metadata[vector.MetaCategory] != filter.Category {
		return false
	}

	date := metadata[vector.MetaConsolidatedDate]
	if filter.DateFrom != "" && (date == "" || date < filter.DateFrom) {
		return false
	}

	if filter.DateTo != "" && (date == "" || date > filter.DateTo) {
		return false
	}

	return true
}
