package bylawsearch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/civicgrid/bylawsearch/cache"
	"github.com/civicgrid/bylawsearch/embedding"
	chromemdb "github.com/civicgrid/bylawsearch/persistence/chromem"
	"github.com/civicgrid/bylawsearch/registry"
	"github.com/civicgrid/bylawsearch/vector"
	"github.com/civicgrid/bylawsearch/verify"
)

// vocabulary drives the deterministic test embedder: a text's vector is the
// count of each word, so related texts land close together and unrelated
// texts do not.
var vocabulary = []string{
	"construction", "hours", "tree", "permit", "parking", "animal", "noise", "fee",
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  func(texts []string) error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	fail := f.fail
	f.mu.Unlock()

	if fail != nil {
		if err := fail(texts); err != nil {
			return nil, err
		}
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = embedText(text)
	}

	return out, nil
}

func (f *fakeEmbedder) Dimensions() int {
	return len(vocabulary) + 1
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-vocabulary"
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func embedText(text string) []float32 {
	lower := strings.ToLower(text)

	v := make([]float32, len(vocabulary)+1)
	for i, word := range vocabulary {
		v[i] = float32(strings.Count(lower, word))
	}

	// Small constant component so no text embeds to the zero vector.
	v[len(vocabulary)] = 0.1

	return embedding.Normalize(v)
}

const treeBylawText = `5(7)(a) Construction Hours
No person shall carry out construction of works for tree protection except
between the hours of 7:00 a.m. and 7:00 p.m.

6. Permit Required
A permit is required before removing any protected tree.`

type serviceTestSuite struct {
	suite.Suite
	ctx      context.Context
	embedder *fakeEmbedder
	index    vector.Index
	svc      Service
}

func (suite *serviceTestSuite) SetupTest() {
	index, err := chromemdb.NewIndex(vector.Config{
		Persistent: false,
		Collection: "bylaws",
	})
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	reg := registry.New(
		[]registry.BylawRecord{
			{
				Number:           "4742",
				Title:            "Tree Protection Bylaw",
				IsConsolidated:   true,
				ConsolidatedDate: "2020-05-04",
			},
		},
		[]registry.BylawSection{
			{
				BylawNumber:   "4742",
				SectionNumber: "5(7)(a)",
				Title:         "Construction Hours",
			},
		},
	)

	cfg := Config{
		Verify: verify.Config{
			URLTemplate: "https://bylaws.example.gov/bylaws/%s",
		},
	}

	embedder := &fakeEmbedder{}

	svc, err := NewService(cfg, embedder, index, reg)
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	// Tests exercise retry exhaustion; sleeping through real backoff would
	// dominate the run time.
	s := svc.(*service)
	s.retry = RetryPolicy{
		MaxAttempts: 2,
		Backoff:     func(attempt int) time.Duration { return 0 },
	}
	s.writer.retry = s.retry

	suite.ctx = context.Background()
	suite.embedder = embedder
	suite.index = index
	suite.svc = svc
}

func (suite *serviceTestSuite) TestIngestAndSearch() {
	doc := Document{
		Filename: "bylaw-4742-tree-protection.txt",
		Text:     treeBylawText,
	}

	result, err := suite.svc.IngestDocument(suite.ctx, doc)
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.Equal("4742", result.BylawNumber)
	suite.Equal(1, result.Chunks)
	suite.Equal(1, result.Batches)
	suite.Empty(result.Err)

	resp, err := suite.svc.Search(suite.ctx, SearchQuery{
		Query:    "construction hours",
		Filters:  &SearchFilters{BylawNumber: "4742"},
		MinScore: scorePtr(0.1),
	})
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.False(resp.FromCache)
	suite.Equal(1, resp.Count)
	suite.Len(resp.Results, 1)

	r := resp.Results[0]
	suite.Equal("bylaw-4742-0", r.ID)
	suite.Equal("4742", r.BylawNumber)
	suite.Equal("5(7)(a)", r.Section)
	suite.Equal("Construction Hours", r.SectionTitle)
	suite.Contains(r.Content, "7:00 a.m.")
	suite.Greater(r.Score, float32(0.1))

	suite.True(r.IsVerified, "section is in the registry")
	suite.True(r.IsConsolidated, "registry consolidation state wins")
	suite.Equal("2020-05-04", r.ConsolidatedDate)
	suite.Equal("https://bylaws.example.gov/bylaws/4742", r.OfficialURL)
}

func (suite *serviceTestSuite) TestSearchFilterExcludes() {
	doc := Document{
		Filename: "bylaw-4742-tree-protection.txt",
		Text:     treeBylawText,
	}

	if _, err := suite.svc.IngestDocument(suite.ctx, doc); err != nil {
		suite.FailNow(err.Error())
		return
	}

	resp, err := suite.svc.Search(suite.ctx, SearchQuery{
		Query:    "construction hours",
		Filters:  &SearchFilters{BylawNumber: "9999"},
		MinScore: scorePtr(0.1),
	})
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.Equal(0, resp.Count)
	suite.Empty(resp.Results)
}

func (suite *serviceTestSuite) TestSearchMinScoreFiltersUnrelated() {
	doc := Document{
		Filename: "bylaw-4742-tree-protection.txt",
		Text:     treeBylawText,
	}

	if _, err := suite.svc.IngestDocument(suite.ctx, doc); err != nil {
		suite.FailNow(err.Error())
		return
	}

	// Unrelated query; the default minimum score drops the weak match.
	resp, err := suite.svc.Search(suite.ctx, SearchQuery{
		Query: "animal noise",
	})
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.Equal(0, resp.Count)
}

func (suite *serviceTestSuite) TestSearchCache() {
	doc := Document{
		Filename: "bylaw-4742-tree-protection.txt",
		Text:     treeBylawText,
	}

	if _, err := suite.svc.IngestDocument(suite.ctx, doc); err != nil {
		suite.FailNow(err.Error())
		return
	}

	query := SearchQuery{
		Query:    "construction hours",
		MinScore: scorePtr(0.1),
	}

	first, err := suite.svc.Search(suite.ctx, query)
	if err != nil {
		suite.FailNow(err.Error())
		return
	}
	suite.False(first.FromCache)

	calls := suite.embedder.callCount()

	second, err := suite.svc.Search(suite.ctx, SearchQuery{
		Query:    "  Construction HOURS ",
		MinScore: scorePtr(0.1),
	})
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.True(second.FromCache, "normalized query hits the same entry")
	suite.Equal(first.Results, second.Results)
	suite.Equal(calls, suite.embedder.callCount(), "cache hits make no provider calls")

	// A different filter is a different fingerprint.
	third, err := suite.svc.Search(suite.ctx, SearchQuery{
		Query:    "construction hours",
		Filters:  &SearchFilters{Category: "building"},
		MinScore: scorePtr(0.1),
	})
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.False(third.FromCache)
}

func (suite *serviceTestSuite) TestSearchCachedResultsImmutable() {
	doc := Document{
		Filename: "bylaw-4742-tree-protection.txt",
		Text:     treeBylawText,
	}

	if _, err := suite.svc.IngestDocument(suite.ctx, doc); err != nil {
		suite.FailNow(err.Error())
		return
	}

	query := SearchQuery{
		Query:    "construction hours",
		MinScore: scorePtr(0.1),
	}

	first, err := suite.svc.Search(suite.ctx, query)
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.Require().Len(first.Results, 1)

	// A caller mutating its response must not reach the cached entry.
	first.Results[0].Content = "mutated by caller"

	second, err := suite.svc.Search(suite.ctx, query)
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.True(second.FromCache)
	suite.Require().Len(second.Results, 1)
	suite.Contains(second.Results[0].Content, "7:00 a.m.")
}

func (suite *serviceTestSuite) TestSearchCacheExpiry() {
	doc := Document{
		Filename: "bylaw-4742-tree-protection.txt",
		Text:     treeBylawText,
	}

	if _, err := suite.svc.IngestDocument(suite.ctx, doc); err != nil {
		suite.FailNow(err.Error())
		return
	}

	s := suite.svc.(*service)
	s.cache = cache.New[[]SearchResult](cache.Config{TTL: 50 * time.Millisecond})

	query := SearchQuery{
		Query:    "construction hours",
		MinScore: scorePtr(0.1),
	}

	if _, err := suite.svc.Search(suite.ctx, query); err != nil {
		suite.FailNow(err.Error())
		return
	}

	time.Sleep(80 * time.Millisecond)

	resp, err := suite.svc.Search(suite.ctx, query)
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.False(resp.FromCache, "stale entries are recomputed, not served")
}

func (suite *serviceTestSuite) TestSearchValidation() {
	tests := []struct {
		name  string
		query SearchQuery
		err   error
	}{
		{name: "too short", query: SearchQuery{Query: "a"}, err: ErrQueryTooShort},
		{name: "too long", query: SearchQuery{Query: strings.Repeat("q", 501)}, err: ErrQueryTooLong},
		{name: "zero limit", query: SearchQuery{Query: "noise", Limit: intPtr(0)}, err: ErrInvalidLimit},
		{name: "limit too high", query: SearchQuery{Query: "noise", Limit: intPtr(21)}, err: ErrInvalidLimit},
		{name: "min score too high", query: SearchQuery{Query: "noise", MinScore: scorePtr(1.5)}, err: ErrInvalidMinScore},
	}

	for _, tt := range tests {
		_, err := suite.svc.Search(suite.ctx, tt.query)
		suite.ErrorIs(err, tt.err, tt.name)
	}

	suite.Equal(0, suite.embedder.callCount(), "validation precedes any provider call")
}

func (suite *serviceTestSuite) TestReingestOverwrites() {
	doc := Document{
		Filename: "bylaw-4742-tree-protection.txt",
		Text:     treeBylawText,
	}

	if _, err := suite.svc.IngestDocument(suite.ctx, doc); err != nil {
		suite.FailNow(err.Error())
		return
	}

	count := suite.index.Count()
	suite.Greater(count, 0)

	if _, err := suite.svc.IngestDocument(suite.ctx, doc); err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.Equal(count, suite.index.Count(), "deterministic ids overwrite instead of duplicating")
}

func (suite *serviceTestSuite) TestIngestEmptyDocument() {
	result, err := suite.svc.IngestDocument(suite.ctx, Document{
		Filename: "empty.txt",
		Text:     "   \n\n  ",
	})

	suite.ErrorIs(err, ErrEmptyDocument)
	suite.NotEmpty(result.Err)
	suite.Equal(0, suite.index.Count())
}

func (suite *serviceTestSuite) TestIngestUnknownBylawNumber() {
	result, err := suite.svc.IngestDocument(suite.ctx, Document{
		Filename: "meeting-minutes.txt",
		Text:     "discussion of parking near the community hall",
	})
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.Equal("unknown", result.BylawNumber)

	resp, err := suite.svc.Search(suite.ctx, SearchQuery{
		Query:    "parking",
		MinScore: scorePtr(0.1),
	})
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.Equal(1, resp.Count)

	r := resp.Results[0]
	suite.Equal("bylaw-unknown-0", r.ID)
	suite.Equal("unknown", r.BylawNumber)
	suite.False(r.IsVerified)
	suite.Empty(r.OfficialURL, "no URL fabricated for unidentified bylaws")
}

func (suite *serviceTestSuite) TestIngestDocumentsIsolatesFailures() {
	suite.embedder.fail = func(texts []string) error {
		for _, text := range texts {
			if strings.Contains(text, "EMBEDFAIL") {
				return errors.New("provider unavailable")
			}
		}

		return nil
	}

	docs := []Document{
		{Filename: "bylaw-4742-tree-protection.txt", Text: treeBylawText},
		{Filename: "bylaw-5000-noise-control.txt", Text: "3. Noise\nEMBEDFAIL no noise after dark"},
	}

	report, err := suite.svc.IngestDocuments(suite.ctx, docs)
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.Equal(2, report.Documents)
	suite.Equal(1, report.Succeeded)
	suite.Equal(1, report.Failed)
	suite.Len(report.Results, 2)

	// Input order is preserved regardless of completion order.
	suite.Equal("bylaw-4742-tree-protection.txt", report.Results[0].Filename)
	suite.Empty(report.Results[0].Err)
	suite.Equal("bylaw-5000-noise-control.txt", report.Results[1].Filename)
	suite.Contains(report.Results[1].Err, ErrEmbeddingFailed.Error())

	// The failed sibling never reached the index; the good one did.
	suite.Equal(1, suite.index.Count())
}

func (suite *serviceTestSuite) TestListBylaws() {
	bylaws, err := suite.svc.ListBylaws(suite.ctx)
	if err != nil {
		suite.FailNow(err.Error())
		return
	}

	suite.Len(bylaws, 1)
	suite.Equal("4742", bylaws[0].Number)
	suite.Equal("Tree Protection Bylaw", bylaws[0].Title)
}

func (suite *serviceTestSuite) TearDownTest() {
	if suite.svc != nil {
		suite.svc.Close()
	}

	suite.svc = nil
	suite.index = nil
	suite.embedder = nil
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(serviceTestSuite))
}

func TestNewServiceGuards(t *testing.T) {
	index, err := chromemdb.NewIndex(vector.Config{Collection: "bylaws"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewService(Config{}, nil, index, nil); err == nil {
		t.Error("expected error for missing embedder")
	}

	if _, err := NewService(Config{}, &fakeEmbedder{}, nil, nil); err == nil {
		t.Error("expected error for missing index")
	}

	// A nil registry is allowed; results are just unverified.
	svc, err := NewService(Config{}, &fakeEmbedder{}, index, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()
}

func TestIngestDocumentIndexWriteFailure(t *testing.T) {
	svc, err := NewService(Config{}, &fakeEmbedder{}, brokenIndex{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	s := svc.(*service)
	s.retry = RetryPolicy{
		MaxAttempts: 2,
		Backoff:     func(attempt int) time.Duration { return 0 },
	}
	s.writer.retry = s.retry

	result, err := svc.IngestDocument(context.Background(), Document{
		Filename: "bylaw-4742-tree-protection.txt",
		Text:     treeBylawText,
	})

	if !errors.Is(err, ErrIndexWriteFailed) {
		t.Errorf("expected ErrIndexWriteFailed, got %v", err)
	}

	if result.Err == "" {
		t.Error("result should carry the error")
	}

	if result.Batches != 0 {
		t.Errorf("no batches should have been written, got %d", result.Batches)
	}
}

type brokenIndex struct{}

func (brokenIndex) Upsert(ctx context.Context, records []vector.Record) error {
	return errors.New("disk full")
}

func (brokenIndex) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.Match, error) {
	return nil, errors.New("disk full")
}

func (brokenIndex) Count() int { return 0 }
