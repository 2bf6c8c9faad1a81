package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meridianlab/semsearch/internal/domain"
)

// --- Mocks ---

type mockExpander struct {
	expansion domain.Expansion
}

func (m *mockExpander) Expand(_ context.Context, query string) domain.Expansion {
	if len(m.expansion.Queries) == 0 {
		return domain.IdentityExpansion(query)
	}
	return m.expansion
}

type mockRetriever struct {
	candidates    []domain.Candidate
	err           error
	vecCandidates []domain.Candidate
	vecErr        error
	lastTopK      int
}

func (m *mockRetriever) Retrieve(
	_ context.Context, _ domain.Expansion, _ domain.Filters, topK int,
) ([]domain.Candidate, error) {
	m.lastTopK = topK
	return m.candidates, m.err
}

func (m *mockRetriever) RetrieveVector(
	_ context.Context, _ []float32, _ domain.Filters, topK int,
) ([]domain.Candidate, error) {
	m.lastTopK = topK
	return m.vecCandidates, m.vecErr
}

type mockContent struct {
	items      map[string]domain.ContentItem
	getErr     error
	vector     []float32
	vectorErr  error
	categories map[string]int64
}

func (m *mockContent) GetMulti(_ context.Context, ids []string) ([]domain.ContentItem, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []domain.ContentItem
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockContent) Vector(_ context.Context, _ string) ([]float32, error) {
	return m.vector, m.vectorErr
}

func (m *mockContent) CategoryCounts(_ context.Context) (map[string]int64, error) {
	return m.categories, nil
}

type mockEnhancer struct {
	degraded bool
	called   bool
}

func (m *mockEnhancer) Summarize(_ context.Context, results []domain.RankedResult) bool {
	m.called = true
	for i := range results {
		results[i].Summary = "summary"
	}
	return m.degraded
}

type mockStats struct {
	recorded   []string
	recordErr  error
	topQueries []domain.QueryCount
}

func (m *mockStats) Record(_ context.Context, query string, _ time.Duration) error {
	m.recorded = append(m.recorded, query)
	return m.recordErr
}

func (m *mockStats) TopQueries(_ context.Context, _ int) ([]domain.QueryCount, error) {
	return m.topQueries, nil
}

func items(ids ...string) map[string]domain.ContentItem {
	m := make(map[string]domain.ContentItem, len(ids))
	for _, id := range ids {
		m[id] = domain.ContentItem{ID: id, Title: "title " + id, Body: "body", Category: "Tech"}
	}
	return m
}

func newTestService(
	exp *mockExpander, ret *mockRetriever, ct *mockContent, enh *mockEnhancer, st *mockStats,
) *Service {
	// nil pointers must become nil interfaces, not typed nils
	var enhancer Enhancer
	if enh != nil {
		enhancer = enh
	}
	var stats StatsRecorder
	if st != nil {
		stats = st
	}
	return New(exp, ret, ct, enhancer, stats, domain.SearchBounds{}, 0.3, 5*time.Second, zap.NewNop())
}

func mustRequest(t *testing.T, query string, maxResults int) domain.SearchRequest {
	t.Helper()
	req, err := domain.NewSearchRequest(query, domain.Filters{}, maxResults, 0, domain.SearchBounds{})
	if err != nil {
		t.Fatalf("NewSearchRequest failed: %v", err)
	}
	return req
}

// --- Search ---

func TestSearch_HappyPath(t *testing.T) {
	exp := &mockExpander{expansion: domain.NewExpansion("solar", []string{"renewable"})}
	ret := &mockRetriever{candidates: []domain.Candidate{
		{ContentID: "a", Score: 0.9, Seq: 1, SourceQuery: "solar"},
		{ContentID: "b", Score: 0.8, Seq: 2, SourceQuery: "renewable"},
		{ContentID: "a", Score: 0.7, Seq: 1, SourceQuery: "renewable"}, // dup, lower score
	}}
	ct := &mockContent{items: items("a", "b")}
	enh := &mockEnhancer{}
	st := &mockStats{}
	svc := newTestService(exp, ret, ct, enh, st)

	resp, err := svc.Search(context.Background(), mustRequest(t, "solar", 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 deduplicated results, got %d", len(resp.Results))
	}
	if resp.Results[0].Item.ID != "a" || resp.Results[0].Score != 0.9 {
		t.Errorf("unexpected top result: %+v", resp.Results[0])
	}
	if resp.Results[0].Summary != "summary" {
		t.Error("expected enhancer to run")
	}
	if resp.TotalCandidates != 3 {
		t.Errorf("expected 3 raw candidates, got %d", resp.TotalCandidates)
	}
	if len(resp.QueriesUsed) != 2 {
		t.Errorf("expected 2 queries used, got %v", resp.QueriesUsed)
	}
	if resp.ExpansionDegraded {
		t.Error("expansion should not be degraded")
	}
	if len(st.recorded) != 1 || st.recorded[0] != "solar" {
		t.Errorf("expected stats recorded for query, got %v", st.recorded)
	}
}

func TestSearch_RetrieveErrorPropagates(t *testing.T) {
	ret := &mockRetriever{err: domain.ErrRetrievalUnavailable}
	svc := newTestService(&mockExpander{}, ret, &mockContent{}, nil, nil)

	_, err := svc.Search(context.Background(), mustRequest(t, "q", 10))
	if !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestSearch_ExpansionDegradedSurfaces(t *testing.T) {
	exp := &mockExpander{expansion: domain.IdentityExpansion("solar")}
	ret := &mockRetriever{candidates: []domain.Candidate{{ContentID: "a", Score: 0.9}}}
	ct := &mockContent{items: items("a")}
	svc := newTestService(exp, ret, ct, nil, nil)

	resp, err := svc.Search(context.Background(), mustRequest(t, "solar", 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.ExpansionDegraded {
		t.Error("expected degraded flag to surface")
	}
}

func TestSearch_AppliesSimilarityFloor(t *testing.T) {
	ret := &mockRetriever{candidates: []domain.Candidate{
		{ContentID: "a", Score: 0.9},
		{ContentID: "b", Score: 0.1}, // below default 0.3 floor
	}}
	ct := &mockContent{items: items("a", "b")}
	svc := newTestService(&mockExpander{}, ret, ct, nil, nil)

	resp, err := svc.Search(context.Background(), mustRequest(t, "q", 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Item.ID != "a" {
		t.Fatalf("expected only the above-floor result, got %v", resp.Results)
	}
}

func TestSearch_DropsStaleCandidates(t *testing.T) {
	ret := &mockRetriever{candidates: []domain.Candidate{
		{ContentID: "a", Score: 0.9},
		{ContentID: "ghost", Score: 0.8},
	}}
	ct := &mockContent{items: items("a")}
	svc := newTestService(&mockExpander{}, ret, ct, nil, nil)

	resp, err := svc.Search(context.Background(), mustRequest(t, "q", 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("stale candidate must be dropped, got %v", resp.Results)
	}
}

func TestSearch_MaxResultsCap(t *testing.T) {
	ret := &mockRetriever{candidates: []domain.Candidate{
		{ContentID: "a", Score: 0.9},
		{ContentID: "b", Score: 0.8},
		{ContentID: "c", Score: 0.7},
		{ContentID: "d", Score: 0.6},
		{ContentID: "e", Score: 0.5},
	}}
	ct := &mockContent{items: items("a", "b", "c", "d", "e")}
	svc := newTestService(&mockExpander{}, ret, ct, nil, nil)

	resp, err := svc.Search(context.Background(), mustRequest(t, "q", 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Item.ID != "a" || resp.Results[1].Item.ID != "b" {
		t.Errorf("expected top 2 by score, got %v", resp.Results)
	}
}

func TestSearch_StatsFailureIsNonFatal(t *testing.T) {
	ret := &mockRetriever{candidates: []domain.Candidate{{ContentID: "a", Score: 0.9}}}
	ct := &mockContent{items: items("a")}
	st := &mockStats{recordErr: errors.New("stats down")}
	svc := newTestService(&mockExpander{}, ret, ct, nil, st)

	_, err := svc.Search(context.Background(), mustRequest(t, "q", 10))
	if err != nil {
		t.Fatalf("stats failure must not fail search: %v", err)
	}
}

// --- FindSimilar ---

func TestFindSimilar_ExcludesSelf(t *testing.T) {
	ret := &mockRetriever{vecCandidates: []domain.Candidate{
		{ContentID: "self", Score: 1.0},
		{ContentID: "a", Score: 0.9},
		{ContentID: "b", Score: 0.8},
	}}
	ct := &mockContent{vector: []float32{0.1}, items: items("a", "b")}
	svc := newTestService(&mockExpander{}, ret, ct, nil, nil)

	results, err := svc.FindSimilar(context.Background(), "self", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Item.ID == "self" {
			t.Error("the item itself must be excluded")
		}
	}
	if ret.lastTopK != 6 {
		t.Errorf("expected topK+1=6 to be fetched, got %d", ret.lastTopK)
	}
}

func TestFindSimilar_ClampsToConfiguredBounds(t *testing.T) {
	ret := &mockRetriever{}
	ct := &mockContent{vector: []float32{0.1}}
	svc := New(
		&mockExpander{}, ret, ct, nil, nil,
		domain.SearchBounds{Default: 4, Max: 8}, 0.3, 5*time.Second, zap.NewNop(),
	)

	if _, err := svc.FindSimilar(context.Background(), "self", 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.lastTopK != 9 {
		t.Errorf("expected configured cap 8 plus self slot, got %d", ret.lastTopK)
	}

	if _, err := svc.FindSimilar(context.Background(), "self", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.lastTopK != 5 {
		t.Errorf("expected configured default 4 plus self slot, got %d", ret.lastTopK)
	}
}

func TestFindSimilar_NotFound(t *testing.T) {
	ct := &mockContent{vectorErr: domain.ErrNotFound}
	svc := newTestService(&mockExpander{}, &mockRetriever{}, ct, nil, nil)

	_, err := svc.FindSimilar(context.Background(), "missing", 5)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- Suggest ---

func TestSuggest_MergesQueriesAndCategories(t *testing.T) {
	ct := &mockContent{categories: map[string]int64{"Technology": 5, "Environment": 2}}
	st := &mockStats{topQueries: []domain.QueryCount{
		{Query: "machine learning", Count: 9},
		{Query: "solar power", Count: 4},
	}}
	svc := newTestService(&mockExpander{}, &mockRetriever{}, ct, nil, st)

	suggestions, err := svc.Suggest(context.Background(), "", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(suggestions) != 4 {
		t.Fatalf("expected 4 suggestions, got %v", suggestions)
	}
	// popular queries come first
	if suggestions[0] != "machine learning" {
		t.Errorf("unexpected first suggestion: %q", suggestions[0])
	}
}

func TestSuggest_PrefixFilter(t *testing.T) {
	ct := &mockContent{categories: map[string]int64{"Technology": 5, "Environment": 2}}
	st := &mockStats{topQueries: []domain.QueryCount{{Query: "tech trends", Count: 3}}}
	svc := newTestService(&mockExpander{}, &mockRetriever{}, ct, nil, st)

	suggestions, err := svc.Suggest(context.Background(), "tech", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("expected 2 matches, got %v", suggestions)
	}
}

func TestSuggest_LimitRespected(t *testing.T) {
	ct := &mockContent{categories: map[string]int64{
		"A-cat": 1, "B-cat": 1, "C-cat": 1, "D-cat": 1,
	}}
	svc := newTestService(&mockExpander{}, &mockRetriever{}, ct, nil, nil)

	suggestions, err := svc.Suggest(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %v", suggestions)
	}
}
