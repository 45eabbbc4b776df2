package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shreyasgurav/UniMemory/store"
	"github.com/shreyasgurav/UniMemory/types"
	"github.com/shreyasgurav/UniMemory/waypoint"
)

var searchClock = types.FixedClock{T: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}

// stubEmbedder returns canned vectors keyed by exact text.
type stubEmbedder struct {
	vecs map[string][]float64
	err  error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vecs[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 0, 1}, nil
}

func (s *stubEmbedder) Dimensions() int { return 4 }

func newSearcher(s store.CandidateStore, embedder *stubEmbedder, config Config) *Searcher {
	expander := waypoint.NewExpander(s, waypoint.DefaultExpanderConfig(), nil)
	return NewSearcher(s, embedder, expander, config, searchClock, nil, nil)
}

func putMemory(t *testing.T, s store.CandidateStore, id, content string, embedding []float64, tags []string) *types.Memory {
	t.Helper()

	now := searchClock.Now()
	m := &types.Memory{
		ID:         id,
		Content:    content,
		Sector:     types.SectorSemantic,
		Salience:   0.5,
		Tags:       tags,
		OwnerID:    "owner",
		UserID:     "user",
		Embedding:  embedding,
		CreatedAt:  now,
		UpdatedAt:  now,
		LastSeenAt: now,
		IsActive:   true,
	}
	require.NoError(t, s.Insert(context.Background(), m))
	return m
}

func TestSearch_RejectsBlankQuery(t *testing.T) {
	searcher := newSearcher(store.NewMemoryStore(), &stubEmbedder{}, DefaultConfig())

	_, err := searcher.Search(context.Background(), types.Scope{OwnerID: "owner"}, "   ", Options{})
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))

	_, err = searcher.Search(context.Background(), types.Scope{}, "query", Options{})
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
}

func TestSearch_EmbeddingFailureDegradesToEmpty(t *testing.T) {
	s := store.NewMemoryStore()
	putMemory(t, s, "m1", "tokyo weather", []float64{1, 0, 0, 0}, nil)

	embedder := &stubEmbedder{err: types.NewError(types.ErrEmbeddingUnavailable, "down")}
	searcher := newSearcher(s, embedder, DefaultConfig())

	resp, err := searcher.Search(context.Background(), types.Scope{OwnerID: "owner"}, "tokyo weather", Options{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearch_RanksSimilarAndOverlappingFirst(t *testing.T) {
	s := store.NewMemoryStore()
	putMemory(t, s, "match", "the weather in tokyo is rainy", []float64{1, 0, 0, 0}, nil)
	putMemory(t, s, "other", "quarterly revenue numbers", []float64{0, 1, 0, 0}, nil)

	embedder := &stubEmbedder{vecs: map[string][]float64{
		"the weather in tokyo": {1, 0, 0, 0},
	}}
	searcher := newSearcher(s, embedder, DefaultConfig())

	resp, err := searcher.Search(context.Background(), types.Scope{OwnerID: "owner"}, "Tell me about the weather in Tokyo", Options{Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "match", resp.Results[0].Memory.ID)
	assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)
}

func TestSearch_IntentPrefixStripped(t *testing.T) {
	s := store.NewMemoryStore()
	putMemory(t, s, "m1", "sam prefers morning meetings", []float64{1, 0, 0, 0}, nil)

	// The embedder only knows the stripped form; the raw query would miss.
	embedder := &stubEmbedder{vecs: map[string][]float64{
		"sam prefers": {1, 0, 0, 0},
	}}
	searcher := newSearcher(s, embedder, DefaultConfig())

	resp, err := searcher.Search(context.Background(), types.Scope{OwnerID: "owner"}, "Please tell me about Sam prefers", Options{Limit: 1, Debug: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Greater(t, resp.Results[0].Debug.Similarity, 0.9)
}

func TestSearch_HighConfidenceSkipsExpansion(t *testing.T) {
	s := store.NewMemoryStore()
	m1 := putMemory(t, s, "m1", "alpha topic", []float64{1, 0, 0, 0}, nil)
	putMemory(t, s, "hidden", "hidden associate", []float64{0, 0, 1, 0}, nil)

	// Strong edge that would surface "hidden" if expansion ran.
	require.NoError(t, s.UpsertWaypoint(context.Background(), &types.Waypoint{
		SrcID: m1.ID, DstID: "hidden", Weight: 0.9,
		CreatedAt: searchClock.Now(), UpdatedAt: searchClock.Now(),
	}))

	embedder := &stubEmbedder{vecs: map[string][]float64{"alpha topic": {1, 0, 0, 0}}}
	config := DefaultConfig()
	config.CandidateMultiplier = 1
	searcher := newSearcher(s, embedder, config)

	resp, err := searcher.Search(context.Background(), types.Scope{OwnerID: "owner"}, "alpha topic", Options{Limit: 1})
	require.NoError(t, err)
	assert.True(t, resp.HighConfidence)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "m1", resp.Results[0].Memory.ID)
}

func TestSearch_LowConfidenceExpandsWaypoints(t *testing.T) {
	s := store.NewMemoryStore()
	putMemory(t, s, "m1", "alpha beta gamma", []float64{1, 0, 0, 0}, nil)
	putMemory(t, s, "m2", "unrelated one", []float64{0, 1, 0, 0}, nil)
	putMemory(t, s, "m3", "unrelated two", []float64{0, 0, 1, 0}, nil)
	putMemory(t, s, "extra", "associated context", []float64{0, 0, 0, 1}, nil)

	require.NoError(t, s.UpsertWaypoint(context.Background(), &types.Waypoint{
		SrcID: "m1", DstID: "extra", Weight: 0.9,
		CreatedAt: searchClock.Now(), UpdatedAt: searchClock.Now(),
	}))

	embedder := &stubEmbedder{vecs: map[string][]float64{"alpha beta gamma": {1, 0, 0, 0}}}
	config := DefaultConfig()
	config.CandidateMultiplier = 1
	searcher := newSearcher(s, embedder, config)

	resp, err := searcher.Search(context.Background(), types.Scope{OwnerID: "owner"}, "alpha beta gamma", Options{Limit: 3, Debug: true})
	require.NoError(t, err)
	assert.False(t, resp.HighConfidence)

	var extra *Result
	for i := range resp.Results {
		if resp.Results[i].Memory.ID == "extra" {
			extra = &resp.Results[i]
		}
	}
	require.NotNil(t, extra, "graph-only candidate must surface")
	assert.InDelta(t, 0.72, extra.Debug.WaypointWeight, 1e-9)
	assert.Equal(t, []string{"m1", "extra"}, extra.Path)
	assert.Equal(t, "m1", resp.Results[0].Memory.ID, "direct hit still wins")
}

func TestSearch_ReinforcesReturnedMemories(t *testing.T) {
	s := store.NewMemoryStore()
	putMemory(t, s, "m1", "alpha beta", []float64{1, 0, 0, 0}, nil)

	embedder := &stubEmbedder{vecs: map[string][]float64{"alpha beta": {1, 0, 0, 0}}}
	searcher := newSearcher(s, embedder, DefaultConfig())
	scope := types.Scope{OwnerID: "owner", UserID: "user"}

	resp, err := searcher.Search(context.Background(), scope, "alpha beta", Options{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Reinforced)
	assert.InDelta(t, 0.6, resp.Results[0].Memory.Salience, 1e-9)

	stored, err := s.GetByIDs(context.Background(), scope, []string{"m1"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.InDelta(t, 0.6, stored[0].Salience, 1e-9, "boost is persisted")
}

func TestSearch_SectorFilter(t *testing.T) {
	s := store.NewMemoryStore()
	now := searchClock.Now()
	require.NoError(t, s.Insert(context.Background(), &types.Memory{
		ID: "proc", Content: "first do this then do that",
		Sector: types.SectorProcedural, Salience: 0.5,
		OwnerID: "owner", UserID: "user", Embedding: []float64{1, 0, 0, 0},
		CreatedAt: now, UpdatedAt: now, LastSeenAt: now, IsActive: true,
	}))
	putMemory(t, s, "sem", "a plain fact", []float64{1, 0, 0, 0}, nil)

	embedder := &stubEmbedder{vecs: map[string][]float64{"anything": {1, 0, 0, 0}}}
	searcher := newSearcher(s, embedder, DefaultConfig())

	resp, err := searcher.Search(context.Background(), types.Scope{OwnerID: "owner"}, "anything", Options{Sector: types.SectorProcedural})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "proc", resp.Results[0].Memory.ID)
}

func TestStripIntent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Tell me about the weather in Tokyo", "the weather in tokyo"},
		{"please write a mail to sam", "sam"},
		{"plain query", "plain query"},
		{"Please", "Please"}, // nothing survives, fall back to the original
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripIntent(tt.in), tt.in)
	}
}
