// Package search ranks stored memories against a free-text query.
//
// The ranker is hybrid: vector similarity seeds the candidate set, and when
// average similarity is too low to trust, the waypoint graph contributes
// associatively reached candidates. Every candidate is scored on
// similarity, token overlap, graph weight, recency and tag match, and the
// winners get their salience reinforced as a side effect.
package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shreyasgurav/UniMemory/embedding"
	"github.com/shreyasgurav/UniMemory/fingerprint"
	"github.com/shreyasgurav/UniMemory/internal/metrics"
	"github.com/shreyasgurav/UniMemory/internal/vectormath"
	"github.com/shreyasgurav/UniMemory/salience"
	"github.com/shreyasgurav/UniMemory/sector"
	"github.com/shreyasgurav/UniMemory/store"
	"github.com/shreyasgurav/UniMemory/types"
	"github.com/shreyasgurav/UniMemory/waypoint"
)

// Conversational lead-ins stripped before the query is embedded. The
// residue after stripping carries the retrieval intent; if nothing
// survives, the original text is used as-is.
var intentPhrases = []string{
	"write a mail to", "send a mail to", "write an email to",
	"help me with", "tell me about", "can you find",
	"i need to", "i want to", "please",
}

// Config tunes the retrieval pipeline.
type Config struct {
	// DefaultLimit applies when the caller passes no limit.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// CandidateMultiplier sizes the vector candidate pool relative to
	// the requested limit.
	CandidateMultiplier int `yaml:"candidate_multiplier" json:"candidate_multiplier"`

	// HighConfidenceSim is the average candidate similarity above which
	// graph expansion is skipped.
	HighConfidenceSim float64 `yaml:"high_confidence_sim" json:"high_confidence_sim"`

	// SeedLimit caps how many top candidates seed the graph walk.
	SeedLimit int `yaml:"seed_limit" json:"seed_limit"`

	// ExpansionMultiplier sizes the graph expansion budget relative to
	// the requested limit.
	ExpansionMultiplier int `yaml:"expansion_multiplier" json:"expansion_multiplier"`
}

// DefaultConfig returns the standard retrieval parameters.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:        10,
		CandidateMultiplier: 3,
		HighConfidenceSim:   0.55,
		SeedLimit:           10,
		ExpansionMultiplier: 2,
	}
}

// Options narrows a single search call.
type Options struct {
	// Limit caps returned results; zero means the configured default.
	Limit int

	// MinSalience drops candidates below the threshold.
	MinSalience float64

	// Sector restricts candidates to one sector when non-empty.
	Sector types.Sector

	// Debug attaches the per-signal breakdown to each result.
	Debug bool
}

// Result is one ranked memory.
type Result struct {
	Memory *types.Memory
	Score  float64

	// Path is the waypoint chain that reached this memory, seed first.
	// Direct vector hits have a single-element path.
	Path []string

	// Debug is present only when Options.Debug was set.
	Debug *ScoreBreakdown
}

// ScoreBreakdown exposes the individual scoring signals.
type ScoreBreakdown struct {
	Similarity     float64 `json:"similarity"`
	TokenOverlap   float64 `json:"token_overlap"`
	WaypointWeight float64 `json:"waypoint_weight"`
	Recency        float64 `json:"recency"`
	TagMatch       float64 `json:"tag_match"`
	SectorWeight   float64 `json:"sector_weight"`
}

// Response is the outcome of one search.
type Response struct {
	Results []Result

	// HighConfidence reports whether vector similarity alone was trusted
	// and graph expansion skipped.
	HighConfidence bool

	// AvgSimilarity is the mean similarity of the vector candidates.
	AvgSimilarity float64

	// Reinforced counts results whose salience boost was persisted.
	// Reinforcement is best-effort; a shortfall is not an error.
	Reinforced int
}

// Searcher runs hybrid retrieval over a candidate store.
type Searcher struct {
	store    store.CandidateStore
	embedder embedding.Provider
	expander *waypoint.Expander
	config   Config
	clock    types.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewSearcher wires the retrieval pipeline.
func NewSearcher(s store.CandidateStore, embedder embedding.Provider, expander *waypoint.Expander, config Config, clock types.Clock, m *metrics.Metrics, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = types.SystemClock{}
	}
	def := DefaultConfig()
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = def.DefaultLimit
	}
	if config.CandidateMultiplier <= 0 {
		config.CandidateMultiplier = def.CandidateMultiplier
	}
	if config.HighConfidenceSim <= 0 {
		config.HighConfidenceSim = def.HighConfidenceSim
	}
	if config.SeedLimit <= 0 {
		config.SeedLimit = def.SeedLimit
	}
	if config.ExpansionMultiplier <= 0 {
		config.ExpansionMultiplier = def.ExpansionMultiplier
	}
	return &Searcher{
		store:    s,
		embedder: embedder,
		expander: expander,
		config:   config,
		clock:    clock,
		metrics:  m,
		logger:   logger.With(zap.String("component", "searcher")),
	}
}

// Search ranks the scope's memories against query.
//
// An unreachable embedding backend degrades to an empty result set rather
// than an error; a blank query is the caller's mistake and is rejected.
func (s *Searcher) Search(ctx context.Context, scope types.Scope, query string, opts Options) (*Response, error) {
	start := s.clock.Now()
	defer func() {
		s.metrics.ObserveSearchLatency(s.clock.Now().Sub(start).Seconds())
	}()
	s.metrics.IncSearches()

	if strings.TrimSpace(query) == "" {
		return nil, types.NewError(types.ErrInvalidInput, "query cannot be empty")
	}
	if scope.OwnerID == "" {
		return nil, types.NewError(types.ErrInvalidInput, "owner id is required")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}

	coreQuery := stripIntent(query)
	querySector := sector.Classify(coreQuery).Primary

	queryEmbedding, err := s.embedder.Embed(ctx, coreQuery)
	if err != nil {
		s.logger.Warn("query embedding failed, returning no results",
			zap.String("owner_id", scope.OwnerID),
			zap.Error(err))
		return &Response{Results: []Result{}}, nil
	}

	filters := store.QueryFilters{Sector: opts.Sector, MinSalience: opts.MinSalience}
	candidates, err := s.store.NearestByVector(ctx, scope, queryEmbedding, filters, limit*s.config.CandidateMultiplier)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*types.Memory, len(candidates))
	seedIDs := make([]string, 0, len(candidates))
	var simSum float64
	for _, m := range candidates {
		byID[m.ID] = m
		seedIDs = append(seedIDs, m.ID)
		simSum += vectormath.Cosine(queryEmbedding, m.Embedding)
	}

	avgSim := 0.0
	if len(candidates) > 0 {
		avgSim = simSum / float64(len(candidates))
	}
	highConfidence := avgSim >= s.config.HighConfidenceSim

	expansions := map[string]waypoint.Expansion{}
	if !highConfidence && len(seedIDs) > 0 {
		s.metrics.IncExpansions()
		seeds := seedIDs
		if len(seeds) > s.config.SeedLimit {
			seeds = seeds[:s.config.SeedLimit]
		}
		expansions, err = s.expander.Expand(ctx, seeds, limit*s.config.ExpansionMultiplier)
		if err != nil {
			return nil, err
		}

		expandedIDs := make([]string, 0, len(expansions))
		for id := range expansions {
			if _, ok := byID[id]; !ok {
				expandedIDs = append(expandedIDs, id)
			}
		}
		if len(expandedIDs) > 0 {
			// Expansion reaches across the whole tenant; scope rules for
			// associative hops match the vector path.
			expanded, err := s.store.GetByIDs(ctx, scope, expandedIDs)
			if err != nil {
				return nil, err
			}
			for _, m := range expanded {
				byID[m.ID] = m
			}
		}
	}

	queryTokens := fingerprint.Tokenize(coreQuery)
	now := s.clock.Now()

	results := make([]Result, 0, len(byID))
	for _, m := range byID {
		similarity := 0.0
		if len(m.Embedding) > 0 {
			similarity = vectormath.Cosine(queryEmbedding, m.Embedding)
		}
		sectorWeight := 1.0
		if m.Sector != "" {
			sectorWeight = sector.RelationshipWeight(querySector, m.Sector)
		}
		adjustedSim := similarity * sectorWeight

		waypointWeight := 0.0
		path := []string{m.ID}
		if exp, ok := expansions[m.ID]; ok {
			waypointWeight = exp.Weight
			path = exp.Path
		}

		overlap := TokenOverlap(coreQuery, m.Content)
		recency := Recency(m.SeenAt(), now)
		tagMatch := TagMatch(queryTokens, m.Tags)

		r := Result{
			Memory: m,
			Score:  HybridScore(adjustedSim, overlap, waypointWeight, recency, tagMatch),
			Path:   path,
		}
		if opts.Debug {
			r.Debug = &ScoreBreakdown{
				Similarity:     adjustedSim,
				TokenOverlap:   overlap,
				WaypointWeight: waypointWeight,
				Recency:        recency,
				TagMatch:       tagMatch,
				SectorWeight:   sectorWeight,
			}
		}
		results = append(results, r)
	}

	// Two-key sort keeps equal scores deterministic across runs.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	reinforced := s.reinforce(ctx, results, now)

	return &Response{
		Results:        results,
		HighConfidence: highConfidence,
		AvgSimilarity:  avgSim,
		Reinforced:     reinforced,
	}, nil
}

// reinforce boosts the salience of returned memories. Failures are logged
// and counted, never surfaced to the caller.
func (s *Searcher) reinforce(ctx context.Context, results []Result, now time.Time) int {
	reinforced := 0
	for _, r := range results {
		if err := s.store.ApplyBoost(ctx, r.Memory.ID, salience.RetrievalBoost, now); err != nil {
			s.metrics.IncReinforcementFailures()
			s.logger.Warn("retrieval reinforcement failed",
				zap.String("memory_id", r.Memory.ID),
				zap.Error(types.NewError(types.ErrReinforcementFailure, "boost write failed").WithCause(err)))
			continue
		}
		salience.ReinforceRetrieval(r.Memory, now)
		reinforced++
	}
	return reinforced
}

func stripIntent(query string) string {
	core := strings.ToLower(strings.TrimSpace(query))
	for _, phrase := range intentPhrases {
		core = strings.ReplaceAll(core, phrase, " ")
	}
	core = strings.Join(strings.Fields(core), " ")
	if core == "" {
		return strings.TrimSpace(query)
	}
	return core
}
