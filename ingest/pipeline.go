// Package ingest turns raw input into stored memories.
//
// The pipeline triages input, splits it into drafts, folds near-duplicates
// into the existing memory they repeat, and stores the rest classified,
// scored and linked into the waypoint graph.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shreyasgurav/UniMemory/embedding"
	"github.com/shreyasgurav/UniMemory/fingerprint"
	"github.com/shreyasgurav/UniMemory/internal/metrics"
	"github.com/shreyasgurav/UniMemory/salience"
	"github.com/shreyasgurav/UniMemory/sector"
	"github.com/shreyasgurav/UniMemory/store"
	"github.com/shreyasgurav/UniMemory/types"
	"github.com/shreyasgurav/UniMemory/waypoint"
)

// Config tunes the ingestion pipeline.
type Config struct {
	// DedupeScanLimit bounds how many of the scope's most salient
	// memories a new draft is compared against.
	DedupeScanLimit int `yaml:"dedupe_scan_limit" json:"dedupe_scan_limit"`

	// DedupeThreshold is the maximum fingerprint Hamming distance at
	// which two statements count as the same memory.
	DedupeThreshold int `yaml:"dedupe_threshold" json:"dedupe_threshold"`

	// BatchConcurrency caps parallel inputs in AddBatch.
	BatchConcurrency int `yaml:"batch_concurrency" json:"batch_concurrency"`
}

// DefaultConfig returns the standard ingestion parameters.
func DefaultConfig() Config {
	return Config{
		DedupeScanLimit:  100,
		DedupeThreshold:  fingerprint.SimilarityThreshold,
		BatchConcurrency: 4,
	}
}

// StoredMemory describes one draft's fate.
type StoredMemory struct {
	ID           string
	Deduplicated bool
	Sector       types.Sector
	Salience     float64
}

// Result is the outcome of ingesting one raw input.
type Result struct {
	WorthRemembering bool
	Reason           string
	Stored           []StoredMemory
}

// Pipeline ingests raw input into the candidate store.
type Pipeline struct {
	store     store.CandidateStore
	embedder  embedding.Provider
	linker    *waypoint.Linker
	extractor Extractor
	config    Config
	clock     types.Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewPipeline wires the ingestion pipeline. A nil extractor stores input
// verbatim.
func NewPipeline(s store.CandidateStore, embedder embedding.Provider, linker *waypoint.Linker, extractor Extractor, config Config, clock types.Clock, m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = types.SystemClock{}
	}
	if extractor == nil {
		extractor = PassthroughExtractor{}
	}
	def := DefaultConfig()
	if config.DedupeScanLimit <= 0 {
		config.DedupeScanLimit = def.DedupeScanLimit
	}
	if config.DedupeThreshold <= 0 {
		config.DedupeThreshold = def.DedupeThreshold
	}
	if config.BatchConcurrency <= 0 {
		config.BatchConcurrency = def.BatchConcurrency
	}
	return &Pipeline{
		store:     s,
		embedder:  embedder,
		linker:    linker,
		extractor: extractor,
		config:    config,
		clock:     clock,
		metrics:   m,
		logger:    logger.With(zap.String("component", "ingest_pipeline")),
	}
}

// Add ingests one raw input for the scope.
func (p *Pipeline) Add(ctx context.Context, scope types.Scope, content string) (*Result, error) {
	if scope.OwnerID == "" || scope.UserID == "" {
		return nil, types.NewError(types.ErrInvalidInput, "owner id and user id are required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, types.NewError(types.ErrInvalidInput, "content cannot be empty")
	}

	worthiness, err := p.extractor.CheckWorthiness(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("worthiness check: %w", err)
	}
	if !worthiness.WorthRemembering {
		p.logger.Debug("input not worth remembering",
			zap.String("owner_id", scope.OwnerID),
			zap.String("reason", worthiness.Reason))
		return &Result{Reason: worthiness.Reason}, nil
	}

	drafts, err := p.extractor.Extract(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("extract drafts: %w", err)
	}

	result := &Result{WorthRemembering: true, Reason: worthiness.Reason}
	for _, draft := range drafts {
		if draft.Empty() {
			continue
		}
		stored, err := p.storeDraft(ctx, scope, draft)
		if err != nil {
			return nil, err
		}
		result.Stored = append(result.Stored, *stored)
	}
	return result, nil
}

// AddExtracted stores drafts the caller already extracted, skipping triage
// and extraction. Blank drafts are skipped.
func (p *Pipeline) AddExtracted(ctx context.Context, scope types.Scope, drafts []Draft) (*Result, error) {
	if scope.OwnerID == "" || scope.UserID == "" {
		return nil, types.NewError(types.ErrInvalidInput, "owner id and user id are required")
	}
	result := &Result{WorthRemembering: true}
	for _, draft := range drafts {
		if draft.Empty() {
			continue
		}
		stored, err := p.storeDraft(ctx, scope, draft)
		if err != nil {
			return nil, err
		}
		result.Stored = append(result.Stored, *stored)
	}
	return result, nil
}

// AddBatch ingests multiple raw inputs concurrently under a bounded worker
// budget. Results line up with inputs by index; the first failure cancels
// the rest.
func (p *Pipeline) AddBatch(ctx context.Context, scope types.Scope, contents []string) ([]*Result, error) {
	results := make([]*Result, len(contents))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.BatchConcurrency)
	for i, content := range contents {
		i, content := i, content
		g.Go(func() error {
			r, err := p.Add(gctx, scope, content)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// storeDraft deduplicates one draft against the scope's strongest memories
// and stores it when it is genuinely new.
func (p *Pipeline) storeDraft(ctx context.Context, scope types.Scope, draft Draft) (*StoredMemory, error) {
	fp := fingerprint.Compute(draft.Content)

	existing, err := p.store.Fingerprinted(ctx, scope, p.config.DedupeScanLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch dedupe candidates: %w", err)
	}

	now := p.clock.Now()
	for _, em := range existing {
		if em.Fingerprint == "" {
			continue
		}
		if fingerprint.HammingDistance(fp, em.Fingerprint) <= p.config.DedupeThreshold {
			if err := p.store.ApplyBoost(ctx, em.ID, salience.DuplicateBoost, now); err != nil {
				return nil, fmt.Errorf("reinforce duplicate %s: %w", em.ID, err)
			}
			p.metrics.IncDeduplicated()
			p.logger.Debug("folded duplicate into existing memory",
				zap.String("memory_id", em.ID))
			return &StoredMemory{
				ID:           em.ID,
				Deduplicated: true,
				Sector:       em.Sector,
				Salience:     types.ClampSalience(em.Salience + salience.DuplicateBoost),
			}, nil
		}
	}

	classification := sector.Classify(draft.Content)
	initialSalience := salience.Initial(len(classification.Additional))

	vec, err := p.embedder.Embed(ctx, draft.Content)
	if err != nil {
		return nil, fmt.Errorf("embed draft: %w", err)
	}

	m := &types.Memory{
		ID:          uuid.NewString(),
		Content:     draft.Content,
		Fingerprint: fp,
		Sector:      classification.Primary,
		Salience:    initialSalience,
		DecayRate:   sector.DecayRate(classification.Primary),
		Tags:        draft.Tags,
		OwnerID:     scope.OwnerID,
		UserID:      scope.UserID,
		Embedding:   vec,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastSeenAt:  now,
		IsActive:    true,
	}
	if err := p.store.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	if err := p.linker.Link(ctx, m); err != nil {
		return nil, fmt.Errorf("link memory: %w", err)
	}

	p.metrics.IncIngested()
	p.logger.Info("stored memory",
		zap.String("memory_id", m.ID),
		zap.String("sector", string(m.Sector)),
		zap.Float64("salience", m.Salience))

	return &StoredMemory{
		ID:       m.ID,
		Sector:   m.Sector,
		Salience: m.Salience,
	}, nil
}
