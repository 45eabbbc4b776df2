// Package unimemory is the top-level entry point of the memory engine: a
// retrieval and consolidation layer that deduplicates incoming statements,
// classifies them into sectors, links them into an associative graph, and
// ranks them against free-text queries.
//
// Usage:
//
//	import "github.com/shreyasgurav/UniMemory"
//
//	engine, err := unimemory.New()
//	engine, err := unimemory.New(unimemory.WithConfigFile("config.yaml"))
//
//	scope := types.Scope{OwnerID: "tenant", UserID: "alice"}
//	engine.Remember(ctx, scope, "User's name is Sam and he loves morning runs")
//	engine.Recall(ctx, scope, "tell me about sam", search.Options{})
package unimemory

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shreyasgurav/UniMemory/config"
	"github.com/shreyasgurav/UniMemory/embedding"
	"github.com/shreyasgurav/UniMemory/ingest"
	"github.com/shreyasgurav/UniMemory/internal/metrics"
	"github.com/shreyasgurav/UniMemory/search"
	"github.com/shreyasgurav/UniMemory/store"
	"github.com/shreyasgurav/UniMemory/types"
	"github.com/shreyasgurav/UniMemory/waypoint"
)

// Engine wires the full memory pipeline: ingestion, storage, the waypoint
// graph, and hybrid retrieval.
type Engine struct {
	config   *config.Config
	logger   *zap.Logger
	store    store.CandidateStore
	embedder embedding.Provider
	pipeline *ingest.Pipeline
	searcher *search.Searcher
}

// Option configures the engine created by [New].
type Option func(*options)

type options struct {
	config     *config.Config
	configFile string
	logger     *zap.Logger
	store      store.CandidateStore
	embedder   embedding.Provider
	extractor  ingest.Extractor
	clock      types.Clock
	registry   prometheus.Registerer
	redis      redis.UniversalClient
}

// WithConfig supplies a complete configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithConfigFile loads configuration from a YAML file, with environment
// overrides applied on top.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configFile = path }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStore sets a pre-built candidate store, bypassing database wiring.
func WithStore(s store.CandidateStore) Option {
	return func(o *options) { o.store = s }
}

// WithEmbedder sets a pre-built embedding provider.
func WithEmbedder(p embedding.Provider) Option {
	return func(o *options) { o.embedder = p }
}

// WithExtractor sets the ingestion extractor. Without one, raw input is
// stored verbatim.
func WithExtractor(e ingest.Extractor) Option {
	return func(o *options) { o.extractor = e }
}

// WithClock sets the time source. Tests use a fixed clock.
func WithClock(c types.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMetricsRegistry enables Prometheus instrumentation on the registry.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithRedis sets a pre-built Redis client for the embedding cache.
func WithRedis(client redis.UniversalClient) Option {
	return func(o *options) { o.redis = client }
}

// New creates an Engine. Without a database DSN the store runs in-memory;
// the embedding backend defaults to the OpenAI provider and can be swapped
// for the static one via configuration or [WithEmbedder].
func New(opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.config
	if cfg == nil {
		var err error
		cfg, err = config.Load(o.configFile)
		if err != nil {
			return nil, err
		}
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = config.NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
	}

	var m *metrics.Metrics
	if o.registry != nil {
		m = metrics.New(o.registry)
	}

	st := o.store
	if st == nil {
		var err error
		st, err = openStore(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	embedder := o.embedder
	if embedder == nil {
		embedder = buildEmbedder(cfg, o.redis, logger)
	}

	extractor := o.extractor
	if extractor == nil && cfg.Extractor.Enabled {
		extractor = ingest.NewLLMExtractor(cfg.Extractor.LLM, logger)
	}

	clock := o.clock
	if clock == nil {
		clock = types.SystemClock{}
	}

	linker := waypoint.NewLinker(st, cfg.Linker, clock, logger)
	expander := waypoint.NewExpander(st, cfg.Expander, logger)

	return &Engine{
		config:   cfg,
		logger:   logger,
		store:    st,
		embedder: embedder,
		pipeline: ingest.NewPipeline(st, embedder, linker, extractor, cfg.Ingest, clock, m, logger),
		searcher: search.NewSearcher(st, embedder, expander, cfg.Search, clock, m, logger),
	}, nil
}

// Remember ingests raw input for the scope: triage, extraction, dedup,
// classification, storage and graph linking.
func (e *Engine) Remember(ctx context.Context, scope types.Scope, content string) (*ingest.Result, error) {
	return e.pipeline.Add(ctx, scope, content)
}

// RememberExtracted stores drafts the caller already extracted, skipping
// triage and extraction.
func (e *Engine) RememberExtracted(ctx context.Context, scope types.Scope, drafts []ingest.Draft) (*ingest.Result, error) {
	return e.pipeline.AddExtracted(ctx, scope, drafts)
}

// RememberBatch ingests multiple inputs concurrently.
func (e *Engine) RememberBatch(ctx context.Context, scope types.Scope, contents []string) ([]*ingest.Result, error) {
	return e.pipeline.AddBatch(ctx, scope, contents)
}

// Recall ranks the scope's memories against a free-text query.
func (e *Engine) Recall(ctx context.Context, scope types.Scope, query string, opts search.Options) (*search.Response, error) {
	return e.searcher.Search(ctx, scope, query, opts)
}

// Forget soft-deletes a memory. The row stays for audit; it stops
// appearing in reads.
func (e *Engine) Forget(ctx context.Context, scope types.Scope, id string) error {
	return e.store.Deactivate(ctx, scope, id)
}

// Get returns stored memories by ID within the scope.
func (e *Engine) Get(ctx context.Context, scope types.Scope, ids ...string) ([]*types.Memory, error) {
	return e.store.GetByIDs(ctx, scope, ids)
}

// Store exposes the underlying candidate store for advanced callers.
func (e *Engine) Store() store.CandidateStore { return e.store }

// Close flushes buffered log entries.
func (e *Engine) Close() error {
	return e.logger.Sync()
}

func openStore(cfg *config.Config, logger *zap.Logger) (store.CandidateStore, error) {
	if cfg.Database.DSN == "" {
		return store.NewMemoryStore(), nil
	}

	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	case "", "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store.NewGormStore(db, cfg.Store, logger)
}

func buildEmbedder(cfg *config.Config, redisClient redis.UniversalClient, logger *zap.Logger) embedding.Provider {
	var provider embedding.Provider
	if cfg.Embedding.Provider == "static" {
		provider = embedding.NewStaticProvider(cfg.Embedding.StaticDimensions)
	} else {
		provider = embedding.NewOpenAIProvider(cfg.Embedding.OpenAI, logger)
	}

	if redisClient == nil && cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if redisClient != nil {
		provider = embedding.NewCachedProvider(provider, redisClient, cfg.Embedding.Cache, logger)
	}
	return provider
}
