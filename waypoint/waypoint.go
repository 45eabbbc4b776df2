// Package waypoint maintains the associative graph between memories and
// walks it during retrieval.
//
// Every stored memory gets exactly one outgoing link at ingestion time: an
// edge to its most similar peer when one is similar enough, otherwise a
// self-loop that keeps the node reachable. Retrieval expands seed memories
// along edges, attenuating weight per hop, under a hard expansion budget.
package waypoint

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shreyasgurav/UniMemory/internal/vectormath"
	"github.com/shreyasgurav/UniMemory/store"
	"github.com/shreyasgurav/UniMemory/types"
)

// LinkerConfig tunes edge creation.
type LinkerConfig struct {
	// PoolLimit bounds how many peers a new memory is compared against.
	PoolLimit int `yaml:"pool_limit" json:"pool_limit"`

	// LinkThreshold is the minimum cosine similarity for a peer edge;
	// below it the memory links to itself.
	LinkThreshold float64 `yaml:"link_threshold" json:"link_threshold"`

	// SelfLoopWeight is the weight of the fallback self edge.
	SelfLoopWeight float64 `yaml:"self_loop_weight" json:"self_loop_weight"`
}

// DefaultLinkerConfig returns the standard linking parameters.
func DefaultLinkerConfig() LinkerConfig {
	return LinkerConfig{
		PoolLimit:      1000,
		LinkThreshold:  0.5,
		SelfLoopWeight: 1.0,
	}
}

// Linker creates the single outgoing edge of a freshly stored memory.
type Linker struct {
	store  store.CandidateStore
	config LinkerConfig
	clock  types.Clock
	logger *zap.Logger
}

// NewLinker builds a Linker over the given store.
func NewLinker(s store.CandidateStore, config LinkerConfig, clock types.Clock, logger *zap.Logger) *Linker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = types.SystemClock{}
	}
	if config.PoolLimit <= 0 {
		config.PoolLimit = DefaultLinkerConfig().PoolLimit
	}
	return &Linker{
		store:  s,
		config: config,
		clock:  clock,
		logger: logger.With(zap.String("component", "waypoint_linker")),
	}
}

// Link picks the most similar peer of m from the scope's top memories and
// records a directed edge to it. Without a similar-enough peer the edge is
// a self-loop, so every node has at least one outgoing edge.
func (l *Linker) Link(ctx context.Context, m *types.Memory) error {
	if m == nil || m.ID == "" {
		return types.NewError(types.ErrInvalidInput, "link requires a stored memory")
	}
	if len(m.Embedding) == 0 {
		return types.NewError(types.ErrInvalidInput, "link requires an embedding")
	}

	scope := types.Scope{OwnerID: m.OwnerID, UserID: m.UserID}
	pool, err := l.store.TopBySalience(ctx, scope, m.ID, l.config.PoolLimit)
	if err != nil {
		return fmt.Errorf("fetch link pool: %w", err)
	}

	var (
		best    *types.Memory
		bestSim float64
	)
	for _, peer := range pool {
		if len(peer.Embedding) == 0 {
			continue
		}
		sim := vectormath.Cosine(m.Embedding, peer.Embedding)
		if sim > bestSim {
			best, bestSim = peer, sim
		}
	}

	now := l.clock.Now()
	w := &types.Waypoint{
		ID:        uuid.NewString(),
		SrcID:     m.ID,
		DstID:     m.ID,
		Weight:    l.config.SelfLoopWeight,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if best != nil && bestSim >= l.config.LinkThreshold {
		w.DstID = best.ID
		w.Weight = bestSim
	}

	if err := l.store.UpsertWaypoint(ctx, w); err != nil {
		return fmt.Errorf("upsert waypoint: %w", err)
	}

	l.logger.Debug("linked memory",
		zap.String("src_id", w.SrcID),
		zap.String("dst_id", w.DstID),
		zap.Float64("weight", w.Weight))
	return nil
}

// ExpanderConfig tunes graph traversal.
type ExpanderConfig struct {
	// EdgeMinWeight filters edges at fetch time; weaker edges are never
	// followed.
	EdgeMinWeight float64 `yaml:"edge_min_weight" json:"edge_min_weight"`

	// DecayFactor attenuates weight per hop.
	DecayFactor float64 `yaml:"decay_factor" json:"decay_factor"`

	// PruneThreshold drops expanded nodes whose propagated weight fell
	// below it.
	PruneThreshold float64 `yaml:"prune_threshold" json:"prune_threshold"`
}

// DefaultExpanderConfig returns the standard traversal parameters.
func DefaultExpanderConfig() ExpanderConfig {
	return ExpanderConfig{
		EdgeMinWeight:  0.1,
		DecayFactor:    0.8,
		PruneThreshold: 0.1,
	}
}

// Expansion is one memory reached by traversal: its propagated weight and
// the node path that led to it, seed first.
type Expansion struct {
	Weight float64
	Path   []string
}

// Expander walks the waypoint graph breadth-first from seed memories.
type Expander struct {
	store  store.CandidateStore
	config ExpanderConfig
	logger *zap.Logger
}

// NewExpander builds an Expander over the given store.
func NewExpander(s store.CandidateStore, config ExpanderConfig, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{
		store:  s,
		config: config,
		logger: logger.With(zap.String("component", "waypoint_expander")),
	}
}

type frontierNode struct {
	id     string
	weight float64
	path   []string
}

// Expand traverses outward from the seeds and returns newly reached memory
// IDs with their propagated weights. Seeds themselves are never returned.
// maxExpansion caps the total number of expansions across the whole walk,
// not a traversal depth; zero or negative budget expands nothing.
func (e *Expander) Expand(ctx context.Context, seedIDs []string, maxExpansion int) (map[string]Expansion, error) {
	results := make(map[string]Expansion)
	if maxExpansion <= 0 || len(seedIDs) == 0 {
		return results, nil
	}

	visited := make(map[string]bool, len(seedIDs))
	queue := make([]frontierNode, 0, len(seedIDs))
	for _, id := range seedIDs {
		if id == "" || visited[id] {
			continue
		}
		visited[id] = true
		queue = append(queue, frontierNode{id: id, weight: 1.0, path: []string{id}})
	}

	expansions := 0
	for len(queue) > 0 && expansions < maxExpansion {
		cur := queue[0]
		queue = queue[1:]

		edges, err := e.store.Neighbors(ctx, cur.id, e.config.EdgeMinWeight)
		if err != nil {
			return nil, fmt.Errorf("fetch neighbors of %s: %w", cur.id, err)
		}

		for _, edge := range edges {
			if visited[edge.DstID] {
				continue
			}
			weight := cur.weight * edge.Weight * e.config.DecayFactor
			if weight < e.config.PruneThreshold {
				continue
			}

			visited[edge.DstID] = true
			path := append(append([]string{}, cur.path...), edge.DstID)
			results[edge.DstID] = Expansion{Weight: weight, Path: path}
			queue = append(queue, frontierNode{id: edge.DstID, weight: weight, path: path})

			expansions++
			if expansions >= maxExpansion {
				break
			}
		}
	}

	e.logger.Debug("expanded waypoint graph",
		zap.Int("seeds", len(seedIDs)),
		zap.Int("reached", len(results)))
	return results, nil
}
