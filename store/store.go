// Package store defines the candidate-store collaborator of the retrieval
// engine and provides two implementations: an in-memory store for tests and
// embedded use, and a GORM-backed store for relational databases.
//
// Every read and write is scoped to a (tenant, end-user) pair; the store is
// the enforcement point for that isolation.
package store

import (
	"context"
	"time"

	"github.com/shreyasgurav/UniMemory/types"
)

// QueryFilters narrows candidate fetches on the search path.
type QueryFilters struct {
	// Sector restricts candidates to one sector when non-empty.
	Sector types.Sector

	// MinSalience drops candidates below the threshold when positive.
	MinSalience float64
}

// CandidateStore is the persistence collaborator of the engine.
//
// Scope handling: OwnerID is always required. For the search-path reads
// (NearestByVector, GetByIDs) an empty Scope.UserID means "all end-users of
// the tenant"; the ingestion-path reads (Fingerprinted, TopBySalience)
// always use the full pair, since duplicate checks and waypoint links must
// never cross an end-user boundary.
type CandidateStore interface {
	// Insert persists a new memory.
	Insert(ctx context.Context, m *types.Memory) error

	// GetByIDs returns the active memories with the given IDs, restricted
	// to the scope. Missing IDs are skipped, not errors.
	GetByIDs(ctx context.Context, scope types.Scope, ids []string) ([]*types.Memory, error)

	// NearestByVector returns up to limit active memories with embeddings,
	// ordered by vector distance to the query embedding, nearest first.
	NearestByVector(ctx context.Context, scope types.Scope, embedding []float64, f QueryFilters, limit int) ([]*types.Memory, error)

	// TopBySalience returns up to limit active memories with embeddings in
	// the scope, excluding excludeID, ordered by salience descending.
	TopBySalience(ctx context.Context, scope types.Scope, excludeID string, limit int) ([]*types.Memory, error)

	// Fingerprinted returns up to limit active fingerprinted memories in
	// the scope, ordered by salience descending. Feeds duplicate checks.
	Fingerprinted(ctx context.Context, scope types.Scope, limit int) ([]*types.Memory, error)

	// ApplyBoost adds boost to a memory's salience, clamped to [0,1], and
	// stamps LastSeenAt. Returns a NOT_FOUND error for unknown IDs.
	ApplyBoost(ctx context.Context, id string, boost float64, now time.Time) error

	// Deactivate soft-deletes a memory in the scope. Memories are never
	// physically removed by the engine.
	Deactivate(ctx context.Context, scope types.Scope, id string) error

	// UpsertWaypoint creates or updates the directed edge (SrcID, DstID).
	// At most one edge exists per ordered pair; a re-evaluated edge
	// replaces its weight.
	UpsertWaypoint(ctx context.Context, w *types.Waypoint) error

	// Neighbors returns the outgoing edges of srcID with weight strictly
	// above minWeight, ordered by weight descending.
	Neighbors(ctx context.Context, srcID string, minWeight float64) ([]*types.Waypoint, error)
}
