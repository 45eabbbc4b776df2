package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shreyasgurav/UniMemory/internal/vectormath"
	"github.com/shreyasgurav/UniMemory/types"
)

// MemoryStore is an in-memory CandidateStore. It backs unit tests and
// embedded single-process deployments; semantics match the GORM store.
type MemoryStore struct {
	mu        sync.RWMutex
	memories  map[string]*types.Memory
	order     []string                   // insertion order, for deterministic scans
	waypoints map[[2]string]*types.Waypoint
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		memories:  make(map[string]*types.Memory),
		waypoints: make(map[[2]string]*types.Waypoint),
	}
}

// Insert persists a new memory.
func (s *MemoryStore) Insert(ctx context.Context, m *types.Memory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	cp := cloneMemory(m)
	s.memories[cp.ID] = cp
	s.order = append(s.order, cp.ID)
	return nil
}

// GetByIDs returns the active in-scope memories with the given IDs.
func (s *MemoryStore) GetByIDs(ctx context.Context, scope types.Scope, ids []string) ([]*types.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Memory, 0, len(ids))
	for _, id := range ids {
		m, ok := s.memories[id]
		if !ok || !m.IsActive || !inScope(m, scope, false) {
			continue
		}
		out = append(out, cloneMemory(m))
	}
	return out, nil
}

// NearestByVector returns candidates ordered by cosine distance ascending.
func (s *MemoryStore) NearestByVector(ctx context.Context, scope types.Scope, embedding []float64, f QueryFilters, limit int) ([]*types.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		m   *types.Memory
		sim float64
	}
	candidates := make([]scored, 0)
	for _, id := range s.order {
		m := s.memories[id]
		if !m.IsActive || len(m.Embedding) == 0 || !inScope(m, scope, false) {
			continue
		}
		if f.Sector != "" && m.Sector != f.Sector {
			continue
		}
		if f.MinSalience > 0 && m.Salience < f.MinSalience {
			continue
		}
		candidates = append(candidates, scored{m: m, sim: vectormath.Cosine(embedding, m.Embedding)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].sim > candidates[j].sim
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]*types.Memory, len(candidates))
	for i, c := range candidates {
		out[i] = cloneMemory(c.m)
	}
	return out, nil
}

// TopBySalience returns the most important memories of the scope first.
func (s *MemoryStore) TopBySalience(ctx context.Context, scope types.Scope, excludeID string, limit int) ([]*types.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Memory, 0)
	for _, id := range s.order {
		m := s.memories[id]
		if !m.IsActive || len(m.Embedding) == 0 || m.ID == excludeID || !inScope(m, scope, true) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Salience > out[j].Salience
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	cloned := make([]*types.Memory, len(out))
	for i, m := range out {
		cloned[i] = cloneMemory(m)
	}
	return cloned, nil
}

// Fingerprinted returns fingerprinted memories ordered by salience descending.
func (s *MemoryStore) Fingerprinted(ctx context.Context, scope types.Scope, limit int) ([]*types.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Memory, 0)
	for _, id := range s.order {
		m := s.memories[id]
		if !m.IsActive || m.Fingerprint == "" || !inScope(m, scope, true) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Salience > out[j].Salience
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	cloned := make([]*types.Memory, len(out))
	for i, m := range out {
		cloned[i] = cloneMemory(m)
	}
	return cloned, nil
}

// ApplyBoost adds a clamped salience boost and stamps LastSeenAt.
func (s *MemoryStore) ApplyBoost(ctx context.Context, id string, boost float64, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok {
		return types.NewError(types.ErrNotFound, "memory not found: "+id)
	}
	m.Salience = types.ClampSalience(m.Salience + boost)
	m.LastSeenAt = now
	m.UpdatedAt = now
	return nil
}

// Deactivate soft-deletes a memory in the scope.
func (s *MemoryStore) Deactivate(ctx context.Context, scope types.Scope, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok || !inScope(m, scope, false) {
		return types.NewError(types.ErrNotFound, "memory not found: "+id)
	}
	m.IsActive = false
	return nil
}

// UpsertWaypoint creates or replaces the edge for the ordered (src, dst) pair.
func (s *MemoryStore) UpsertWaypoint(ctx context.Context, w *types.Waypoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{w.SrcID, w.DstID}
	if existing, ok := s.waypoints[key]; ok {
		existing.Weight = w.Weight
		existing.UpdatedAt = w.UpdatedAt
		w.ID = existing.ID
		return nil
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	cp := *w
	s.waypoints[key] = &cp
	return nil
}

// Neighbors returns outgoing edges above minWeight, strongest first.
func (s *MemoryStore) Neighbors(ctx context.Context, srcID string, minWeight float64) ([]*types.Waypoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Waypoint, 0)
	for _, w := range s.waypoints {
		if w.SrcID != srcID || w.Weight <= minWeight {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].DstID < out[j].DstID
	})
	return out, nil
}

// WaypointCount reports the number of stored edges. Test helper.
func (s *MemoryStore) WaypointCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.waypoints)
}

// MemoryCount reports the number of stored memories. Test helper.
func (s *MemoryStore) MemoryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.memories)
}

// inScope checks the isolation key. When strict is false an empty
// scope.UserID matches any end-user of the tenant.
func inScope(m *types.Memory, scope types.Scope, strict bool) bool {
	if m.OwnerID != scope.OwnerID {
		return false
	}
	if scope.UserID == "" && !strict {
		return true
	}
	return m.UserID == scope.UserID
}

func cloneMemory(m *types.Memory) *types.Memory {
	cp := *m
	if m.Tags != nil {
		cp.Tags = append([]string(nil), m.Tags...)
	}
	if m.Embedding != nil {
		cp.Embedding = append([]float64(nil), m.Embedding...)
	}
	return &cp
}
