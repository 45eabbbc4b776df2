package store

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shreyasgurav/UniMemory/types"
)

func setupGormStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	s, err := NewGormStore(db, DefaultGormConfig(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func seedMemory(t *testing.T, s CandidateStore, id string, scope types.Scope, salience float64, embedding []float64) *types.Memory {
	t.Helper()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	m := &types.Memory{
		ID:          id,
		Content:     "content " + id,
		Fingerprint: "00ff00ff00ff00ff",
		Sector:      types.SectorSemantic,
		Salience:    salience,
		DecayRate:   0.02,
		OwnerID:     scope.OwnerID,
		UserID:      scope.UserID,
		Embedding:   embedding,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastSeenAt:  now,
		IsActive:    true,
	}
	require.NoError(t, s.Insert(context.Background(), m))
	return m
}

func TestGormStore_InsertAndGetByIDs(t *testing.T) {
	s := setupGormStore(t)
	scope := types.Scope{OwnerID: "owner-1", UserID: "user-1"}
	ctx := context.Background()

	seedMemory(t, s, "m1", scope, 0.5, []float64{1, 0})
	seedMemory(t, s, "m2", scope, 0.6, []float64{0, 1})

	got, err := s.GetByIDs(ctx, scope, []string{"m1", "m2", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []float64{1, 0}, got[0].Embedding)
}

func TestGormStore_ScopeIsolation(t *testing.T) {
	s := setupGormStore(t)
	ctx := context.Background()
	scopeA := types.Scope{OwnerID: "owner-a", UserID: "user-1"}
	scopeB := types.Scope{OwnerID: "owner-b", UserID: "user-1"}

	seedMemory(t, s, "a1", scopeA, 0.5, []float64{1, 0})
	seedMemory(t, s, "b1", scopeB, 0.5, []float64{1, 0})

	got, err := s.NearestByVector(ctx, scopeA, []float64{1, 0}, QueryFilters{}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)

	// Same owner, different end-user: strict reads must not cross.
	scopeA2 := types.Scope{OwnerID: "owner-a", UserID: "user-2"}
	top, err := s.TopBySalience(ctx, scopeA2, "", 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	// Empty UserID on the search path widens to the whole tenant.
	wide, err := s.NearestByVector(ctx, types.Scope{OwnerID: "owner-a"}, []float64{1, 0}, QueryFilters{}, 10)
	require.NoError(t, err)
	assert.Len(t, wide, 1)
}

func TestGormStore_NearestByVectorOrdering(t *testing.T) {
	s := setupGormStore(t)
	ctx := context.Background()
	scope := types.Scope{OwnerID: "o", UserID: "u"}

	seedMemory(t, s, "far", scope, 0.5, []float64{0, 1})
	seedMemory(t, s, "near", scope, 0.5, []float64{1, 0.01})
	seedMemory(t, s, "exact", scope, 0.5, []float64{1, 0})

	got, err := s.NearestByVector(ctx, scope, []float64{1, 0}, QueryFilters{}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "exact", got[0].ID)
	assert.Equal(t, "near", got[1].ID)
}

func TestGormStore_NearestByVectorFilters(t *testing.T) {
	s := setupGormStore(t)
	ctx := context.Background()
	scope := types.Scope{OwnerID: "o", UserID: "u"}

	seedMemory(t, s, "low", scope, 0.1, []float64{1, 0})

	got, err := s.NearestByVector(ctx, scope, []float64{1, 0}, QueryFilters{MinSalience: 0.3}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.NearestByVector(ctx, scope, []float64{1, 0}, QueryFilters{Sector: types.SectorEpisodic}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGormStore_TopBySalienceExcludes(t *testing.T) {
	s := setupGormStore(t)
	ctx := context.Background()
	scope := types.Scope{OwnerID: "o", UserID: "u"}

	seedMemory(t, s, "m1", scope, 0.9, []float64{1, 0})
	seedMemory(t, s, "m2", scope, 0.4, []float64{0, 1})
	seedMemory(t, s, "m3", scope, 0.7, []float64{1, 1})

	got, err := s.TopBySalience(ctx, scope, "m1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m3", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)
}

func TestGormStore_ApplyBoostClamps(t *testing.T) {
	s := setupGormStore(t)
	ctx := context.Background()
	scope := types.Scope{OwnerID: "o", UserID: "u"}
	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	seedMemory(t, s, "m1", scope, 0.95, []float64{1, 0})

	require.NoError(t, s.ApplyBoost(ctx, "m1", 0.15, now))
	got, err := s.GetByIDs(ctx, scope, []string{"m1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Salience)

	err = s.ApplyBoost(ctx, "missing", 0.1, now)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

func TestGormStore_Deactivate(t *testing.T) {
	s := setupGormStore(t)
	ctx := context.Background()
	scope := types.Scope{OwnerID: "o", UserID: "u"}

	seedMemory(t, s, "m1", scope, 0.5, []float64{1, 0})
	require.NoError(t, s.Deactivate(ctx, scope, "m1"))

	got, err := s.GetByIDs(ctx, scope, []string{"m1"})
	require.NoError(t, err)
	assert.Empty(t, got, "soft-deleted memories disappear from reads")

	err = s.Deactivate(ctx, types.Scope{OwnerID: "other"}, "m1")
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err), "deactivation is scope-checked")
}

func TestGormStore_UpsertWaypoint(t *testing.T) {
	s := setupGormStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	w1 := &types.Waypoint{SrcID: "a", DstID: "b", Weight: 0.6, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.UpsertWaypoint(ctx, w1))

	// Second upsert for the same pair replaces the weight, never adds a row.
	w2 := &types.Waypoint{SrcID: "a", DstID: "b", Weight: 0.9, CreatedAt: now, UpdatedAt: now.Add(time.Hour)}
	require.NoError(t, s.UpsertWaypoint(ctx, w2))

	edges, err := s.Neighbors(ctx, "a", 0.1)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 0.9, edges[0].Weight)
	assert.Equal(t, "b", edges[0].DstID)
}

func TestGormStore_NeighborsFilterAndOrder(t *testing.T) {
	s := setupGormStore(t)
	ctx := context.Background()
	now := time.Now()

	for dst, weight := range map[string]float64{"b": 0.5, "c": 0.9, "d": 0.05} {
		w := &types.Waypoint{SrcID: "a", DstID: dst, Weight: weight, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.UpsertWaypoint(ctx, w))
	}

	edges, err := s.Neighbors(ctx, "a", 0.1)
	require.NoError(t, err)
	require.Len(t, edges, 2, "weak edges are filtered out")
	assert.Equal(t, "c", edges[0].DstID)
	assert.Equal(t, "b", edges[1].DstID)
}
