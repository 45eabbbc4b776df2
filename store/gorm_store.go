package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shreyasgurav/UniMemory/internal/vectormath"
	"github.com/shreyasgurav/UniMemory/types"
)

// GormConfig configures the relational store.
type GormConfig struct {
	// ScanLimit bounds the number of rows pulled into memory for nearest-
	// neighbor ordering when the database has no native vector index.
	// A tunable constant, not an implementation accident.
	ScanLimit int `yaml:"scan_limit" json:"scan_limit"`
}

// DefaultGormConfig returns sensible defaults.
func DefaultGormConfig() GormConfig {
	return GormConfig{
		ScanLimit: 5000,
	}
}

// GormStore is a CandidateStore over a relational database via GORM.
// It works against PostgreSQL in production and the pure-Go SQLite driver
// in tests; embeddings and tags are serialized JSON columns, and nearest-
// neighbor ordering is computed in-process over a bounded scoped scan.
type GormStore struct {
	db     *gorm.DB
	config GormConfig
	logger *zap.Logger
}

// memoryRecord is the GORM mapping of types.Memory.
type memoryRecord struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Content     string    `gorm:"type:text;not null"`
	Fingerprint string    `gorm:"size:16;index"`
	Sector      string    `gorm:"size:20;index"`
	Salience    float64   `gorm:"index"`
	DecayRate   float64
	Tags        []string  `gorm:"serializer:json"`
	OwnerID     string    `gorm:"size:100;index:idx_memories_scope,priority:1"`
	UserID      string    `gorm:"size:100;index:idx_memories_scope,priority:2"`
	Embedding   []float64 `gorm:"serializer:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastSeenAt  time.Time
	IsActive    bool `gorm:"index"`
}

func (memoryRecord) TableName() string { return "memories" }

// waypointRecord is the GORM mapping of types.Waypoint. The unique index on
// (src_id, dst_id) is the natural key the upsert keys on.
type waypointRecord struct {
	ID        string  `gorm:"primaryKey;size:36"`
	SrcID     string  `gorm:"size:36;uniqueIndex:idx_waypoints_src_dst,priority:1;index"`
	DstID     string  `gorm:"size:36;uniqueIndex:idx_waypoints_src_dst,priority:2"`
	Weight    float64 `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (waypointRecord) TableName() string { return "waypoints" }

// NewGormStore wraps an open GORM connection and migrates the schema.
func NewGormStore(db *gorm.DB, config GormConfig, logger *zap.Logger) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ScanLimit <= 0 {
		config.ScanLimit = DefaultGormConfig().ScanLimit
	}

	if err := db.AutoMigrate(&memoryRecord{}, &waypointRecord{}); err != nil {
		return nil, storeErr("auto migrate", err)
	}

	return &GormStore{
		db:     db,
		config: config,
		logger: logger.With(zap.String("component", "gorm_store")),
	}, nil
}

// Insert persists a new memory.
func (s *GormStore) Insert(ctx context.Context, m *types.Memory) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	rec := toRecord(m)
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return storeErr("insert memory", err)
	}
	return nil
}

// GetByIDs returns the active in-scope memories with the given IDs.
func (s *GormStore) GetByIDs(ctx context.Context, scope types.Scope, ids []string) ([]*types.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := s.scoped(ctx, scope, false).Where("id IN ?", ids)

	var recs []memoryRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, storeErr("get by ids", err)
	}
	return fromRecords(recs), nil
}

// NearestByVector returns candidates ordered by cosine distance ascending.
// Rows are scanned up to the configured bound and ordered in-process; with a
// pgvector-backed schema this is where a native `<=>` ordering would go.
func (s *GormStore) NearestByVector(ctx context.Context, scope types.Scope, embedding []float64, f QueryFilters, limit int) ([]*types.Memory, error) {
	q := s.scoped(ctx, scope, false).
		Where("embedding IS NOT NULL").
		Order("created_at ASC").
		Limit(s.config.ScanLimit)

	if f.Sector != "" {
		q = q.Where("sector = ?", string(f.Sector))
	}
	if f.MinSalience > 0 {
		q = q.Where("salience >= ?", f.MinSalience)
	}

	var recs []memoryRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, storeErr("nearest by vector", err)
	}

	type scored struct {
		m   *types.Memory
		sim float64
	}
	candidates := make([]scored, 0, len(recs))
	for i := range recs {
		m := fromRecord(&recs[i])
		if len(m.Embedding) == 0 {
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
		out[i] = c.m
	}
	return out, nil
}

// TopBySalience returns the most important memories of the scope first.
func (s *GormStore) TopBySalience(ctx context.Context, scope types.Scope, excludeID string, limit int) ([]*types.Memory, error) {
	q := s.scoped(ctx, scope, true).
		Where("embedding IS NOT NULL").
		Order("salience DESC").
		Limit(limit)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var recs []memoryRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, storeErr("top by salience", err)
	}
	return fromRecords(recs), nil
}

// Fingerprinted returns fingerprinted memories ordered by salience descending.
func (s *GormStore) Fingerprinted(ctx context.Context, scope types.Scope, limit int) ([]*types.Memory, error) {
	q := s.scoped(ctx, scope, true).
		Where("fingerprint <> ''").
		Order("salience DESC").
		Limit(limit)

	var recs []memoryRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, storeErr("fingerprinted", err)
	}
	return fromRecords(recs), nil
}

// ApplyBoost adds a clamped salience boost and stamps LastSeenAt. The clamp
// happens on the freshly read value so no write can leave [0,1].
func (s *GormStore) ApplyBoost(ctx context.Context, id string, boost float64, now time.Time) error {
	var rec memoryRecord
	if err := s.db.WithContext(ctx).Select("id", "salience").First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NewError(types.ErrNotFound, "memory not found: "+id)
		}
		return storeErr("read for boost", err)
	}

	updates := map[string]any{
		"salience":     types.ClampSalience(rec.Salience + boost),
		"last_seen_at": now,
		"updated_at":   now,
	}
	res := s.db.WithContext(ctx).Model(&memoryRecord{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return storeErr("apply boost", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NewError(types.ErrNotFound, "memory not found: "+id)
	}
	return nil
}

// Deactivate soft-deletes a memory in the scope.
func (s *GormStore) Deactivate(ctx context.Context, scope types.Scope, id string) error {
	q := s.db.WithContext(ctx).Model(&memoryRecord{}).
		Where("id = ? AND owner_id = ?", id, scope.OwnerID)
	if scope.UserID != "" {
		q = q.Where("user_id = ?", scope.UserID)
	}
	res := q.Update("is_active", false)
	if res.Error != nil {
		return storeErr("deactivate", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NewError(types.ErrNotFound, "memory not found: "+id)
	}
	return nil
}

// UpsertWaypoint creates or replaces the edge for the ordered (src, dst)
// pair via ON CONFLICT on the natural key. If a concurrent writer still
// races the insert, the conflict is retried once as a plain update of the
// existing row, then surfaced as PERSISTENCE_CONFLICT.
func (s *GormStore) UpsertWaypoint(ctx context.Context, w *types.Waypoint) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	rec := waypointRecord{
		ID:        w.ID,
		SrcID:     w.SrcID,
		DstID:     w.DstID,
		Weight:    w.Weight,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "src_id"}, {Name: "dst_id"}},
		DoUpdates: clause.Assignments(map[string]any{"weight": rec.Weight, "updated_at": rec.UpdatedAt}),
	}).Create(&rec).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return storeErr("upsert waypoint", err)
	}

	s.logger.Debug("waypoint upsert conflict, retrying as update",
		zap.String("src_id", w.SrcID),
		zap.String("dst_id", w.DstID))

	res := s.db.WithContext(ctx).Model(&waypointRecord{}).
		Where("src_id = ? AND dst_id = ?", w.SrcID, w.DstID).
		Updates(map[string]any{"weight": rec.Weight, "updated_at": rec.UpdatedAt})
	if res.Error != nil || res.RowsAffected == 0 {
		return types.NewError(types.ErrPersistenceConflict, "waypoint upsert lost race").
			WithCause(res.Error).WithRetryable(true)
	}
	return nil
}

// Neighbors returns outgoing edges above minWeight, strongest first.
func (s *GormStore) Neighbors(ctx context.Context, srcID string, minWeight float64) ([]*types.Waypoint, error) {
	var recs []waypointRecord
	err := s.db.WithContext(ctx).
		Where("src_id = ? AND weight > ?", srcID, minWeight).
		Order("weight DESC").
		Find(&recs).Error
	if err != nil {
		return nil, storeErr("neighbors", err)
	}

	out := make([]*types.Waypoint, len(recs))
	for i, r := range recs {
		out[i] = &types.Waypoint{
			ID:        r.ID,
			SrcID:     r.SrcID,
			DstID:     r.DstID,
			Weight:    r.Weight,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return out, nil
}

// scoped applies the active flag and isolation key. Strict mode requires
// the full (owner, user) pair; otherwise an empty UserID matches the tenant.
func (s *GormStore) scoped(ctx context.Context, scope types.Scope, strict bool) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&memoryRecord{}).
		Where("is_active = ? AND owner_id = ?", true, scope.OwnerID)
	if strict || scope.UserID != "" {
		q = q.Where("user_id = ?", scope.UserID)
	}
	return q
}

func toRecord(m *types.Memory) *memoryRecord {
	return &memoryRecord{
		ID:          m.ID,
		Content:     m.Content,
		Fingerprint: m.Fingerprint,
		Sector:      string(m.Sector),
		Salience:    m.Salience,
		DecayRate:   m.DecayRate,
		Tags:        m.Tags,
		OwnerID:     m.OwnerID,
		UserID:      m.UserID,
		Embedding:   m.Embedding,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		LastSeenAt:  m.LastSeenAt,
		IsActive:    m.IsActive,
	}
}

func fromRecord(r *memoryRecord) *types.Memory {
	return &types.Memory{
		ID:          r.ID,
		Content:     r.Content,
		Fingerprint: r.Fingerprint,
		Sector:      types.Sector(r.Sector),
		Salience:    r.Salience,
		DecayRate:   r.DecayRate,
		Tags:        r.Tags,
		OwnerID:     r.OwnerID,
		UserID:      r.UserID,
		Embedding:   r.Embedding,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		LastSeenAt:  r.LastSeenAt,
		IsActive:    r.IsActive,
	}
}

func fromRecords(recs []memoryRecord) []*types.Memory {
	out := make([]*types.Memory, len(recs))
	for i := range recs {
		out[i] = fromRecord(&recs[i])
	}
	return out
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}

func storeErr(op string, err error) error {
	return types.NewError(types.ErrStoreUnavailable, op).WithCause(err).WithRetryable(true)
}
