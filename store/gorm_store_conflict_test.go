package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shreyasgurav/UniMemory/types"
)

var errDuplicateKey = errors.New(`ERROR: duplicate key value violates unique constraint "idx_waypoints_src_dst" (SQLSTATE 23505)`)

func setupMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	return &GormStore{
		db:     db,
		config: DefaultGormConfig(),
		logger: zap.NewNop(),
	}, mock
}

func TestGormStore_UpsertWaypointRetriesLostRace(t *testing.T) {
	s, mock := setupMockStore(t)
	now := time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)

	// The upsert itself can still lose a race on engines where ON CONFLICT
	// does not cover the insert; the fallback updates the existing row.
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "waypoints"`)).
		WillReturnError(errDuplicateKey)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "waypoints"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := &types.Waypoint{ID: "w1", SrcID: "a", DstID: "b", Weight: 0.7, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.UpsertWaypoint(context.Background(), w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_UpsertWaypointConflictSurfaced(t *testing.T) {
	s, mock := setupMockStore(t)
	now := time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)

	// Both the insert and the fallback update fail: the row vanished
	// between attempts. The caller sees a retryable conflict.
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "waypoints"`)).
		WillReturnError(errDuplicateKey)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "waypoints"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := &types.Waypoint{ID: "w1", SrcID: "a", DstID: "b", Weight: 0.7, CreatedAt: now, UpdatedAt: now}
	err := s.UpsertWaypoint(context.Background(), w)
	assert.Equal(t, types.ErrPersistenceConflict, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_NonConflictErrorIsStoreUnavailable(t *testing.T) {
	s, mock := setupMockStore(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "waypoints"`)).
		WillReturnError(errors.New("connection refused"))

	w := &types.Waypoint{ID: "w1", SrcID: "a", DstID: "b", Weight: 0.7, CreatedAt: now, UpdatedAt: now}
	err := s.UpsertWaypoint(context.Background(), w)
	assert.Equal(t, types.ErrStoreUnavailable, types.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
