// internal/listing/pacing/store_test.go
package pacing

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "premium-listings/internal/common/errors"
	"premium-listings/internal/common/logger"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, logger.NewNoOpLogger()), mock
}

func stateRows(tier, budgeted, remaining, consumed, override interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"tier", "budgeted_views", "views_remaining", "views_consumed", "override_views"}).
		AddRow(tier, budgeted, remaining, consumed, override)
}

func TestStore_State(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tier, budgeted_views, views_remaining, views_consumed, override_views")).
		WithArgs(int64(42)).
		WillReturnRows(stateRows(TierPremiumPlus, 5000, 3200, 1800, 0))

	state, err := store.State(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, State{
		Tier:           TierPremiumPlus,
		BudgetedViews:  5000,
		ViewsRemaining: 3200,
		ViewsConsumed:  1800,
	}, state)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_State_NullColumnsCoerceToZero(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tier, budgeted_views")).
		WithArgs(int64(7)).
		WillReturnRows(stateRows(TierPremiumPlus, nil, nil, nil, nil))

	state, err := store.State(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, State{Tier: TierPremiumPlus}, state)
}

func TestStore_State_LookupFailure(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tier, budgeted_views")).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrConnDone)

	_, err := store.State(context.Background(), 9)
	require.Error(t, err)

	var stdErr *stderrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, stderrors.ErrCodeAdvertiserLookupFailed, stdErr.Code)
}

func TestStore_WriteScore(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE advertisers SET pacing_score = $2 WHERE id = $1")).
		WithArgs(int64(42), 3450).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.WriteScore(context.Background(), 42, 3450)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WriteScore_Failure(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE advertisers")).
		WithArgs(int64(42), 3450).
		WillReturnError(sql.ErrConnDone)

	err := store.WriteScore(context.Background(), 42, 3450)
	require.Error(t, err)

	var stdErr *stderrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, stderrors.ErrCodeScoreWriteFailed, stdErr.Code)
}

func TestStore_Refresh_WritesComputedScore(t *testing.T) {
	store, mock := newTestStore(t)

	state := State{Tier: TierPremium, BudgetedViews: 1000, ViewsRemaining: 1000}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tier, budgeted_views")).
		WithArgs(int64(5)).
		WillReturnRows(stateRows(state.Tier, state.BudgetedViews, state.ViewsRemaining, 0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE advertisers SET pacing_score")).
		WithArgs(int64(5), ScorePremium).
		WillReturnResult(sqlmock.NewResult(0, 1))

	score, err := store.Refresh(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, ScorePremium, score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RefreshAll_ContinuesPastFailures(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM advertisers WHERE id > $1 ORDER BY id LIMIT $2")).
		WithArgs(int64(0), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	// Advertiser 1 fails on lookup; the run keeps going.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tier, budgeted_views")).
		WithArgs(int64(1)).
		WillReturnError(sql.ErrConnDone)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tier, budgeted_views")).
		WithArgs(int64(2)).
		WillReturnRows(stateRows(TierFree, 0, 0, 0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE advertisers SET pacing_score")).
		WithArgs(int64(2), ScoreFree).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Second page is empty, terminating the loop.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM advertisers WHERE id > $1 ORDER BY id LIMIT $2")).
		WithArgs(int64(2), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	stats, err := store.RefreshAll(context.Background(), false, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Updated)
	assert.Len(t, stats.Errors, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RefreshAll_PremiumPlusFilter(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("AND tier = $3")).
		WithArgs(int64(0), 25, TierPremiumPlus).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	stats, err := store.RefreshAll(context.Background(), true, 25)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
