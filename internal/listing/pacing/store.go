// internal/listing/pacing/store.go
package pacing

import (
	"context"
	"database/sql"
	"fmt"

	stderrors "premium-listings/internal/common/errors"
	"premium-listings/internal/common/logger"
	"premium-listings/internal/common/metrics"
)

// Store reads advertiser budget state and writes back the single derived
// pacing-score column. Storing the score lets the ranking query sort on a
// precomputed field instead of recomputing per query.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

// RefreshStats summarizes a batch recalculation run.
type RefreshStats struct {
	Total   int      `json:"total"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors,omitempty"`
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "pacing-store"}),
	}
}

// State loads the budget snapshot for one advertiser. NULL columns are
// coerced to zero; they represent a never-configured budget, not an error.
func (s *Store) State(ctx context.Context, advertiserID int64) (State, error) {
	const q = `
		SELECT tier, budgeted_views, views_remaining, views_consumed, override_views
		FROM advertisers
		WHERE id = $1`

	var tier, budgeted, remaining, consumed, override sql.NullInt64
	err := s.db.QueryRowContext(ctx, q, advertiserID).
		Scan(&tier, &budgeted, &remaining, &consumed, &override)
	if err != nil {
		return State{}, stderrors.NewAdvertiserLookupFailedError(advertiserID, err)
	}

	return State{
		Tier:           nullInt(tier),
		BudgetedViews:  nullInt(budgeted),
		ViewsRemaining: nullInt(remaining),
		ViewsConsumed:  nullInt(consumed),
		OverrideViews:  nullInt(override),
	}, nil
}

// WriteScore persists the derived score. This is the only advertiser column
// the engine ever writes.
func (s *Store) WriteScore(ctx context.Context, advertiserID int64, score int) error {
	const q = `UPDATE advertisers SET pacing_score = $2 WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, q, advertiserID, score); err != nil {
		metrics.PacingScoreWrites.WithLabelValues("error").Inc()
		return stderrors.NewScoreWriteFailedError(advertiserID, err)
	}

	metrics.PacingScoreWrites.WithLabelValues("ok").Inc()
	return nil
}

// Refresh recomputes and stores the score for one advertiser. Free and
// Premium get their static scores written too, so the sort field is always
// globally comparable.
func (s *Store) Refresh(ctx context.Context, advertiserID int64) (int, error) {
	state, err := s.State(ctx, advertiserID)
	if err != nil {
		return 0, err
	}

	score := ComputeScore(state)
	if err := s.WriteScore(ctx, advertiserID, score); err != nil {
		return 0, err
	}

	s.logger.Debug("pacing score refreshed", map[string]interface{}{
		"advertiserId": advertiserID,
		"score":        score,
	})
	return score, nil
}

// RefreshAll recomputes scores for every advertiser, or just Premium+ ones
// when premiumPlusOnly is set. Rows are processed in id order in batches.
func (s *Store) RefreshAll(ctx context.Context, premiumPlusOnly bool, batchSize int) (RefreshStats, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	stats := RefreshStats{}
	lastID := int64(0)

	for {
		ids, err := s.listIDs(ctx, premiumPlusOnly, lastID, batchSize)
		if err != nil {
			return stats, err
		}
		if len(ids) == 0 {
			return stats, nil
		}

		for _, id := range ids {
			stats.Total++
			if _, err := s.Refresh(ctx, id); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("advertiser %d: %v", id, err))
				continue
			}
			stats.Updated++
		}

		lastID = ids[len(ids)-1]
	}
}

func (s *Store) listIDs(ctx context.Context, premiumPlusOnly bool, afterID int64, limit int) ([]int64, error) {
	q := `SELECT id FROM advertisers WHERE id > $1 ORDER BY id LIMIT $2`
	args := []interface{}{afterID, limit}
	if premiumPlusOnly {
		q = `SELECT id FROM advertisers WHERE id > $1 AND tier = $3 ORDER BY id LIMIT $2`
		args = append(args, TierPremiumPlus)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, stderrors.NewAdvertiserLookupFailedError(afterID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, stderrors.NewAdvertiserLookupFailedError(afterID, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullInt(v sql.NullInt64) int {
	if !v.Valid {
		return 0
	}
	return int(v.Int64)
}
