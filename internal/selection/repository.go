package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/quantmon/internal/contracts"
)

// Repository handles trade sheet persistence in Postgres
// ⭐ SSOT: 트레이드 시트 DB 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new selection repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveTradeSheet replaces the sheet stored for the entry date
func (r *Repository) SaveTradeSheet(ctx context.Context, sheet *contracts.TradeSheet) error {
	candidates, err := json.Marshal(sheet.Candidates)
	if err != nil {
		return fmt.Errorf("failed to marshal candidates: %w", err)
	}
	skipped, err := json.Marshal(sheet.Skipped)
	if err != nil {
		return fmt.Errorf("failed to marshal skipped: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 같은 진입일 재실행은 기존 시트를 교체 (trade_rows 는 cascade 삭제)
	if _, err := tx.Exec(ctx, "DELETE FROM selection.trade_sheets WHERE entry_date = $1", sheet.EntryDate); err != nil {
		return fmt.Errorf("failed to delete old sheet: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO selection.trade_sheets (
			entry_date, decision_date, cluster_id, config_hash, candidates, skipped
		) VALUES ($1, $2, $3, $4, $5, $6)
	`, sheet.EntryDate, sheet.DecisionDate, sheet.ClusterID, sheet.ConfigHash, candidates, skipped)
	if err != nil {
		return fmt.Errorf("failed to insert trade sheet: %w", err)
	}

	query := `
		INSERT INTO selection.trade_rows (
			entry_date, rank, symbol, score, weight, cluster_id
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, row := range sheet.Rows {
		if _, err := tx.Exec(ctx, query, sheet.EntryDate, i+1, row.Symbol, row.Score, row.Weight, row.ClusterID); err != nil {
			return fmt.Errorf("failed to insert trade row %s: %w", row.Symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTradeSheet loads the sheet for an entry date
func (r *Repository) GetTradeSheet(ctx context.Context, entry time.Time) (*contracts.TradeSheet, error) {
	return r.loadSheet(ctx, `
		SELECT entry_date, decision_date, cluster_id, config_hash, candidates, skipped
		FROM selection.trade_sheets
		WHERE entry_date = $1
	`, contracts.Day(entry))
}

// LatestTradeSheet loads the sheet with the greatest entry date
func (r *Repository) LatestTradeSheet(ctx context.Context) (*contracts.TradeSheet, error) {
	return r.loadSheet(ctx, `
		SELECT entry_date, decision_date, cluster_id, config_hash, candidates, skipped
		FROM selection.trade_sheets
		ORDER BY entry_date DESC
		LIMIT 1
	`)
}

func (r *Repository) loadSheet(ctx context.Context, query string, args ...interface{}) (*contracts.TradeSheet, error) {
	var (
		sheet                 contracts.TradeSheet
		candidates, skippedJS []byte
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&sheet.EntryDate, &sheet.DecisionDate, &sheet.ClusterID, &sheet.ConfigHash, &candidates, &skippedJS,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade sheet: %w", err)
	}

	if err := json.Unmarshal(candidates, &sheet.Candidates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal candidates: %w", err)
	}
	if err := json.Unmarshal(skippedJS, &sheet.Skipped); err != nil {
		return nil, fmt.Errorf("failed to unmarshal skipped: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT symbol, score, weight, cluster_id
		FROM selection.trade_rows
		WHERE entry_date = $1
		ORDER BY rank ASC
	`, sheet.EntryDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		row := contracts.TradeRow{EntryDate: sheet.EntryDate}
		if err := rows.Scan(&row.Symbol, &row.Score, &row.Weight, &row.ClusterID); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &sheet, nil
}
