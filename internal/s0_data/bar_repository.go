package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/quantmon/internal/contracts"
)

// BarRepository implements contracts.BarStore over data.daily_bars
// ⭐ SSOT: 일봉 DB 저장소는 여기서만
type BarRepository struct {
	pool *pgxpool.Pool
}

// NewBarRepository creates a new bar repository
func NewBarRepository(pool *pgxpool.Pool) *BarRepository {
	return &BarRepository{pool: pool}
}

// batchSize bounds one pgx batch round-trip
const batchSize = 500

// LoadBars returns every stored bar ordered by (symbol, date)
func (r *BarRepository) LoadBars(ctx context.Context) ([]contracts.Bar, error) {
	query := `
		SELECT symbol, trade_date, open_price, high_price, low_price, last_price,
		       close_price, avg_price, ttl_trd_qnty, turnover_lacs, no_of_trades,
		       deliv_qty, deliv_per
		FROM data.daily_bars
		ORDER BY symbol, trade_date
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query daily bars: %w", err)
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var (
			b    contracts.Bar
			nums [11]*float64
		)
		if err := rows.Scan(
			&b.Symbol, &b.Date,
			&nums[0], &nums[1], &nums[2], &nums[3], &nums[4], &nums[5],
			&nums[6], &nums[7], &nums[8], &nums[9], &nums[10],
		); err != nil {
			return nil, fmt.Errorf("scan daily bar: %w", err)
		}

		b.Date = contracts.Day(b.Date)
		b.Open, b.High, b.Low, b.Last = orMissing(nums[0]), orMissing(nums[1]), orMissing(nums[2]), orMissing(nums[3])
		b.Close, b.AvgPrice = orMissing(nums[4]), orMissing(nums[5])
		b.TradedQty, b.Turnover, b.TradeCount = orMissing(nums[6]), orMissing(nums[7]), orMissing(nums[8])
		b.DeliveryQty, b.DeliveryPct = orMissing(nums[9]), orMissing(nums[10])
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return bars, nil
}

// SaveBatch upserts bars keyed by (symbol, trade_date); missing values become NULL
func (r *BarRepository) SaveBatch(ctx context.Context, bars []contracts.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.daily_bars (
			symbol, trade_date, open_price, high_price, low_price, last_price,
			close_price, avg_price, ttl_trd_qnty, turnover_lacs, no_of_trades,
			deliv_qty, deliv_per
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			last_price = EXCLUDED.last_price,
			close_price = EXCLUDED.close_price,
			avg_price = EXCLUDED.avg_price,
			ttl_trd_qnty = EXCLUDED.ttl_trd_qnty,
			turnover_lacs = EXCLUDED.turnover_lacs,
			no_of_trades = EXCLUDED.no_of_trades,
			deliv_qty = EXCLUDED.deliv_qty,
			deliv_per = EXCLUDED.deliv_per
	`

	for start := 0; start < len(bars); start += batchSize {
		end := min(start+batchSize, len(bars))

		batch := &pgx.Batch{}
		for _, b := range bars[start:end] {
			batch.Queue(query,
				b.Symbol, contracts.Day(b.Date),
				nullable(b.Open), nullable(b.High), nullable(b.Low), nullable(b.Last),
				nullable(b.Close), nullable(b.AvgPrice), nullable(b.TradedQty),
				nullable(b.Turnover), nullable(b.TradeCount),
				nullable(b.DeliveryQty), nullable(b.DeliveryPct),
			)
		}

		if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert bars (batch %d): %w", start/batchSize, err)
		}
	}

	return nil
}

// DateRange returns the first and last stored trade date
func (r *BarRepository) DateRange(ctx context.Context) (time.Time, time.Time, error) {
	var first, last *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MIN(trade_date), MAX(trade_date) FROM data.daily_bars`,
	).Scan(&first, &last)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("query bar date range: %w", err)
	}
	if first == nil || last == nil {
		return time.Time{}, time.Time{}, contracts.ErrNotFound
	}
	return contracts.Day(*first), contracts.Day(*last), nil
}

func nullable(v float64) *float64 {
	if contracts.IsMissing(v) {
		return nil
	}
	return &v
}

func orMissing(p *float64) float64 {
	if p == nil {
		return contracts.Missing
	}
	return *p
}
