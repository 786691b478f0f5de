package features

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

// BarRepository reads and writes daily bars in PostgreSQL
// ⭐ SSOT: 일봉 저장소는 여기서만
type BarRepository struct {
	pool *pgxpool.Pool
}

// NewBarRepository creates a new bar repository
func NewBarRepository(pool *pgxpool.Pool) *BarRepository {
	return &BarRepository{pool: pool}
}

const barColumns = `instrument_id, trade_date, open_price, high_price, low_price, close_price, volume`

// ListInstruments returns active instrument ids in ascending order
func (r *BarRepository) ListInstruments(ctx context.Context) ([]string, error) {
	query := `
		SELECT instrument_id
		FROM data.instruments
		WHERE active = TRUE
		ORDER BY instrument_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LatestBars returns up to n bars ending on or before asOf, oldest first
func (r *BarRepository) LatestBars(ctx context.Context, instrumentID string, asOf time.Time, n int) ([]contracts.Bar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM data.daily_bars
		WHERE instrument_id = $1 AND trade_date <= $2
		ORDER BY trade_date DESC
		LIMIT $3
	`

	bars, err := r.queryBars(ctx, query, instrumentID, contracts.TruncateDate(asOf), n)
	if err != nil {
		return nil, err
	}
	// DESC 조회 → 오름차순으로 뒤집기
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// BarsOn returns every bar of one trading date
func (r *BarRepository) BarsOn(ctx context.Context, date time.Time) ([]contracts.Bar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM data.daily_bars
		WHERE trade_date = $1
		ORDER BY instrument_id
	`
	return r.queryBars(ctx, query, contracts.TruncateDate(date))
}

// GetByInstrumentAndDateRange retrieves bars for an instrument within a date range
func (r *BarRepository) GetByInstrumentAndDateRange(ctx context.Context, instrumentID string, from, to time.Time) ([]contracts.Bar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM data.daily_bars
		WHERE instrument_id = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`
	return r.queryBars(ctx, query, instrumentID, contracts.TruncateDate(from), contracts.TruncateDate(to))
}

// ForwardBars 이벤트 이후 N거래일 일봉 조회
func (r *BarRepository) ForwardBars(ctx context.Context, instrumentID string, eventDate time.Time, days int) ([]contracts.Bar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM data.daily_bars
		WHERE instrument_id = $1 AND trade_date > $2
		ORDER BY trade_date ASC
		LIMIT $3
	`
	return r.queryBars(ctx, query, instrumentID, contracts.TruncateDate(eventDate), days)
}

// SaveInstrument upserts an instrument row
func (r *BarRepository) SaveInstrument(ctx context.Context, instrumentID, name string, active bool) error {
	query := `
		INSERT INTO data.instruments (instrument_id, name, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (instrument_id) DO UPDATE SET
			name = EXCLUDED.name,
			active = EXCLUDED.active
	`

	_, err := r.pool.Exec(ctx, query, instrumentID, name, active)
	return err
}

// SaveBatch upserts bars in one round trip
func (r *BarRepository) SaveBatch(ctx context.Context, bars []contracts.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.daily_bars (` + barColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instrument_id, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query, b.InstrumentID, contracts.TruncateDate(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range bars {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save bar %s/%s: %w", bars[i].InstrumentID, bars[i].Date.Format(contracts.DateLayout), err)
		}
	}
	return nil
}

func (r *BarRepository) queryBars(ctx context.Context, query string, args ...interface{}) ([]contracts.Bar, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bars := make([]contracts.Bar, 0)
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(&b.InstrumentID, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
