package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

// Repository handles consolidated candidate persistence
// ⭐ SSOT: 후보 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new selection repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveCandidates replaces the stored candidates for a date.
// Rank is the 1-based position in the given (already ranked) list.
func (r *Repository) SaveCandidates(ctx context.Context, runID string, asOf time.Time, cands []contracts.Candidate) error {
	date := contracts.TruncateDate(asOf)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM selection.candidates WHERE as_of_date = $1", date); err != nil {
		return fmt.Errorf("failed to delete old candidates: %w", err)
	}

	query := `
		INSERT INTO selection.candidates (
			as_of_date, rank, instrument_id, run_id, origin, score,
			tags, reference_price, stop_reference, risk_percent, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	batch := &pgx.Batch{}
	for i, c := range cands {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal candidate %s: %w", c.InstrumentID(), err)
		}

		var stop, risk *float64
		if v, ok := c.StopReference(); ok {
			stop = &v
		}
		if v, ok := c.RiskPercent(); ok {
			risk = &v
		}

		batch.Queue(query,
			date, i+1, c.InstrumentID(), runID, string(c.Origin()), c.Score(),
			c.Tags(), c.ReferencePrice(), stop, risk, payload,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range cands {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert candidate: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandidates returns stored candidates for a date in rank order.
// limit <= 0 returns all.
func (r *Repository) GetCandidates(ctx context.Context, asOf time.Time, limit int) ([]contracts.Candidate, error) {
	query := `
		SELECT payload
		FROM selection.candidates
		WHERE as_of_date = $1
		ORDER BY rank ASC
	`
	args := []interface{}{contracts.TruncateDate(asOf)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	results := make([]contracts.Candidate, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var c contracts.Candidate
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal candidate: %w", err)
		}
		results = append(results, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// ErrNoCandidates is returned when nothing has been stored yet
var ErrNoCandidates = errors.New("no stored candidates")

// LatestDate returns the most recent date with stored candidates
func (r *Repository) LatestDate(ctx context.Context) (time.Time, error) {
	var date *time.Time
	err := r.pool.QueryRow(ctx, "SELECT MAX(as_of_date) FROM selection.candidates").Scan(&date)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest candidate date: %w", err)
	}
	if date == nil {
		return time.Time{}, ErrNoCandidates
	}
	return contracts.TruncateDate(*date), nil
}
