package contracts

import (
	"context"
	"time"
)

// PreparationProvider is the narrow Feature Provider view given to the orchestrator.
// ⭐ SSOT: Orchestrator는 이 인터페이스만 사용 (시계열 조회 불가)
type PreparationProvider interface {
	Refresh(ctx context.Context, asOf time.Time) (*DataSnapshot, error)
	ListInstruments(ctx context.Context) ([]string, error)
}

// FeatureProvider is the full provider view, given only to scanners.
// ⭐ SSOT: 시계열/지표 조회는 Scanner만 가능
type FeatureProvider interface {
	PreparationProvider

	// GetFeatures returns ErrNotAvailable when no data exists for the instrument/date
	GetFeatures(ctx context.Context, instrumentID string, asOf time.Time) (*FeatureVector, error)
}

// ScanOptions carries per-run scanner settings
type ScanOptions struct {
	Workers int       // 동시 평가 워커 수
	Stats   *RunStats // soft error / 카운터 누적 (nil이면 스캐너 내부용 생성)
}

// Scanner turns features into candidates for one strategy family
// ⭐ SSOT: 스캐너 인터페이스
//
// Output is ordered by RankLess. minScore filters before ranking, limit
// truncates after ranking. The returned error is fatal only; per-instrument
// problems are recorded in opts.Stats.
type Scanner interface {
	Name() Origin
	Scan(ctx context.Context, batch Batch, minScore, limit int, opts ScanOptions) ([]Candidate, error)
}
