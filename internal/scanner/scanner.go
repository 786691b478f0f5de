// Package scanner turns feature vectors into scored candidates.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

// DefaultWorkers is used when ScanOptions.Workers is not set
const DefaultWorkers = 4

// evaluation is one instrument's scoring outcome
type evaluation struct {
	params contracts.CandidateParams
	vetoed bool // veto 후보는 min_score와 무관하게 출력 (감사용)
}

// evaluateFunc scores a validated feature vector.
// ok=false means the instrument is not a candidate (filtered out).
type evaluateFunc func(fv *contracts.FeatureVector) (ev evaluation, ok bool)

// evalResult is what a worker reports for one instrument
type evalResult struct {
	instrumentID string
	candidate    *contracts.Candidate
	vetoed       bool
	softErr      *contracts.PipelineError
	fatal        error
	canceled     bool
	cause        error // 취소 원인 (ctx 에러 또는 limiter의 deadline 예측)
}

// pool is the shared worker pool behind every scanner
type pool struct {
	origin   contracts.Origin
	provider contracts.FeatureProvider
	logger   *logger.Logger
}

// run evaluates the batch with a bounded worker pool.
//
// Per-instrument problems become soft errors in opts.Stats. When ctx expires,
// finished results are kept and a TimeoutExceeded soft error is recorded.
// Only invariant violations are returned as errors.
func (p *pool) run(ctx context.Context, batch contracts.Batch, minScore, limit int, opts contracts.ScanOptions, eval evaluateFunc) ([]contracts.Candidate, error) {
	if minScore < 0 || minScore > 100 {
		return nil, contracts.ConfigurationError(string(p.origin), fmt.Errorf("min_score must be 0-100, got %d", minScore))
	}
	if limit < 0 {
		return nil, contracts.ConfigurationError(string(p.origin), fmt.Errorf("limit must be >= 0, got %d", limit))
	}

	stats := opts.Stats
	if stats == nil {
		stats = contracts.NewRunStats()
	}
	if batch.IsEmpty() {
		return []contracts.Candidate{}, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ids := uniqueIDs(batch.Instruments)
	if workers > len(ids) {
		workers = len(ids)
	}

	p.logger.WithFields(map[string]interface{}{
		"as_of":       batch.AsOf.Format(contracts.DateLayout),
		"instruments": len(ids),
		"workers":     workers,
		"min_score":   minScore,
		"limit":       limit,
	}).Info("Starting scan")

	// fatal 발생 시 나머지 워커 중단용
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan evalResult, len(ids))
	idCh := make(chan string, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(runCtx, workerID, batch, idCh, resultCh, eval)
		}(i)
	}

	for _, id := range ids {
		idCh <- id
	}
	close(idCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Collect results (모든 워커 종료 후에만 출력 확정)
	candidates := make([]contracts.Candidate, 0)
	evaluated, skipped := 0, 0
	var fatal, budgetErr error
	for r := range resultCh {
		switch {
		case r.fatal != nil:
			if fatal == nil {
				fatal = r.fatal
				cancel()
			}
		case r.canceled:
			// 예산 소진: 남은 워커도 중단
			if budgetErr == nil && r.cause != nil {
				budgetErr = r.cause
				cancel()
			}
			continue
		case r.softErr != nil:
			evaluated++
			skipped++
			stats.RecordError(r.softErr)
		default:
			evaluated++
			if r.candidate == nil {
				continue
			}
			if r.vetoed || r.candidate.Score() >= minScore {
				candidates = append(candidates, *r.candidate)
			}
		}
	}
	stats.AddScanned(evaluated)

	if fatal != nil {
		p.logger.WithError(fatal).Error("Scan aborted")
		return nil, fatal
	}

	if evaluated < len(ids) {
		cause := ctx.Err()
		if cause == nil {
			cause = budgetErr
		}
		if cause == nil {
			cause = context.DeadlineExceeded
		}
		stats.RecordError(contracts.TimeoutExceeded(string(p.origin),
			fmt.Errorf("scan budget exhausted: %d of %d instruments evaluated: %w", evaluated, len(ids), cause)))
	}

	contracts.SortCandidates(candidates)
	out := contracts.Truncate(candidates, limit)
	stats.AddProduced(p.origin, len(out))

	p.logger.WithFields(map[string]interface{}{
		"evaluated":  evaluated,
		"skipped":    skipped,
		"matched":    len(candidates),
		"candidates": len(out),
		"partial":    evaluated < len(ids),
	}).Info("Scan completed")

	return out, nil
}

// worker evaluates instruments until the channel drains or ctx is done
func (p *pool) worker(ctx context.Context, workerID int, batch contracts.Batch, idCh <-chan string, resultCh chan<- evalResult, eval evaluateFunc) {
	for id := range idCh {
		select {
		case <-ctx.Done():
			resultCh <- evalResult{instrumentID: id, canceled: true}
			continue
		default:
		}
		resultCh <- p.evaluateOne(ctx, workerID, batch, id, eval)
	}
}

func (p *pool) evaluateOne(ctx context.Context, workerID int, batch contracts.Batch, id string, eval evaluateFunc) evalResult {
	fv, err := p.provider.GetFeatures(ctx, id, batch.AsOf)
	if err != nil {
		if ctx.Err() != nil || isBudgetError(err) {
			// 진행 중 작업 취소 (시간 예산 초과)
			return evalResult{instrumentID: id, canceled: true, cause: err}
		}
		p.logger.WithError(err).WithFields(map[string]interface{}{
			"worker":        workerID,
			"instrument_id": id,
		}).Debug("Features unavailable")
		return evalResult{instrumentID: id, softErr: contracts.DataUnavailable(string(p.origin), id, err)}
	}

	if fv.InstrumentID == "" {
		fv.InstrumentID = id
	}
	if err := fv.Validate(); err != nil {
		p.logger.WithError(err).WithInstrument(id).Warn("Malformed features skipped")
		return evalResult{instrumentID: id, softErr: contracts.DataUnavailable(string(p.origin), id, err)}
	}

	ev, ok := eval(fv)
	if !ok {
		return evalResult{instrumentID: id}
	}

	ev.params.InstrumentID = id
	ev.params.AsOf = batch.AsOf
	ev.params.Origin = p.origin
	c, err := contracts.NewCandidate(ev.params)
	if err != nil {
		// 점수 범위 위반 등은 프로그래밍 결함 → 실행 중단
		return evalResult{instrumentID: id, fatal: err}
	}
	return evalResult{instrumentID: id, candidate: &c, vetoed: ev.vetoed}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func floatPtr(v float64) *float64 {
	return &v
}

// isBudgetError reports whether err means the scan ran out of time.
// A rate limiter fails fast with DeadlineExceeded before ctx itself expires.
func isBudgetError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
