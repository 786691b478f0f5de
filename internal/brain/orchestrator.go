// Package brain runs the screening state machine.
package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/metrics"
	"github.com/wonny/aegis/v13/screener/internal/report"
	"github.com/wonny/aegis/v13/screener/internal/selection"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

const source = "orchestrator"

// ScanPlan binds a scanner to its thresholds for a run
type ScanPlan struct {
	Scanner  contracts.Scanner
	MinScore int
	Limit    int // 0 = unlimited
}

// Orchestrator coordinates one screening run
// ⭐ SSOT: 파이프라인 조율은 여기서만
//
//	PREPARING → SCANNING → CONSOLIDATING → REPORT_BUILDING → DONE
//	(any) → FAILED
//
// The orchestrator only sees contracts.PreparationProvider; feature reads
// happen inside scanners.
type Orchestrator struct {
	provider     contracts.PreparationProvider
	plans        []ScanPlan
	consolidator *selection.Consolidator
	recorder     *metrics.Recorder // nil 허용
	logger       *logger.Logger
}

// RunConfig holds configuration for a run
type RunConfig struct {
	Date            time.Time
	RunID           string
	TaxonomyVersion string
	Workers         int           // 스캐너별 워커 수 (0 = 기본값)
	ScanBudget      time.Duration // SCANNING 단계 시간 예산
	Instruments     []string      // 비어 있으면 ListInstruments 사용
}

// RunResult holds the outcome of a run.
// Context is nil unless State is DONE.
type RunResult struct {
	RunID    string
	Date     time.Time
	State    contracts.RunState
	Stages   []contracts.StageResult
	Snapshot *contracts.DataSnapshot
	Context  *report.Context
	Error    error
	Duration time.Duration
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	provider contracts.PreparationProvider,
	plans []ScanPlan,
	consolidator *selection.Consolidator,
	recorder *metrics.Recorder,
	log *logger.Logger,
) *Orchestrator {
	p := make([]ScanPlan, len(plans))
	copy(p, plans)
	return &Orchestrator{
		provider:     provider,
		plans:        p,
		consolidator: consolidator,
		recorder:     recorder,
		logger:       log.WithComponent(source),
	}
}

// GenerateRunID returns a unique run id prefixed by the run date
func GenerateRunID(date time.Time) string {
	return fmt.Sprintf("%s-%s", date.Format("20060102"), uuid.NewString()[:8])
}

// Run executes one run. Fatal errors end in FAILED with a nil Context and
// the error returned; soft errors end up in the Context.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	startTime := time.Now()
	if cfg.RunID == "" {
		cfg.RunID = GenerateRunID(cfg.Date)
	}

	result := &RunResult{
		RunID:  cfg.RunID,
		Date:   contracts.TruncateDate(cfg.Date),
		State:  contracts.StatePreparing,
		Stages: make([]contracts.StageResult, 0, 5),
	}
	log := o.logger.WithRun(cfg.RunID, result.Date)

	log.WithFields(map[string]interface{}{
		"date":        result.Date.Format(contracts.DateLayout),
		"scanners":    len(o.plans),
		"workers":     cfg.Workers,
		"scan_budget": cfg.ScanBudget.String(),
		"taxonomy":    cfg.TaxonomyVersion,
	}).Info("Starting screening run")

	// 설정 오류는 스캔 전에 중단
	if err := o.validate(cfg); err != nil {
		return o.fail(result, startTime, time.Now(), 0, err)
	}

	stats := contracts.NewRunStats()

	// PREPARING
	stageStart := time.Now()
	batch, snapshot, err := o.prepare(ctx, cfg)
	if err != nil {
		return o.fail(result, startTime, stageStart, 0, fmt.Errorf("preparing failed: %w", err))
	}
	result.Snapshot = snapshot
	o.completeStage(result, stageStart, batch.Count(), batch.Count())

	// SCANNING
	if err := o.transition(result, contracts.StateScanning); err != nil {
		return o.fail(result, startTime, time.Now(), 0, err)
	}
	stageStart = time.Now()
	outputs, err := o.scan(ctx, cfg, batch, stats)
	if err != nil {
		return o.fail(result, startTime, stageStart, batch.Count(), fmt.Errorf("scanning failed: %w", err))
	}
	scanned := 0
	for _, out := range outputs {
		scanned += len(out)
	}
	o.completeStage(result, stageStart, batch.Count(), scanned)

	// CONSOLIDATING
	if err := o.transition(result, contracts.StateConsolidating); err != nil {
		return o.fail(result, startTime, time.Now(), 0, err)
	}
	stageStart = time.Now()
	consolidated, err := o.consolidator.Consolidate(outputs...)
	if err != nil {
		return o.fail(result, startTime, stageStart, scanned, fmt.Errorf("consolidating failed: %w", err))
	}
	o.completeStage(result, stageStart, scanned, len(consolidated))

	// REPORT_BUILDING
	if err := o.transition(result, contracts.StateReportBuilding); err != nil {
		return o.fail(result, startTime, time.Now(), 0, err)
	}
	stageStart = time.Now()
	scannerOutputs := make([]report.ScannerOutput, len(o.plans))
	for i, plan := range o.plans {
		scannerOutputs[i] = report.ScannerOutput{
			Origin:     plan.Scanner.Name(),
			MinScore:   plan.MinScore,
			Limit:      plan.Limit,
			Candidates: outputs[i],
		}
	}
	snap := stats.Snapshot()
	rc := report.Build(report.Input{
		RunID:           cfg.RunID,
		AsOf:            batch.AsOf,
		GeneratedAt:     time.Now(),
		TaxonomyVersion: cfg.TaxonomyVersion,
		Scanners:        scannerOutputs,
		Candidates:      consolidated,
		Stats:           snap,
		Stages:          result.Stages,
	})
	o.completeStage(result, stageStart, len(consolidated), len(consolidated))

	// DONE
	if err := o.transition(result, contracts.StateDone); err != nil {
		return o.fail(result, startTime, time.Now(), 0, err)
	}
	result.Context = rc
	result.Duration = time.Since(startTime)
	o.recorder.RecordRun(contracts.StateDone, snap, len(consolidated))

	log.WithFields(map[string]interface{}{
		"duration":     result.Duration.Seconds(),
		"scanned":      snap.InstrumentsScanned,
		"candidates":   len(consolidated),
		"soft_errors":  len(snap.Errors),
		"stages":       len(result.Stages),
		"dual_confirm": len(selection.DualConfirmed(consolidated)),
	}).Info("Screening run completed")

	return result, nil
}

// validate rejects a run configuration before any work starts
func (o *Orchestrator) validate(cfg RunConfig) error {
	if cfg.Date.IsZero() {
		return contracts.ConfigurationError(source, fmt.Errorf("run date is required"))
	}
	if cfg.ScanBudget <= 0 {
		return contracts.ConfigurationError(source, fmt.Errorf("scan budget must be > 0, got %s", cfg.ScanBudget))
	}
	if cfg.Workers < 0 {
		return contracts.ConfigurationError(source, fmt.Errorf("workers must be >= 0, got %d", cfg.Workers))
	}
	if len(o.plans) == 0 {
		return contracts.ConfigurationError(source, fmt.Errorf("no scanners configured"))
	}

	seen := make(map[contracts.Origin]bool, len(o.plans))
	for _, plan := range o.plans {
		if plan.Scanner == nil {
			return contracts.ConfigurationError(source, fmt.Errorf("nil scanner"))
		}
		name := plan.Scanner.Name()
		if name == "" || name == contracts.OriginConsolidated {
			return contracts.ConfigurationError(source, fmt.Errorf("invalid scanner name %q", name))
		}
		if seen[name] {
			return contracts.ConfigurationError(source, fmt.Errorf("duplicate scanner %q", name))
		}
		seen[name] = true
		if plan.MinScore < 0 || plan.MinScore > 100 {
			return contracts.ConfigurationError(string(name), fmt.Errorf("min_score must be 0-100, got %d", plan.MinScore))
		}
		if plan.Limit < 0 {
			return contracts.ConfigurationError(string(name), fmt.Errorf("limit must be >= 0, got %d", plan.Limit))
		}
	}
	return nil
}

// prepare refreshes provider data and resolves the instrument batch
func (o *Orchestrator) prepare(ctx context.Context, cfg RunConfig) (contracts.Batch, *contracts.DataSnapshot, error) {
	snapshot, err := o.provider.Refresh(ctx, cfg.Date)
	if err != nil {
		return contracts.Batch{}, nil, fmt.Errorf("refresh: %w", err)
	}

	ids := cfg.Instruments
	if len(ids) == 0 {
		ids, err = o.provider.ListInstruments(ctx)
		if err != nil {
			return contracts.Batch{}, nil, fmt.Errorf("list instruments: %w", err)
		}
	}

	o.logger.WithFields(map[string]interface{}{
		"instruments": len(ids),
		"coverage":    snapshot.CoverageRate(),
	}).Info("Preparation completed")

	return contracts.NewBatch(cfg.Date, ids), snapshot, nil
}

// scan runs every scanner concurrently under the scan budget.
// Budget expiry is soft: scanners return partial results and record
// TimeoutExceeded. Cancellation of the caller's ctx is fatal.
func (o *Orchestrator) scan(ctx context.Context, cfg RunConfig, batch contracts.Batch, stats *contracts.RunStats) ([][]contracts.Candidate, error) {
	scanCtx, cancel := context.WithTimeout(ctx, cfg.ScanBudget)
	defer cancel()

	outputs := make([][]contracts.Candidate, len(o.plans))
	g, gctx := errgroup.WithContext(scanCtx)

	for i, plan := range o.plans {
		i, plan := i, plan
		g.Go(func() error {
			out, err := plan.Scanner.Scan(gctx, batch, plan.MinScore, plan.Limit, contracts.ScanOptions{
				Workers: cfg.Workers,
				Stats:   stats,
			})
			if err != nil {
				return err
			}
			if err := verifyOutput(plan, batch, out); err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}

	// 모든 스캐너 종료 후에만 다음 단계 진행 (barrier)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run canceled: %w", err)
	}
	return outputs, nil
}

// verifyOutput checks what a scanner handed back
func verifyOutput(plan ScanPlan, batch contracts.Batch, out []contracts.Candidate) error {
	name := plan.Scanner.Name()
	if out == nil {
		return contracts.InvariantViolation(string(name), "", fmt.Errorf("scanner returned nil output"))
	}
	if plan.Limit > 0 && len(out) > plan.Limit {
		return contracts.InvariantViolation(string(name), "", fmt.Errorf("limit %d exceeded: %d candidates", plan.Limit, len(out)))
	}

	seen := make(map[string]bool, len(out))
	for _, c := range out {
		if c.Origin() != name {
			return contracts.InvariantViolation(string(name), c.InstrumentID(),
				fmt.Errorf("origin %q does not match scanner", c.Origin()))
		}
		if c.Score() < 0 || c.Score() > 100 {
			return contracts.InvariantViolation(string(name), c.InstrumentID(), fmt.Errorf("score %d out of range", c.Score()))
		}
		if !c.AsOf().Equal(batch.AsOf) {
			return contracts.InvariantViolation(string(name), c.InstrumentID(),
				fmt.Errorf("as_of_date %s does not match batch", c.AsOf().Format(contracts.DateLayout)))
		}
		if seen[c.InstrumentID()] {
			return contracts.InvariantViolation(string(name), c.InstrumentID(), fmt.Errorf("duplicate instrument"))
		}
		seen[c.InstrumentID()] = true
	}
	if !contracts.IsRanked(out) {
		return contracts.InvariantViolation(string(name), "", fmt.Errorf("output is not ranked"))
	}
	return nil
}

// transition moves the run forward, refusing illegal moves
func (o *Orchestrator) transition(result *RunResult, to contracts.RunState) error {
	if !result.State.CanTransition(to) {
		return contracts.InvariantViolation(source, "", fmt.Errorf("illegal transition %s -> %s", result.State, to))
	}
	result.State = to
	return nil
}

func (o *Orchestrator) completeStage(result *RunResult, start time.Time, in, out int) {
	stage := contracts.NewStageResult(result.State, start, in, out, nil)
	result.Stages = append(result.Stages, stage)
	o.recorder.ObserveStage(result.State, time.Since(start))

	o.logger.WithFields(map[string]interface{}{
		"run_id":      result.RunID,
		"state":       result.State.ShortName(),
		"input":       in,
		"output":      out,
		"duration_ms": stage.Duration,
	}).Debug("Stage completed")
}

// fail records the failing state and ends the run without a context
func (o *Orchestrator) fail(result *RunResult, runStart, stageStart time.Time, in int, err error) (*RunResult, error) {
	result.Stages = append(result.Stages, contracts.NewStageResult(result.State, stageStart, in, 0, err))
	failedAt := result.State
	result.State = contracts.StateFailed
	result.Context = nil
	result.Error = err
	result.Duration = time.Since(runStart)
	o.recorder.RecordRun(contracts.StateFailed, contracts.RunStatsSnapshot{}, 0)

	kind, _ := contracts.KindOf(err)
	o.logger.WithError(err).WithFields(map[string]interface{}{
		"run_id":    result.RunID,
		"failed_at": string(failedAt),
		"kind":      string(kind),
	}).Error("Screening run failed")

	return result, err
}
