// Package jobs holds the scheduled jobs of the screener.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis/v13/screener/internal/brain"
	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/report"
	"github.com/wonny/aegis/v13/screener/internal/scheduler"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

// Runner executes one screening run
type Runner interface {
	Run(ctx context.Context, cfg brain.RunConfig) (*brain.RunResult, error)
}

// CandidateSaver persists consolidated candidates (selection.Repository)
type CandidateSaver interface {
	SaveCandidates(ctx context.Context, runID string, asOf time.Time, cands []contracts.Candidate) error
}

// Publisher receives a summary after every run (api.Hub)
type Publisher interface {
	Publish(summary brain.RunSummary)
}

// DailyScanConfig 일일 스캔 설정
type DailyScanConfig struct {
	Schedule        string
	ReportDir       string // 비어 있으면 파일 출력 생략
	Workers         int
	ScanBudget      time.Duration
	TaxonomyVersion string
}

// DailyScanJob runs the screening pipeline for the current date
type DailyScanJob struct {
	runner    Runner
	cfg       DailyScanConfig
	store     report.Store   // nil 허용
	saver     CandidateSaver // nil 허용
	publisher Publisher      // nil 허용
	now       func() time.Time
	logger    *logger.Logger
}

// NewDailyScanJob creates a new daily scan job
func NewDailyScanJob(runner Runner, cfg DailyScanConfig, store report.Store, saver CandidateSaver, publisher Publisher, log *logger.Logger) *DailyScanJob {
	return &DailyScanJob{
		runner:    runner,
		cfg:       cfg,
		store:     store,
		saver:     saver,
		publisher: publisher,
		now:       time.Now,
		logger:    log.WithComponent("daily_scan"),
	}
}

// WithClock overrides the run date source
func (j *DailyScanJob) WithClock(now func() time.Time) *DailyScanJob {
	j.now = now
	return j
}

// Name returns the job name
func (j *DailyScanJob) Name() string {
	return "daily_scan"
}

// Schedule returns the cron schedule
func (j *DailyScanJob) Schedule() string {
	return j.cfg.Schedule
}

// Run executes one screening run and delivers its outputs
func (j *DailyScanJob) Run(ctx context.Context) error {
	date := contracts.TruncateDate(j.now())
	j.logger.WithField("date", date.Format(contracts.DateLayout)).Info("Starting scheduled screening run")

	result, err := j.runner.Run(ctx, brain.RunConfig{
		Date:            date,
		TaxonomyVersion: j.cfg.TaxonomyVersion,
		Workers:         j.cfg.Workers,
		ScanBudget:      j.cfg.ScanBudget,
	})
	if result != nil && j.publisher != nil {
		j.publisher.Publish(result.Summary())
	}
	if err != nil {
		// 설정/불변식 오류는 재시도해도 동일
		if kind, ok := contracts.KindOf(err); ok && kind.Fatal() {
			return scheduler.Permanent(err)
		}
		return fmt.Errorf("screening run failed: %w", err)
	}

	return j.deliver(ctx, result)
}

func (j *DailyScanJob) deliver(ctx context.Context, result *brain.RunResult) error {
	rc := result.Context
	log := j.logger.WithRun(result.RunID, result.Date)

	if j.cfg.ReportDir != "" {
		files, err := report.WriteFiles(j.cfg.ReportDir, rc)
		if err != nil {
			return err
		}
		log.WithFields(map[string]interface{}{
			"markdown": files.Markdown,
			"json":     files.JSON,
		}).Info("Report written")
	}

	if j.store != nil {
		if err := j.store.Save(ctx, rc); err != nil {
			return fmt.Errorf("failed to store report: %w", err)
		}
	}

	if j.saver != nil {
		if err := j.saver.SaveCandidates(ctx, rc.RunID(), rc.AsOf(), rc.Candidates()); err != nil {
			return fmt.Errorf("failed to save candidates: %w", err)
		}
	}

	log.WithFields(map[string]interface{}{
		"candidates":  len(rc.Candidates()),
		"soft_errors": len(rc.Errors()),
	}).Info("Scheduled screening run completed")

	return nil
}
