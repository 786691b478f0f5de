package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v13/screener/internal/api"
	"github.com/wonny/aegis/v13/screener/internal/api/handlers"
	"github.com/wonny/aegis/v13/screener/internal/scheduler"
	"github.com/wonny/aegis/v13/screener/internal/scheduler/jobs"
)

// serveCmd runs the scheduler and the HTTP API together
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "스케줄러 + API 서버 실행",
	Long: `스케줄러와 API 서버를 함께 실행합니다.

등록되는 작업:
- daily_scan: SCAN_SCHEDULE (기본: 평일 18:30)
- report_retention: 매일 03:00 (REPORT_RETENTION 지난 리포트 삭제)

엔드포인트:
- GET  /health
- GET  /metrics
- GET  /api/reports/latest[/markdown|/candidates]
- GET  /api/reports/{date}
- GET  /api/scheduler/jobs
- POST /api/scheduler/jobs/{name}/run
- WS   /ws/runs

Ctrl+C로 종료합니다.

Example:
  go run ./cmd/screener serve
  go run ./cmd/screener serve --run-now`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveRunNow bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveRunNow, "run-now", false, "시작 직후 daily_scan 1회 실행")
}

func runServe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	hub := api.NewHub(a.log)
	defer hub.Close()

	// 1. Scheduler + jobs
	sched := scheduler.New(a.log, scheduler.WithRetry(2, 5*time.Minute))
	scan := jobs.NewDailyScanJob(a.orch, jobs.DailyScanConfig{
		Schedule:        a.cfg.Screener.Schedule,
		ReportDir:       a.cfg.Screener.ReportDir,
		Workers:         a.cfg.Screener.Workers,
		ScanBudget:      a.cfg.Screener.ScanBudget,
		TaxonomyVersion: a.version,
	}, a.store, a.repo, hub, a.log)
	if err := sched.AddJob(scan); err != nil {
		return fmt.Errorf("register %s: %w", scan.Name(), err)
	}
	retention := jobs.NewReportRetentionJob(a.cfg.Screener.ReportDir, a.cfg.Screener.ReportRetention, a.log)
	if err := sched.AddJob(retention); err != nil {
		return fmt.Errorf("register %s: %w", retention.Name(), err)
	}

	// 2. HTTP API
	router := api.NewRouter(api.Handlers{
		Report:    handlers.NewReportHandler(a.store, a.log),
		Scheduler: handlers.NewSchedulerHandler(sched, a.log),
		Hub:       hub,
		Metrics:   a.recorder.Handler(),
	}, a.log)
	server := api.New(a.cfg, a.log, router)

	sched.Start()
	defer sched.Stop()

	printHeader(out, "Screener Service",
		KV{"Port", a.cfg.Port},
		KV{"Strategy", a.version},
		KV{"Schedule", a.cfg.Screener.Schedule},
		KV{"Jobs", fmt.Sprintf("%v", sched.GetAllJobs())},
	)

	if serveRunNow {
		if err := sched.RunJob(scan.Name()); err != nil {
			return err
		}
	}

	return server.Run(ctx)
}
