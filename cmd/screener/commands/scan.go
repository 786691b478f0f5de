package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v13/screener/internal/brain"
	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/report"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "스크리닝 실행",
}

var (
	scanRunCmd = &cobra.Command{
		Use:   "run",
		Short: "일일 스크리닝 1회 실행",
		Long: `PREPARING → SCANNING → CONSOLIDATING → REPORT_BUILDING → DONE

두 스캐너를 병렬 실행하고 병합된 후보로 리포트를 생성합니다.
리포트 파일(.md/.json)을 쓰고, 기본적으로 후보를 DB에 저장합니다.

Flags:
  --date         실행 날짜 (기본: 오늘)
  --instruments  평가할 종목 (쉼표 구분, 기본: 전체)
  --no-persist   DB/캐시 저장 생략
  --budget       스캔 시간 예산 (기본: SCAN_BUDGET)

Example:
  go run ./cmd/screener scan run
  go run ./cmd/screener scan run --date 2024-03-15
  go run ./cmd/screener scan run --instruments AAPL,MSFT --no-persist`,
		Args: cobra.NoArgs,
		RunE: runScan,
	}

	// Flags
	scanDate        string
	scanInstruments string
	scanNoPersist   bool
	scanBudget      time.Duration
	scanReportDir   string
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.AddCommand(scanRunCmd)

	scanRunCmd.Flags().StringVar(&scanDate, "date", "", "실행 날짜 (YYYY-MM-DD, 기본: 오늘)")
	scanRunCmd.Flags().StringVar(&scanInstruments, "instruments", "", "평가할 종목 (쉼표 구분)")
	scanRunCmd.Flags().BoolVar(&scanNoPersist, "no-persist", false, "DB/캐시 저장 생략")
	scanRunCmd.Flags().DurationVar(&scanBudget, "budget", 0, "스캔 시간 예산 (0 = 설정값)")
	scanRunCmd.Flags().StringVar(&scanReportDir, "report-dir", "", "리포트 루트 (기본: REPORT_DIR)")
}

func runScan(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	runDate, err := parseDate(scanDate)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	budget := a.cfg.Screener.ScanBudget
	if scanBudget > 0 {
		budget = scanBudget
	}
	reportDir := a.cfg.Screener.ReportDir
	if scanReportDir != "" {
		reportDir = scanReportDir
	}

	printHeader(out, "Daily Screening Run",
		KV{"Date", runDate.Format(contracts.DateLayout)},
		KV{"Strategy", a.version},
		KV{"Workers", strconv.Itoa(a.cfg.Screener.Workers)},
		KV{"Budget", budget.String()},
		KV{"Persist", strconv.FormatBool(!scanNoPersist)},
	)

	result, err := a.orch.Run(ctx, brain.RunConfig{
		Date:            runDate,
		TaxonomyVersion: a.version,
		Workers:         a.cfg.Screener.Workers,
		ScanBudget:      budget,
		Instruments:     splitList(scanInstruments),
	})
	if result != nil {
		printStages(out, result.Stages)
	}
	if err != nil {
		return fmt.Errorf("screening run failed: %w", err)
	}

	rc := result.Context
	files, err := report.WriteFiles(reportDir, rc)
	if err != nil {
		return err
	}

	if !scanNoPersist {
		if err := persist(ctx, a, rc); err != nil {
			return err
		}
	}

	printRunSummary(out, result.Summary())
	printSuccess(out, "Report written: %s", files.Markdown)
	return nil
}

func persist(ctx context.Context, a *app, rc *report.Context) error {
	if err := a.repo.SaveCandidates(ctx, rc.RunID(), rc.AsOf(), rc.Candidates()); err != nil {
		return fmt.Errorf("save candidates: %w", err)
	}
	if err := a.store.Save(ctx, rc); err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	return nil
}

func printStages(w io.Writer, stages []contracts.StageResult) {
	rows := make([][]string, 0, len(stages))
	for _, s := range stages {
		status := "OK"
		if !s.Success {
			status = "FAIL " + s.Error
		}
		rows = append(rows, []string{
			s.State.ShortName(),
			strconv.Itoa(s.InputCount),
			strconv.Itoa(s.OutputCount),
			fmt.Sprintf("%dms", s.Duration),
			status,
		})
	}
	fmt.Fprintln(w)
	printTable(w, []string{"Stage", "In", "Out", "Time", "Status"}, []int{5, 6, 6, 8, 0}, rows)
}

func printRunSummary(w io.Writer, s brain.RunSummary) {
	fmt.Fprintln(w)
	printHeader(w, "Run Summary",
		KV{"Run ID", s.RunID},
		KV{"State", s.State},
		KV{"Candidates", strconv.Itoa(s.Candidates)},
		KV{"Dual Confirmed", strconv.Itoa(s.DualConfirmed)},
		KV{"Soft Errors", strconv.Itoa(s.SoftErrors)},
		KV{"Top", strings.Join(s.Top, ", ")},
		KV{"Duration", fmt.Sprintf("%dms", s.DurationMS)},
	)
}
