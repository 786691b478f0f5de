package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/deepvalidate"
	"github.com/wonny/aegis/v13/screener/internal/report"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "이벤트 태그 사후 검증 (deep validation)",
	Long: `저장된 리포트의 후보 중 이벤트 태그(BREAKOUT, GAP, SQUEEZE_RELEASE)만
이후 N 거래일 동안 유지되었는지 확인하여 리포트에 결과를 추가합니다.

스캔 점수/순위는 변경되지 않습니다.

Example:
  go run ./cmd/screener validate --date 2024-03-08
  go run ./cmd/screener validate --date 2024-03-08 --forward-days 10`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

var (
	validateDate        string
	validateForwardDays int
)

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateDate, "date", "", "리포트 날짜 (YYYY-MM-DD, 기본: 오늘)")
	validateCmd.Flags().IntVar(&validateForwardDays, "forward-days", 0, "관찰 거래일 수 (0 = VALIDATION_FORWARD_DAYS)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	date, err := parseDate(validateDate)
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

	path := filepath.Join(report.Dir(a.cfg.Screener.ReportDir, date), report.BaseName(date)+".json")
	rc, err := report.ReadFile(path)
	if err != nil {
		return err
	}

	forwardDays := a.cfg.Screener.ForwardDays
	if validateForwardDays > 0 {
		forwardDays = validateForwardDays
	}
	validator := deepvalidate.NewValidator(a.bars, forwardDays, a.log)
	subjects := deepvalidate.Subjects(rc.Candidates(), a.engine)

	printHeader(out, "Deep Validation",
		KV{"Date", date.Format(contracts.DateLayout)},
		KV{"Report", path},
		KV{"Subjects", fmt.Sprintf("%d of %d candidates", len(subjects), len(rc.Candidates()))},
		KV{"Forward Days", fmt.Sprintf("%d", validator.ForwardDays())},
	)

	results, err := validator.Validate(ctx, subjects)
	if err != nil {
		return fmt.Errorf("deep validation: %w", err)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.InstrumentID, r.EventTag, string(r.Status), r.Detail})
	}
	fmt.Fprintln(out)
	printTable(out, []string{"Instrument", "Event", "Status", "Detail"}, []int{12, 16, 10, 0}, rows)

	validated := rc.WithValidations(results)
	files, err := report.WriteFiles(a.cfg.Screener.ReportDir, validated)
	if err != nil {
		return err
	}
	if err := a.store.Save(ctx, validated); err != nil {
		return fmt.Errorf("store report: %w", err)
	}

	fmt.Fprintln(out)
	printSuccess(out, "Report updated: %s", files.Markdown)
	return nil
}
