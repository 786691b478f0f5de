package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/report"
	"github.com/wonny/aegis/v13/screener/internal/selection"
)

// statusCmd checks the runtime dependencies
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "DB/Redis/최근 실행 상태 점검",
	Long: `의존 서비스 연결과 최근 실행 결과를 확인합니다.

표시 정보:
- PostgreSQL 응답 시간 및 커넥션 풀
- Redis 사용 여부
- 피처 소스 서킷 브레이커 상태
- 마지막으로 저장된 후보 날짜 / 최신 리포트

Example:
  go run ./cmd/screener status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	health, err := a.db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("database unhealthy: %w", err)
	}

	lastSaved := "none"
	if d, err := a.repo.LatestDate(ctx); err == nil {
		lastSaved = d.Format(contracts.DateLayout)
	} else if !errors.Is(err, selection.ErrNoCandidates) {
		return fmt.Errorf("read candidates: %w", err)
	}

	lastReport := "none"
	if rc, err := a.store.Latest(ctx); err == nil {
		lastReport = fmt.Sprintf("%s (%s, %d candidates)", rc.AsOf().Format(contracts.DateLayout), rc.RunID(), len(rc.Candidates()))
	} else if !errors.Is(err, report.ErrNotFound) {
		return fmt.Errorf("read report store: %w", err)
	}

	printHeader(out, "Screener Status",
		KV{"Env", a.cfg.Env},
		KV{"Strategy", a.version},
		KV{"Database", fmt.Sprintf("ok (%s, %d/%d conns)", health.ResponseTime, health.Stats.TotalConns, health.Stats.MaxConns)},
		KV{"Redis", strconv.FormatBool(a.redis.Enabled())},
		KV{"Bar Source", a.provider.BreakerState()},
		KV{"Last Saved", lastSaved},
		KV{"Last Report", lastReport},
	)
	printSuccess(out, "All dependencies reachable")
	return nil
}
