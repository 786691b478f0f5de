package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v13/screener/internal/strategyconfig"
	"github.com/wonny/aegis/v13/screener/internal/taxonomy"
)

// taxonomyCmd represents the taxonomy command
var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "택소노미/전략 설정 관리",
}

var taxonomyCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "전략 YAML 검증 (DB 불필요)",
	Long: `전략 YAML을 로드하여 스키마/예산/참조를 검증하고
태그 목록, 점수 상한, 버전 태그와 경고를 출력합니다.

설정 오류가 있으면 0이 아닌 코드로 종료합니다.

Example:
  go run ./cmd/screener taxonomy check
  go run ./cmd/screener taxonomy check --strategy ./strategy.yaml`,
	Args: cobra.NoArgs,
	RunE: runTaxonomyCheck,
}

func init() {
	rootCmd.AddCommand(taxonomyCmd)
	taxonomyCmd.AddCommand(taxonomyCheckCmd)
}

func runTaxonomyCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	strategy, _, err := strategyconfig.LoadOrDefault(strategyFile)
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}

	source := strategyFile
	if source == "" {
		source = strategyconfig.DefaultSource
	}
	tax := strategy.Taxonomy

	printHeader(out, "Strategy Check",
		KV{"Source", source},
		KV{"Version", strategyconfig.VersionTag(strategy)},
		KV{"Structural", fmt.Sprintf("%d pts (cap %d)", tax.PointsSum(strategyconfig.ClassStructural), tax.StructuralCap)},
		KV{"Auxiliary", fmt.Sprintf("%d pts (cap %d)", tax.PointsSum(strategyconfig.ClassAuxiliary), tax.AuxiliaryCap)},
		KV{"Momentum", fmt.Sprintf("min %d, limit %d, bucket caps %d", strategy.Momentum.MinScore, strategy.Momentum.Limit, strategyconfig.CapSum(strategy.Momentum.Buckets))},
		KV{"Structural Scan", fmt.Sprintf("min %d, limit %d", strategy.Structural.MinScore, strategy.Structural.Limit)},
	)

	engine := taxonomy.NewEngine(tax)
	rules := engine.Rules()
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Class < rules[j].Class })

	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		conds := make([]string, 0, len(r.When))
		for _, c := range r.When {
			conds = append(conds, fmt.Sprintf("%s %s %s", c.Feature, c.Op, strconv.FormatFloat(c.Value, 'f', -1, 64)))
		}
		rows = append(rows, []string{r.Name, string(r.Class), string(r.Namespace), strconv.Itoa(r.Points), strings.Join(conds, " && ")})
	}
	fmt.Fprintln(out)
	printTable(out, []string{"Tag", "Class", "Namespace", "Pts", "When"}, []int{20, 10, 11, 3, 0}, rows)
	fmt.Fprintln(out)

	warnings := strategyconfig.Warn(strategy)
	if len(warnings) > 0 {
		items := make([]string, 0, len(warnings))
		for _, w := range warnings {
			items = append(items, fmt.Sprintf("[%s] %s", w.Code, w.Message))
		}
		printWarning(out, "%d warning(s)", len(warnings))
		printList(out, items)
		fmt.Fprintln(out)
	}

	printSuccess(out, "Strategy is valid (%d tags)", len(rules))
	return nil
}
