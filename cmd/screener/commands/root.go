package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "screener",
	Short:         "Aegis v13 Screener - 일일 후보 스크리닝",
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `Aegis v13 Screener CLI

두 개의 독립 스캐너(momentum, structural)로 종목을 평가하고
후보를 병합/순위화하여 일일 리포트를 생성합니다. (관찰 전용, 주문 없음)

Usage:
  go run ./cmd/screener [command]

Examples:
  go run ./cmd/screener taxonomy check
  go run ./cmd/screener scan run --date 2024-03-15
  go run ./cmd/screener validate --date 2024-03-08
  go run ./cmd/screener serve
  go run ./cmd/screener migrate`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (default: STRATEGY_PATH or embedded)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
