package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v13/screener/pkg/config"
	"github.com/wonny/aegis/v13/screener/pkg/database"
)

// migrateCmd applies the SQL schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 적용 (sql/postgres/*.sql)",
	Long: `sql/postgres 디렉토리의 SQL 파일을 이름 순서대로 적용합니다.
모든 스크립트는 재실행 가능(IF NOT EXISTS)합니다.

Example:
  go run ./cmd/screener migrate
  go run ./cmd/screener migrate --dir ./sql/postgres`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

var migrateDir string

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVar(&migrateDir, "dir", "sql/postgres", "migration directory")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	applied, err := db.Migrate(ctx, migrateDir)
	if err != nil {
		return err
	}

	printHeader(out, "Migrations", KV{"Dir", migrateDir}, KV{"Applied", fmt.Sprintf("%d", len(applied))})
	printList(out, applied)
	printSuccess(out, "Schema is up to date")
	return nil
}
