package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/optionrank/pkg/database"
	"github.com/wonny/optionrank/pkg/logger"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 적용",
	Long: `내장된 SQL 마이그레이션을 순서대로 적용합니다.
모든 구문은 idempotent 하므로 여러 번 실행해도 안전합니다.

Example:
  go run ./cmd/optionrank migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	fmt.Println("=== OptionRank Migrate ===")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := db.Migrate(ctx)
	for _, name := range applied {
		PrintSuccess(name)
	}
	if err != nil {
		log.WithError(err).Error("Migration failed")
		return err
	}

	log.WithField("count", len(applied)).Info("Migrations applied")
	return nil
}
