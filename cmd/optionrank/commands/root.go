package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "optionrank",
	Short: "OptionRank - 옵션 계약 멀티팩터 랭킹 시스템",
	Long: `OptionRank Unified CLI

옵션 체인 스냅샷을 받아 Value / Momentum / Greeks 점수로
계약을 평가하고, 심볼별 랭킹 작업을 큐로 관리합니다.

Usage:
  go run ./cmd/optionrank [command]

Examples:
  go run ./cmd/optionrank migrate
  go run ./cmd/optionrank api
  go run ./cmd/optionrank worker start --concurrency 4
  go run ./cmd/optionrank enqueue AAPL
  go run ./cmd/optionrank rank internal/snapshot/testdata/AAPL.json`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (LOG_LEVEL=debug)")
}
