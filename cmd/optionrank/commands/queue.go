package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// queueCmd represents the queue command
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "큐 관리",
	Long: `랭킹 작업 큐를 조회하고 정리합니다.

Example:
  go run ./cmd/optionrank queue stats
  go run ./cmd/optionrank queue reclaim
  go run ./cmd/optionrank queue prune`,
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "상태별 작업 수",
	RunE:  runQueueStats,
}

var queueReclaimCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "시간 초과된 running 작업 회수",
	RunE:  runQueueReclaim,
}

var queuePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "보존 기간이 지난 완료/실패 작업 삭제",
	RunE:  runQueuePrune,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueStatsCmd, queueReclaimCmd, queuePruneCmd)
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		stats, err := a.orch.Stats(ctx)
		if err != nil {
			return fmt.Errorf("queue stats: %w", err)
		}

		PrintHeader("Ranking Queue")
		fmt.Printf("  Pending:   %d\n", stats.Pending)
		fmt.Printf("  Running:   %d\n", stats.Running)
		fmt.Printf("  Completed: %d\n", stats.Completed)
		fmt.Printf("  Failed:    %d\n", stats.Failed)
		PrintSeparator()
		fmt.Printf("  Total:     %d\n", stats.Total())
		return nil
	})
}

func runQueueReclaim(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		n, err := a.orch.ReclaimStale(ctx)
		if err != nil {
			return fmt.Errorf("reclaim: %w", err)
		}
		PrintSuccess(fmt.Sprintf("Reclaimed %d stale jobs", n))
		return nil
	})
}

func runQueuePrune(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		n, err := a.orch.Prune(ctx)
		if err != nil {
			return fmt.Errorf("prune: %w", err)
		}
		PrintSuccess(fmt.Sprintf("Pruned %d finished jobs older than %s", n, a.cfg.Ranking.JobRetention))
		return nil
	})
}

// withApp runs fn against a fully wired app with a bounded context
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	return fn(ctx, a)
}
