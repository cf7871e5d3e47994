package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// enqueueCmd represents the enqueue command
var enqueueCmd = &cobra.Command{
	Use:   "enqueue SYMBOL [SYMBOL...]",
	Short: "랭킹 작업 등록",
	Long: `심볼별 랭킹 작업을 큐에 등록합니다.

같은 심볼의 pending/running 작업이 있거나 dedup window 안에
등록된 작업이 있으면 기존 작업 ID를 돌려줍니다.

Example:
  go run ./cmd/optionrank enqueue AAPL
  go run ./cmd/optionrank enqueue AAPL SPY QQQ --priority 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnqueue,
}

var enqueuePriority int

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().IntVar(&enqueuePriority, "priority", 0, "우선순위 (높을수록 먼저)")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	widths := []int{8, 36, 9, 6, 20}
	PrintTableHeader([]string{"Symbol", "Job ID", "Status", "Ahead", "ETA"}, widths)

	var failed int
	for _, symbol := range args {
		receipt, err := a.orch.Enqueue(ctx, symbol, enqueuePriority)
		if err != nil {
			PrintError(fmt.Sprintf("%s: %v", symbol, err))
			failed++
			continue
		}

		status := string(receipt.Status)
		if receipt.Deduplicated {
			status += "*"
		}
		PrintTableRow([]string{
			receipt.Symbol,
			receipt.JobID.String(),
			status,
			fmt.Sprintf("%d", receipt.QueuePosition),
			receipt.EstimatedCompletion.Local().Format("15:04:05"),
		}, widths)
	}

	fmt.Println()
	fmt.Println("* = 기존 작업으로 dedup")

	if failed > 0 {
		return fmt.Errorf("%d of %d enqueues failed", failed, len(args))
	}
	return nil
}
