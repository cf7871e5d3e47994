package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/jobs"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status JOB_ID",
	Short: "작업 상태 조회",
	Long: `랭킹 작업의 상태를 조회합니다.

표시 정보:
- Status: pending / running / completed / failed
- Retry: 재시도 횟수 / 최대 재시도
- Queue: 앞에 대기 중인 작업 수 (pending일 때)
- Error: 마지막 오류와 분류

Example:
  go run ./cmd/optionrank status 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  go run ./cmd/optionrank status 1b4e28ba-2fa1-11d2-883f-0016d3cca427 --watch 2s`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

var statusWatch time.Duration

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().DurationVar(&statusWatch, "watch", 0, "완료될 때까지 주기적으로 갱신 (예: 2s)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", args[0], err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		view, err := a.orch.Status(ctx, id)
		if err != nil {
			return fmt.Errorf("job status: %w", err)
		}
		printJobView(view)

		if statusWatch <= 0 || view.IsTerminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(statusWatch):
			PrintSeparator()
		}
	}
}

func printJobView(v *jobs.JobView) {
	fmt.Printf("Job:      %s\n", v.ID)
	fmt.Printf("Symbol:   %s (priority %d)\n", v.Symbol, v.Priority)
	fmt.Printf("Status:   %s\n", v.Status)
	fmt.Printf("Retry:    %d / %d\n", v.RetryCount, v.MaxRetries)
	if v.Status == contracts.JobPending {
		fmt.Printf("Queue:    %d job(s) ahead\n", v.QueuePosition)
	}
	if v.EstimatedCompletion != nil {
		fmt.Printf("ETA:      %s\n", v.EstimatedCompletion.Local().Format(time.RFC3339))
	}
	if v.LastError != "" {
		fmt.Printf("Error:    [%s] %s\n", v.ErrorKind, v.LastError)
	}
	if v.CompletedAt != nil {
		fmt.Printf("Finished: %s\n", v.CompletedAt.Local().Format(time.RFC3339))
	}
}
