package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/optionrank/internal/scheduler"
	"github.com/wonny/optionrank/pkg/httputil"
	"github.com/wonny/optionrank/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "유지보수 스케줄러 관리",
	Long: `워커의 유지보수 작업을 조회하거나 즉시 실행합니다.

Subcommands:
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)
  status  - 실행 중인 워커의 작업 실행 통계 조회

Example:
  go run ./cmd/optionrank scheduler list
  go run ./cmd/optionrank scheduler run reclaim_stale
  go run ./cmd/optionrank scheduler status --addr http://localhost:9109`,
}

var (
	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  runSchedulerList,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerRun,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  runSchedulerStatus,
	}
)

var schedulerAdminAddr string

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerListCmd, schedulerRunCmd, schedulerStatusCmd)

	schedulerStatusCmd.Flags().StringVar(&schedulerAdminAddr, "addr", "http://localhost:9109", "워커 관리 주소")
}

func runSchedulerList(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		sched := newMaintenanceScheduler(a)
		stats := sched.GetJobStats()

		PrintHeader("Maintenance Jobs")
		for _, name := range sched.GetAllJobs() {
			fmt.Printf("  - %-20s %s\n", name, stats[name].Schedule)
		}
		return nil
	})
}

func runSchedulerRun(cmd *cobra.Command, args []string) error {
	jobName := args[0]
	fmt.Printf("Running job: %s\n", jobName)

	return withApp(func(ctx context.Context, a *app) error {
		result, err := newMaintenanceScheduler(a).RunJob(jobName)
		if err != nil {
			return fmt.Errorf("run job: %w", err)
		}
		if !result.Success {
			return fmt.Errorf("job %s failed after %s: %s", jobName, result.Duration.Round(time.Millisecond), result.Error)
		}

		PrintSuccess(fmt.Sprintf("Job %s completed in %s", jobName, result.Duration.Round(time.Millisecond)))
		return nil
	})
}

func runSchedulerStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := httputil.New(logger.New(cfg), 10*time.Second).DisableRetry()

	var body struct {
		Jobs []scheduler.JobStats `json:"jobs"`
	}
	url := strings.TrimRight(schedulerAdminAddr, "/") + "/scheduler/jobs"
	if err := client.GetJSON(cmd.Context(), url, &body); err != nil {
		return fmt.Errorf("fetch scheduler status: %w", err)
	}

	printJobStats(body.Jobs)
	return nil
}

func printJobStats(stats []scheduler.JobStats) {
	fmt.Println("Job Statistics:")
	fmt.Println()

	for _, stat := range stats {
		fmt.Printf("📊 %s\n", stat.JobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
		if stat.LastSuccess != nil {
			fmt.Printf("   Last Success: %s\n", stat.LastSuccess.Format("2006-01-02 15:04:05"))
		}
		if stat.LastFailure != nil {
			fmt.Printf("   Last Failure: %s\n", stat.LastFailure.Format("2006-01-02 15:04:05"))
		}

		fmt.Println()
	}
}
