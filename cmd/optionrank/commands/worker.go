package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/optionrank/internal/api"
	"github.com/wonny/optionrank/internal/api/handlers"
	"github.com/wonny/optionrank/internal/jobs"
	"github.com/wonny/optionrank/internal/scheduler"
	schedjobs "github.com/wonny/optionrank/internal/scheduler/jobs"
	"github.com/wonny/optionrank/internal/snapshot"
	"github.com/wonny/optionrank/pkg/logger"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "랭킹 워커",
	Long: `큐 기반 랭킹 작업을 처리하는 워커입니다.

이 워커는:
- PostgreSQL job queue에서 작업 claim
- 옵션 체인 스냅샷 수집 후 랭킹 계산
- 실패한 작업 backoff 재시도
- 시간 초과된 running 작업 회수
- Graceful shutdown 지원

Example:
  go run ./cmd/optionrank worker start
  go run ./cmd/optionrank worker start --concurrency 5`,
}

// workerStartCmd represents the start subcommand
var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "워커 시작",
	Long: `랭킹 워커와 유지보수 스케줄러를 시작합니다.

Features:
- 동시 실행 작업 수 제어 (--concurrency)
- 스케줄러: stale 회수, 오래된 작업 정리, 큐 통계, watchlist 등록
- 관리 포트 (--admin-port): /health, /metrics, /scheduler/jobs
- 특정 유지보수 작업 제외 (--skip-job)
- Graceful shutdown (Ctrl+C)

Example:
  go run ./cmd/optionrank worker start
  go run ./cmd/optionrank worker start --concurrency 10 --no-scheduler
  go run ./cmd/optionrank worker start --skip-job prune_jobs`,
	RunE: runWorkerStart,
}

var (
	workerConcurrency int
	workerAdminPort   string
	workerNoScheduler bool
	workerSkipJobs    []string
)

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerStartCmd)

	workerStartCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "동시 실행 작업 수 (기본값: RANK_WORKER_CONCURRENCY)")
	workerStartCmd.Flags().StringVar(&workerAdminPort, "admin-port", "9109", "관리 포트 (빈 값이면 비활성)")
	workerStartCmd.Flags().BoolVar(&workerNoScheduler, "no-scheduler", false, "유지보수 스케줄러 비활성")
	workerStartCmd.Flags().StringSliceVar(&workerSkipJobs, "skip-job", nil, "등록하지 않을 유지보수 작업 이름")
}

func runWorkerStart(cmd *cobra.Command, args []string) error {
	fmt.Println("=== OptionRank Ranking Worker ===")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if workerConcurrency > 0 {
		cfg.Ranking.WorkerConcurrency = workerConcurrency
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	source, err := snapshot.New(cfg.Snapshot, a.db.Pool, a.log)
	if err != nil {
		return fmt.Errorf("create snapshot source: %w", err)
	}

	fmt.Printf("Concurrency: %d workers\n", cfg.Ranking.WorkerConcurrency)
	fmt.Printf("Snapshot source: %s\n", cfg.Snapshot.Source)
	fmt.Printf("Job timeout: %s, max retries: %d\n\n", cfg.Ranking.JobTimeout, cfg.Ranking.MaxRetries)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var jobSched handlers.JobScheduler
	if !workerNoScheduler {
		sched := newMaintenanceScheduler(a)
		for _, name := range workerSkipJobs {
			if err := sched.RemoveJob(name); err != nil {
				return fmt.Errorf("skip job: %w", err)
			}
		}
		sched.Start()
		defer sched.Stop()
		jobSched = sched
	}

	if workerAdminPort != "" {
		// only remote sources carry a breaker
		breaker, _ := source.(api.BreakerReporter)
		srv := newAdminServer(workerAdminPort, api.NewAdminRouter(jobSched, breaker, a.gatherer(), a.log))
		go serveAdmin(srv, a.log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// smoothing reads the committed store; commits still refresh the API cache
	worker := jobs.NewWorker(a.orch, a.ranks.WriteThrough(), source, a.engine, a.log)
	worker.Start(ctx)

	fmt.Println("🚀 Worker started")
	fmt.Println("   Press Ctrl+C to stop gracefully")

	<-ctx.Done()

	fmt.Println("\n🛑 Shutting down worker...")
	worker.Stop()
	a.log.Info("Worker stopped")
	return nil
}

// newMaintenanceScheduler registers the queue housekeeping jobs
func newMaintenanceScheduler(a *app) *scheduler.Scheduler {
	sched := scheduler.New(a.log).WithRetry(1, 5*time.Second)

	toAdd := []scheduler.Job{
		schedjobs.NewReclaimStaleJob(a.orch, a.log),
		schedjobs.NewPruneJobsJob(a.orch, a.log),
		schedjobs.NewQueueStatsJob(a.orch, a.log),
	}
	if len(a.cfg.Ranking.WatchlistSymbols) > 0 {
		toAdd = append(toAdd, schedjobs.NewWatchlistJob(a.orch, a.cfg.Ranking.WatchlistSymbols, a.cfg.Ranking.WatchlistSchedule, a.log))
	}

	for _, job := range toAdd {
		if err := sched.AddJob(job); err != nil {
			a.log.WithError(err).WithField("job", job.Name()).Error("Failed to register scheduled job")
		}
	}
	return sched
}

// newAdminServer exposes the worker's admin router on its own port
func newAdminServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func serveAdmin(srv *http.Server, log *logger.Logger) {
	log.WithField("addr", srv.Addr).Info("Serving worker admin endpoints")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("Admin server failed")
	}
}
