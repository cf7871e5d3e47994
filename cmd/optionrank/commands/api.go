package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/optionrank/internal/api"
	"github.com/wonny/optionrank/internal/api/handlers"
	"github.com/wonny/optionrank/internal/jobs"
	"github.com/wonny/optionrank/internal/snapshot"
	"github.com/wonny/optionrank/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 랭킹 작업 등록 / 상태 조회
- 심볼별 최신 랭킹 조회 (필터 지원)
- 계약별 점수 기여도 설명
- Prometheus 메트릭 노출

Endpoints:
  GET  /health                                   - Health check
  GET  /metrics                                  - Prometheus metrics
  POST /api/rankings/jobs                        - 랭킹 작업 등록
  GET  /api/rankings/jobs/{id}                   - 작업 상태
  GET  /api/rankings/queue                       - 큐 통계
  GET  /api/rankings/{symbol}                    - 최신 랭킹
  GET  /api/rankings/{symbol}/{contract}/explain - 점수 설명

Example:
  go run ./cmd/optionrank api
  go run ./cmd/optionrank api --port 8080 --with-worker`,
	RunE: runAPIServer,
}

var (
	apiPort       string
	apiWithWorker bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본값: PORT)")
	apiCmd.Flags().BoolVar(&apiWithWorker, "with-worker", false, "같은 프로세스에서 워커 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== OptionRank API Server ===")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"env":         cfg.Env,
		"with_worker": apiWithWorker,
	}).Info("Initializing API server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if apiWithWorker {
		source, err := snapshot.New(cfg.Snapshot, a.db.Pool, a.log)
		if err != nil {
			return fmt.Errorf("create snapshot source: %w", err)
		}
		worker := jobs.NewWorker(a.orch, a.ranks.WriteThrough(), source, a.engine, a.log)
		worker.Start(ctx)
		defer worker.Stop()
	}

	limiter := redis.NewRateLimiter(a.redis, "optionrank")
	rankingHandler := handlers.NewRankingHandler(a.orch, a.ranks, a.engine, limiter, cfg.RateLimit.EnqueuePerMinute, a.log)
	router := api.NewRouter(rankingHandler, a.db, a.gatherer(), a.log)
	server := api.New(cfg, a.log, router)

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /metrics")
	fmt.Println("  POST /api/rankings/jobs")
	fmt.Println("  GET  /api/rankings/jobs/{id}")
	fmt.Println("  GET  /api/rankings/queue")
	fmt.Println("  GET  /api/rankings/{symbol}")
	fmt.Println("  GET  /api/rankings/{symbol}/{contract}/explain")
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
