package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wonny/optionrank/internal/data/repos"
	"github.com/wonny/optionrank/internal/events"
	"github.com/wonny/optionrank/internal/jobs"
	"github.com/wonny/optionrank/internal/rankcfg"
	"github.com/wonny/optionrank/internal/ranking"
	"github.com/wonny/optionrank/pkg/config"
	"github.com/wonny/optionrank/pkg/database"
	"github.com/wonny/optionrank/pkg/logger"
	"github.com/wonny/optionrank/pkg/redis"
)

// app bundles the shared dependencies every long-running command needs
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB
	redis     *redis.Client
	ranks     *ranking.CachedRankStore
	engine    *ranking.Engine
	registry  *prometheus.Registry
	publisher events.Publisher
	orch      *jobs.Orchestrator
}

// loadConfig reads the environment and applies global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp wires config → logger → database → redis → engine → orchestrator
func newApp(cfg *config.Config) (*app, error) {
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("Connected to database")

	rdb, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if rdb.Enabled() {
		log.Info("Connected to redis")
	}

	rankCfg, err := rankcfg.Load(cfg.Ranking.ConfigPath)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, fmt.Errorf("load ranking config: %w", err)
	}

	engine, err := ranking.NewEngine(rankCfg, log)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := repos.NewStore(db.Pool)
	ranks := ranking.NewCachedRankStore(store, redis.NewCache(rdb, "optionrank"), log)
	publisher := events.New(cfg.Kafka, log)
	orch := jobs.NewOrchestrator(cfg.Ranking, store, publisher, jobs.NewMetrics(registry), log)

	log.WithFields(map[string]interface{}{
		"config_hash": engine.ConfigHash(),
		"kafka":       len(cfg.Kafka.Brokers) > 0,
	}).Info("Ranking engine ready")

	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		redis:     rdb,
		ranks:     ranks,
		engine:    engine,
		registry:  registry,
		publisher: publisher,
		orch:      orch,
	}, nil
}

// gatherer returns the metrics registry, or nil when metrics are disabled
func (a *app) gatherer() prometheus.Gatherer {
	if !a.cfg.MetricsEnabled {
		return nil
	}
	return a.registry
}

// Close releases connections in reverse order of creation
func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close event publisher")
	}
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}
