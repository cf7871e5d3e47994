package snapshot

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/pkg/config"
	"github.com/wonny/optionrank/pkg/logger"
)

// New returns the source selected by SNAPSHOT_SOURCE
// ⭐ SSOT: 스냅샷 소스 선택은 여기서만
func New(cfg config.SnapshotConfig, pool *pgxpool.Pool, log *logger.Logger) (contracts.SnapshotSource, error) {
	switch cfg.Source {
	case "http":
		return NewHTTPSource(cfg, log), nil
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("postgres snapshot source requires a database pool")
		}
		return NewPostgresSource(pool, log), nil
	case "file":
		return NewFileSource(cfg.FileDir), nil
	default:
		return nil, fmt.Errorf("unknown snapshot source %q", cfg.Source)
	}
}
