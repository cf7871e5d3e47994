package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/pkg/logger"
)

// priorRunsBack is how many snapshots back the open interest growth baseline sits
const priorRunsBack = 5

// PostgresSource reads the latest chain written by the ingestion service
// into market.underlying_context / market.option_quotes
type PostgresSource struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewPostgresSource creates a Postgres snapshot source
func NewPostgresSource(pool *pgxpool.Pool, log *logger.Logger) *PostgresSource {
	return &PostgresSource{pool: pool, logger: log}
}

// Fetch implements contracts.SnapshotSource.
// All reads share one repeatable-read transaction so the run sees one consistent chain.
func (s *PostgresSource) Fetch(ctx context.Context, symbol string) (*contracts.ChainSnapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: begin snapshot tx: %v", contracts.ErrDataUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var asOf *time.Time
	if err := tx.QueryRow(ctx,
		`SELECT MAX(as_of) FROM market.option_quotes WHERE symbol = $1`, symbol,
	).Scan(&asOf); err != nil {
		return nil, fmt.Errorf("%w: latest snapshot %s: %v", contracts.ErrDataUnavailable, symbol, err)
	}
	if asOf == nil {
		return nil, fmt.Errorf("%w: %s", contracts.ErrSnapshotNotFound, symbol)
	}

	payload := chainPayload{Symbol: symbol, AsOf: asOf.UTC()}

	// underlying context is optional; missing → neutral trend, zero return
	err = tx.QueryRow(ctx, `
		SELECT price, return_5p, trend
		FROM market.underlying_context
		WHERE symbol = $1 AND as_of <= $2
		ORDER BY as_of DESC
		LIMIT 1
	`, symbol, *asOf).Scan(&payload.UnderlyingPrice, &payload.Return5P, &payload.Trend)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: underlying context %s: %v", contracts.ErrDataUnavailable, symbol, err)
	}

	var priorAsOf *time.Time
	err = tx.QueryRow(ctx, `
		SELECT as_of FROM (
			SELECT DISTINCT as_of
			FROM market.option_quotes
			WHERE symbol = $1 AND as_of < $2
		) s
		ORDER BY as_of DESC
		OFFSET $3 LIMIT 1
	`, symbol, *asOf, priorRunsBack-1).Scan(&priorAsOf)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: prior snapshot %s: %v", contracts.ErrDataUnavailable, symbol, err)
	}

	rows, err := tx.Query(ctx, `
		SELECT
			q.contract_id, q.side, q.strike::text, q.expiration,
			q.bid, q.ask, q.mark, q.last,
			q.volume, q.open_interest, p.open_interest,
			q.iv, q.iv_low_52w, q.iv_high_52w,
			q.delta, q.gamma, q.theta, q.vega
		FROM market.option_quotes q
		LEFT JOIN market.option_quotes p
			ON p.symbol = q.symbol AND p.contract_id = q.contract_id AND p.as_of = $3
		WHERE q.symbol = $1 AND q.as_of = $2
		ORDER BY q.contract_id
	`, symbol, *asOf, priorAsOf)
	if err != nil {
		return nil, fmt.Errorf("%w: query quotes %s: %v", contracts.ErrDataUnavailable, symbol, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cp         contractPayload
			strike     string
			expiration time.Time
		)
		if err := rows.Scan(
			&cp.ContractID, &cp.Side, &strike, &expiration,
			&cp.Bid, &cp.Ask, &cp.Mark, &cp.Last,
			&cp.Volume, &cp.OpenInterest, &cp.OpenInterestPrior,
			&cp.IV, &cp.IVLow52W, &cp.IVHigh52W,
			&cp.Delta, &cp.Gamma, &cp.Theta, &cp.Vega,
		); err != nil {
			return nil, fmt.Errorf("%w: scan quote: %v", contracts.ErrDataUnavailable, err)
		}
		if err := cp.Strike.UnmarshalText([]byte(strike)); err != nil {
			return nil, fmt.Errorf("%w: strike %q: %v", contracts.ErrDataUnavailable, strike, err)
		}
		cp.Expiration = expiration.Format("2006-01-02")
		payload.Contracts = append(payload.Contracts, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate quotes: %v", contracts.ErrDataUnavailable, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"as_of":     payload.AsOf,
		"contracts": len(payload.Contracts),
	}).Debug("Loaded chain snapshot")

	return payload.toChain(symbol)
}
