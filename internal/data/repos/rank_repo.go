package repos

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/optionrank/internal/contracts"
)

// RankRepository implements contracts.RankStore on ranking.contract_ranks / rank_runs
// ⭐ SSOT: 랭킹 결과 교체/조회는 여기서만
type RankRepository struct {
	pool *pgxpool.Pool
}

// NewRankRepository creates a new rank repository
func NewRankRepository(pool *pgxpool.Pool) *RankRepository {
	return &RankRepository{pool: pool}
}

// CommitRun completes the job and replaces the symbol's ranking in one transaction.
// The job row is updated first so a concurrent reclaim blocks on its lock.
func (r *RankRepository) CommitRun(ctx context.Context, job *contracts.RankingJob, token string, set *contracts.RankSet) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE ranking.jobs
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'running' AND claimed_by = $2`, job.ID, token)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.ErrJobLost
	}

	if _, err := tx.Exec(ctx, `DELETE FROM ranking.contract_ranks WHERE symbol = $1`, set.Symbol); err != nil {
		return fmt.Errorf("clear ranks for %s: %w", set.Symbol, err)
	}

	if len(set.Ranks) > 0 {
		batch := &pgx.Batch{}
		for _, rank := range set.Ranks {
			batch.Queue(`
				INSERT INTO ranking.contract_ranks (
					symbol, contract_id, job_id, side, strike, expiration, dte,
					mark, volume, open_interest, liquidity,
					value_score, raw_momentum, momentum_score, smoothed_score, greeks_score,
					composite_rank, rank_position, run_at
				) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
				set.Symbol, rank.ContractID, set.JobID, string(rank.Side), rank.Strike.String(), rank.Expiration, rank.DTE,
				rank.Mark, rank.Volume, rank.OpenInterest, rank.Liquidity,
				rank.Scores.Value, rank.Scores.RawMomentum, rank.Scores.Momentum, rank.Scores.SmoothedMomentum, rank.Scores.Greeks,
				rank.Composite, rank.RankPosition, rank.RunAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for _, rank := range set.Ranks {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert rank %s: %w", rank.ContractID, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	excluded := set.Excluded
	if excluded == nil {
		excluded = map[string]int{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO ranking.rank_runs (symbol, job_id, as_of, generated_at, config_hash, evaluated, excluded)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			as_of = EXCLUDED.as_of,
			generated_at = EXCLUDED.generated_at,
			config_hash = EXCLUDED.config_hash,
			evaluated = EXCLUDED.evaluated,
			excluded = EXCLUDED.excluded`,
		set.Symbol, set.JobID, set.AsOf, set.GeneratedAt, set.ConfigHash, set.Evaluated, excluded)
	if err != nil {
		return fmt.Errorf("record run for %s: %w", set.Symbol, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Latest reads the run header and rows under one repeatable-read snapshot
func (r *RankRepository) Latest(ctx context.Context, symbol string) (*contracts.RankSet, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	set := &contracts.RankSet{Symbol: symbol}
	err = tx.QueryRow(ctx, `
		SELECT job_id, as_of, generated_at, config_hash, evaluated, excluded
		FROM ranking.rank_runs
		WHERE symbol = $1`, symbol).Scan(
		&set.JobID, &set.AsOf, &set.GeneratedAt, &set.ConfigHash, &set.Evaluated, &set.Excluded,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrRankingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run for %s: %w", symbol, err)
	}

	rows, err := tx.Query(ctx, `
		SELECT
			contract_id, job_id, side, strike::text, expiration, dte,
			mark, volume, open_interest, liquidity,
			value_score, raw_momentum, momentum_score, smoothed_score, greeks_score,
			composite_rank, rank_position, run_at
		FROM ranking.contract_ranks
		WHERE symbol = $1
		ORDER BY rank_position`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query ranks for %s: %w", symbol, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rank contracts.CompositeRank
		var side, strike string
		err := rows.Scan(
			&rank.ContractID, &rank.JobID, &side, &strike, &rank.Expiration, &rank.DTE,
			&rank.Mark, &rank.Volume, &rank.OpenInterest, &rank.Liquidity,
			&rank.Scores.Value, &rank.Scores.RawMomentum, &rank.Scores.Momentum, &rank.Scores.SmoothedMomentum, &rank.Scores.Greeks,
			&rank.Composite, &rank.RankPosition, &rank.RunAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rank.Symbol = symbol
		rank.Side = contracts.Side(side)
		if rank.Strike, err = decimal.NewFromString(strike); err != nil {
			return nil, fmt.Errorf("parse strike %q: %w", strike, err)
		}
		set.Ranks = append(set.Ranks, rank)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return set, nil
}

// Store is the Postgres-backed contracts.RankingStore
type Store struct {
	*JobRepository
	*RankRepository
}

// NewStore creates job and rank repositories on one pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		JobRepository:  NewJobRepository(pool),
		RankRepository: NewRankRepository(pool),
	}
}
