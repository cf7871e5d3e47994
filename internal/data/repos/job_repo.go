package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/optionrank/internal/contracts"
)

// JobRepository implements contracts.JobStore on ranking.jobs
// ⭐ SSOT: 랭킹 작업 큐 저장/전이는 여기서만
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `
	id, symbol, priority, status, retry_count, max_retries,
	last_error, error_kind, claimed_by,
	run_after, created_at, started_at, completed_at, updated_at`

// failureSet applies one failure to the retry budget. p is the placeholder
// index of the backoff seconds; the error text and kind follow it.
// SET expressions see the pre-update row, so retry_count + 1 is the new count.
func failureSet(p int) string {
	return fmt.Sprintf(`
	retry_count  = retry_count + 1,
	status       = CASE WHEN retry_count + 1 < max_retries THEN 'pending' ELSE 'failed' END,
	run_after    = CASE WHEN retry_count + 1 < max_retries THEN NOW() + $%[1]d::float8 * INTERVAL '1 second' ELSE run_after END,
	completed_at = CASE WHEN retry_count + 1 < max_retries THEN NULL ELSE NOW() END,
	last_error   = $%[2]d,
	error_kind   = $%[3]d,
	claimed_by   = '',
	updated_at   = NOW()`, p, p+1, p+2)
}

const positionQuery = `
	SELECT CASE WHEN j.status <> 'pending' THEN 0 ELSE (
		SELECT COUNT(*)
		FROM ranking.jobs o
		WHERE o.status = 'pending'
		  AND o.id <> j.id
		  AND (o.priority > j.priority
		       OR (o.priority = j.priority AND (o.created_at < j.created_at
		           OR (o.created_at = j.created_at AND o.id < j.id))))
	) END
	FROM ranking.jobs j
	WHERE j.id = $1`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*contracts.RankingJob, error) {
	var j contracts.RankingJob
	var status, kind string
	err := row.Scan(
		&j.ID, &j.Symbol, &j.Priority, &status, &j.RetryCount, &j.MaxRetries,
		&j.LastError, &kind, &j.ClaimedBy,
		&j.RunAfter, &j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = contracts.JobStatus(status)
	j.ErrorKind = contracts.ErrorKind(kind)
	return &j, nil
}

// Enqueue returns the active job created within dedupWindow, or inserts a new one.
// Serialized per symbol with a transaction-scoped advisory lock.
func (r *JobRepository) Enqueue(ctx context.Context, symbol string, priority, maxRetries int, dedupWindow time.Duration) (*contracts.EnqueueResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, symbol); err != nil {
		return nil, fmt.Errorf("lock symbol %s: %w", symbol, err)
	}

	result := &contracts.EnqueueResult{}

	existing, err := scanJob(tx.QueryRow(ctx, `
		SELECT`+jobColumns+`
		FROM ranking.jobs
		WHERE symbol = $1
		  AND status IN ('pending', 'running')
		  AND created_at > NOW() - $2::float8 * INTERVAL '1 second'
		ORDER BY created_at DESC
		LIMIT 1`, symbol, dedupWindow.Seconds()))
	switch {
	case err == nil:
		result.Job = existing
		result.Deduplicated = true
	case errors.Is(err, pgx.ErrNoRows):
		job, err := scanJob(tx.QueryRow(ctx, `
			INSERT INTO ranking.jobs (id, symbol, priority, status, max_retries, run_after, created_at, updated_at)
			VALUES ($1, $2, $3, 'pending', $4, NOW(), NOW(), NOW())
			RETURNING`+jobColumns, uuid.New(), symbol, priority, maxRetries))
		if err != nil {
			return nil, fmt.Errorf("insert job for %s: %w", symbol, err)
		}
		result.Job = job
	default:
		return nil, fmt.Errorf("find active job for %s: %w", symbol, err)
	}

	if err := tx.QueryRow(ctx, positionQuery, result.Job.ID).Scan(&result.QueuePosition); err != nil {
		return nil, fmt.Errorf("queue position: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return result, nil
}

// ClaimNext is a single UPDATE over a SKIP LOCKED sub-select, so concurrent
// workers never observe the same pending row.
func (r *JobRepository) ClaimNext(ctx context.Context, token string) (*contracts.RankingJob, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `
		UPDATE ranking.jobs
		SET status = 'running', claimed_by = $1, started_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT id
			FROM ranking.jobs
			WHERE status = 'pending' AND run_after <= NOW()
			ORDER BY priority DESC, created_at ASC, id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING`+jobColumns, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNoPendingJob
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// Fail records the failure on a job still running under token
func (r *JobRepository) Fail(ctx context.Context, id uuid.UUID, token string, rec contracts.FailureRecord) (*contracts.RankingJob, error) {
	msg := ""
	if rec.Err != nil {
		msg = rec.Err.Error()
	}

	job, err := scanJob(r.pool.QueryRow(ctx, `
		UPDATE ranking.jobs
		SET`+failureSet(3)+`
		WHERE id = $1 AND status = 'running' AND claimed_by = $2
		RETURNING`+jobColumns,
		id, token, rec.Backoff.Seconds(), msg, string(rec.Kind)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.lostOrMissing(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fail job %s: %w", id, err)
	}
	return job, nil
}

func (r *JobRepository) lostOrMissing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ranking.jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check job %s: %w", id, err)
	}
	if !exists {
		return contracts.ErrJobNotFound
	}
	return contracts.ErrJobLost
}

// ReclaimStale fails running jobs started before cutoff as timeouts
func (r *JobRepository) ReclaimStale(ctx context.Context, cutoff time.Time, backoff time.Duration) ([]*contracts.RankingJob, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE ranking.jobs
		SET`+failureSet(2)+`
		WHERE status = 'running' AND started_at < $1
		RETURNING`+jobColumns,
		cutoff, backoff.Seconds(), contracts.ErrJobTimeout.Error(), string(contracts.ErrorKindTimeout))
	if err != nil {
		return nil, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*contracts.RankingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return jobs, nil
}

// Get returns a job by id
func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*contracts.RankingJob, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `SELECT`+jobColumns+` FROM ranking.jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// QueuePosition counts pending jobs claimed before job; 0 when nothing is ahead
// or job is no longer pending
func (r *JobRepository) QueuePosition(ctx context.Context, job *contracts.RankingJob) (int, error) {
	var pos int
	err := r.pool.QueryRow(ctx, positionQuery, job.ID).Scan(&pos)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, contracts.ErrJobNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("queue position: %w", err)
	}
	return pos, nil
}

// Stats returns queue statistics
func (r *JobRepository) Stats(ctx context.Context) (*contracts.QueueStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') as pending,
			COUNT(*) FILTER (WHERE status = 'running') as running,
			COUNT(*) FILTER (WHERE status = 'completed') as completed,
			COUNT(*) FILTER (WHERE status = 'failed') as failed
		FROM ranking.jobs
	`

	var stats contracts.QueueStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.Pending,
		&stats.Running,
		&stats.Completed,
		&stats.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}

	return &stats, nil
}

// Prune deletes finished jobs last updated before cutoff
func (r *JobRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM ranking.jobs
		WHERE status IN ('completed', 'failed') AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
