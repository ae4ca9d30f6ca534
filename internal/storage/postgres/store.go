package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammclient/internal/model"
)

// Store provides Postgres persistence for the submission journal and the
// pool registry.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Exec runs a statement, e.g. a migration file.
func (s *Store) Exec(ctx context.Context, sql string) error {
	_, err := s.pool.Exec(ctx, sql)
	return err
}

// UpsertPools inserts or updates static pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		tokens, err := json.Marshal(pool.Tokens)
		if err != nil {
			return fmt.Errorf("marshal pool tokens: %w", err)
		}
		batch.Queue(`
			INSERT INTO pools (
				pool_address, kind, tokens, fee_bps, share_decimals, tick_spacing, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				kind = EXCLUDED.kind,
				tokens = EXCLUDED.tokens,
				fee_bps = EXCLUDED.fee_bps,
				share_decimals = EXCLUDED.share_decimals,
				tick_spacing = EXCLUDED.tick_spacing,
				updated_at = now()
		`,
			pool.Address,
			string(pool.Kind),
			tokens,
			int64(pool.FeeBps),
			int16(pool.ShareDecimals),
			pool.TickSpacing,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Pools returns every registered pool ordered by address. Slot0 is not
// stored.
func (s *Store) Pools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_address, kind, tokens, fee_bps, share_decimals, tick_spacing
		FROM pools ORDER BY pool_address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Pool
	for rows.Next() {
		var (
			pool          model.Pool
			kind          string
			tokens        []byte
			feeBps        int64
			shareDecimals int16
		)
		if err := rows.Scan(&pool.Address, &kind, &tokens, &feeBps, &shareDecimals, &pool.TickSpacing); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(tokens, &pool.Tokens); err != nil {
			return nil, fmt.Errorf("pool %s tokens: %w", pool.Address, err)
		}
		pool.Kind = model.PoolKind(kind)
		pool.FeeBps = uint32(feeBps)
		pool.ShareDecimals = uint8(shareDecimals)
		out = append(out, pool)
	}
	return out, rows.Err()
}

// PutSubmission upserts a submission by hash. The first submitted_at is kept.
func (s *Store) PutSubmission(ctx context.Context, sub model.Submission) error {
	if sub.Hash == "" {
		return fmt.Errorf("submission hash is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions (
			hash, contract, method, status, error_kind, ledger, submitted_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (hash) DO UPDATE SET
			status = EXCLUDED.status,
			error_kind = EXCLUDED.error_kind,
			ledger = EXCLUDED.ledger,
			submitted_at = LEAST(submissions.submitted_at, EXCLUDED.submitted_at),
			updated_at = EXCLUDED.updated_at
	`,
		sub.Hash,
		sub.Contract,
		sub.Method,
		sub.Status,
		sub.ErrorKind,
		int64(sub.Ledger),
		sub.SubmittedAt,
		sub.UpdatedAt,
	)
	return err
}

// PendingSubmissions returns submissions without a terminal outcome, oldest first.
func (s *Store) PendingSubmissions(ctx context.Context) ([]model.Submission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT hash, contract, method, status, error_kind, ledger, submitted_at, updated_at
		FROM submissions
		WHERE status NOT IN ($1, $2)
		ORDER BY submitted_at, hash
	`, model.SubmissionConfirmed, model.SubmissionFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		var (
			sub    model.Submission
			ledger int64
		)
		if err := rows.Scan(&sub.Hash, &sub.Contract, &sub.Method, &sub.Status, &sub.ErrorKind, &ledger, &sub.SubmittedAt, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		sub.Ledger = uint32(ledger)
		out = append(out, sub)
	}
	return out, rows.Err()
}
