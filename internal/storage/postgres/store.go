package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapledger/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

const statusID = "tiers"

var tierTables = []string{
	"ledger_balances",
	"ledger_klast",
	"ledger_supply",
	"ledger_reward_pools",
	"ledger_reward_users",
}

// Store persists tier checkpoints in Postgres.
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

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the checkpoint tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveCheckpoint writes the rows and status of cp in one transaction.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *storage.Checkpoint) error {
	if err := s.saveCheckpoint(ctx, cp); err != nil {
		return &storage.PersistenceError{Tier: cp.Tier, Err: err}
	}
	return nil
}

func (s *Store) saveCheckpoint(ctx context.Context, cp *storage.Checkpoint) error {
	status := cp.Status
	status.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	doc, err := json.Marshal(map[string]storage.TierStatus{cp.Tier: status})
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if cp.FullRewrite {
		for _, table := range tierTables {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE tier = $1`, cp.Tier); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}

	batch := &pgx.Batch{}
	queueRows(batch, cp)
	batch.Queue(`
		INSERT INTO ledger_status (id, doc, updated_at)
		VALUES ($1, $2::text::jsonb, now())
		ON CONFLICT (id) DO UPDATE
		SET doc = ledger_status.doc || EXCLUDED.doc, updated_at = now()
	`, statusID, string(doc))

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func queueRows(batch *pgx.Batch, cp *storage.Checkpoint) {
	for _, r := range cp.Balances {
		batch.Queue(`
			INSERT INTO ledger_balances (
				tier, class, tick, address, amount, display, event_cursor, event_height, commit_parent, op_type, updated_at
			) VALUES ($1, $2, $3, $4, CAST($5::text AS NUMERIC), $6, $7, $8, $9, $10, now())
			ON CONFLICT (tier, class, tick, address)
			DO UPDATE SET
				amount = EXCLUDED.amount,
				display = EXCLUDED.display,
				event_cursor = EXCLUDED.event_cursor,
				event_height = EXCLUDED.event_height,
				commit_parent = EXCLUDED.commit_parent,
				op_type = EXCLUDED.op_type,
				updated_at = now()
		`, cp.Tier, r.Class, r.Tick, r.Address, r.Amount, r.Display,
			r.Cursor, int64(r.Height), r.CommitParent, r.OpType)
	}
	for _, r := range cp.KLast {
		batch.Queue(`
			INSERT INTO ledger_klast (
				tier, pair, k_last, event_cursor, event_height, commit_parent, op_type, updated_at
			) VALUES ($1, $2, CAST($3::text AS NUMERIC), $4, $5, $6, $7, now())
			ON CONFLICT (tier, pair)
			DO UPDATE SET
				k_last = EXCLUDED.k_last,
				event_cursor = EXCLUDED.event_cursor,
				event_height = EXCLUDED.event_height,
				commit_parent = EXCLUDED.commit_parent,
				op_type = EXCLUDED.op_type,
				updated_at = now()
		`, cp.Tier, r.Pair, r.KLast, r.Cursor, int64(r.Height), r.CommitParent, r.OpType)
	}
	for _, r := range cp.Supply {
		batch.Queue(`
			INSERT INTO ledger_supply (
				tier, pair, supply, event_cursor, event_height, commit_parent, op_type, updated_at
			) VALUES ($1, $2, CAST($3::text AS NUMERIC), $4, $5, $6, $7, now())
			ON CONFLICT (tier, pair)
			DO UPDATE SET
				supply = EXCLUDED.supply,
				event_cursor = EXCLUDED.event_cursor,
				event_height = EXCLUDED.event_height,
				commit_parent = EXCLUDED.commit_parent,
				op_type = EXCLUDED.op_type,
				updated_at = now()
		`, cp.Tier, r.Pair, r.Supply, r.Cursor, int64(r.Height), r.CommitParent, r.OpType)
	}
	for _, r := range cp.RewardPools {
		batch.Queue(`
			INSERT INTO ledger_reward_pools (
				tier, pair, acc_per_share, last_reward_height, total_locked,
				event_cursor, event_height, commit_parent, op_type, updated_at
			) VALUES ($1, $2, CAST($3::text AS NUMERIC), $4, CAST($5::text AS NUMERIC), $6, $7, $8, $9, now())
			ON CONFLICT (tier, pair)
			DO UPDATE SET
				acc_per_share = EXCLUDED.acc_per_share,
				last_reward_height = EXCLUDED.last_reward_height,
				total_locked = EXCLUDED.total_locked,
				event_cursor = EXCLUDED.event_cursor,
				event_height = EXCLUDED.event_height,
				commit_parent = EXCLUDED.commit_parent,
				op_type = EXCLUDED.op_type,
				updated_at = now()
		`, cp.Tier, r.Pair, r.AccPerShare, int64(r.LastRewardHeight), r.TotalLocked,
			r.Cursor, int64(r.Height), r.CommitParent, r.OpType)
	}
	for _, r := range cp.RewardUsers {
		batch.Queue(`
			INSERT INTO ledger_reward_users (
				tier, pair, address, amount, reward_debt, unclaimed,
				event_cursor, event_height, commit_parent, op_type, updated_at
			) VALUES ($1, $2, $3, CAST($4::text AS NUMERIC), CAST($5::text AS NUMERIC), CAST($6::text AS NUMERIC),
				$7, $8, $9, $10, now())
			ON CONFLICT (tier, pair, address)
			DO UPDATE SET
				amount = EXCLUDED.amount,
				reward_debt = EXCLUDED.reward_debt,
				unclaimed = EXCLUDED.unclaimed,
				event_cursor = EXCLUDED.event_cursor,
				event_height = EXCLUDED.event_height,
				commit_parent = EXCLUDED.commit_parent,
				op_type = EXCLUDED.op_type,
				updated_at = now()
		`, cp.Tier, r.Pair, r.Address, r.Amount, r.RewardDebt, r.Unclaimed,
			r.Cursor, int64(r.Height), r.CommitParent, r.OpType)
	}
}

// LoadCheckpoint returns every durable row of tier, or nil if the tier has
// never been checkpointed.
func (s *Store) LoadCheckpoint(ctx context.Context, tier string) (*storage.Checkpoint, error) {
	var raw []byte
	row := s.pool.QueryRow(ctx, `SELECT doc -> $2 FROM ledger_status WHERE id = $1`, statusID, tier)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load status: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	cp := &storage.Checkpoint{Tier: tier}
	if err := json.Unmarshal(raw, &cp.Status); err != nil {
		return nil, fmt.Errorf("parse status: %w", err)
	}

	var err error
	if cp.Balances, err = loadRows(ctx, s.pool, `
		SELECT class, tick, address, amount::text, display, event_cursor, event_height, commit_parent, op_type
		FROM ledger_balances WHERE tier = $1 ORDER BY class, tick, address
	`, tier, func(rows pgx.Rows) (storage.BalanceRow, error) {
		var r storage.BalanceRow
		var height int64
		err := rows.Scan(&r.Class, &r.Tick, &r.Address, &r.Amount, &r.Display, &r.Cursor, &height, &r.CommitParent, &r.OpType)
		r.Height = uint32(height)
		return r, err
	}); err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}

	if cp.KLast, err = loadRows(ctx, s.pool, `
		SELECT pair, k_last::text, event_cursor, event_height, commit_parent, op_type
		FROM ledger_klast WHERE tier = $1 ORDER BY pair
	`, tier, func(rows pgx.Rows) (storage.KLastRow, error) {
		var r storage.KLastRow
		var height int64
		err := rows.Scan(&r.Pair, &r.KLast, &r.Cursor, &height, &r.CommitParent, &r.OpType)
		r.Height = uint32(height)
		return r, err
	}); err != nil {
		return nil, fmt.Errorf("load klast: %w", err)
	}

	if cp.Supply, err = loadRows(ctx, s.pool, `
		SELECT pair, supply::text, event_cursor, event_height, commit_parent, op_type
		FROM ledger_supply WHERE tier = $1 ORDER BY pair
	`, tier, func(rows pgx.Rows) (storage.SupplyRow, error) {
		var r storage.SupplyRow
		var height int64
		err := rows.Scan(&r.Pair, &r.Supply, &r.Cursor, &height, &r.CommitParent, &r.OpType)
		r.Height = uint32(height)
		return r, err
	}); err != nil {
		return nil, fmt.Errorf("load supply: %w", err)
	}

	if cp.RewardPools, err = loadRows(ctx, s.pool, `
		SELECT pair, acc_per_share::text, last_reward_height, total_locked::text,
			event_cursor, event_height, commit_parent, op_type
		FROM ledger_reward_pools WHERE tier = $1 ORDER BY pair
	`, tier, func(rows pgx.Rows) (storage.RewardPoolRow, error) {
		var r storage.RewardPoolRow
		var last, height int64
		err := rows.Scan(&r.Pair, &r.AccPerShare, &last, &r.TotalLocked, &r.Cursor, &height, &r.CommitParent, &r.OpType)
		r.LastRewardHeight = uint32(last)
		r.Height = uint32(height)
		return r, err
	}); err != nil {
		return nil, fmt.Errorf("load reward pools: %w", err)
	}

	if cp.RewardUsers, err = loadRows(ctx, s.pool, `
		SELECT pair, address, amount::text, reward_debt::text, unclaimed::text,
			event_cursor, event_height, commit_parent, op_type
		FROM ledger_reward_users WHERE tier = $1 ORDER BY pair, address
	`, tier, func(rows pgx.Rows) (storage.RewardUserRow, error) {
		var r storage.RewardUserRow
		var height int64
		err := rows.Scan(&r.Pair, &r.Address, &r.Amount, &r.RewardDebt, &r.Unclaimed, &r.Cursor, &height, &r.CommitParent, &r.OpType)
		r.Height = uint32(height)
		return r, err
	}); err != nil {
		return nil, fmt.Errorf("load reward users: %w", err)
	}

	return cp, nil
}

func loadRows[T any](ctx context.Context, pool *pgxpool.Pool, query, tier string, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := pool.Query(ctx, query, tier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
