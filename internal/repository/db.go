package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the initial schema migration. The partial unique
// index on chat_bindings and the unique nonce hash back the binding
// invariants; the unique triple on user_usage backs lazy period creation.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id         UUID PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			password   TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS expense_groups (
			id              UUID PRIMARY KEY,
			owner_uid       UUID NOT NULL REFERENCES users(id),
			name            TEXT NOT NULL,
			cycle_start_day INT  NOT NULL DEFAULT 1 CHECK (cycle_start_day BETWEEN 1 AND 28),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_expense_groups_owner ON expense_groups(owner_uid);

		CREATE TABLE IF NOT EXISTS group_members (
			group_uid UUID NOT NULL REFERENCES expense_groups(id) ON DELETE CASCADE,
			user_uid  UUID NOT NULL REFERENCES users(id),
			added_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (group_uid, user_uid)
		);

		CREATE TABLE IF NOT EXISTS subscriptions (
			id                   UUID PRIMARY KEY,
			user_uid             UUID NOT NULL UNIQUE REFERENCES users(id),
			tier                 TEXT NOT NULL DEFAULT 'free',
			status               TEXT NOT NULL DEFAULT 'active',
			current_period_start TIMESTAMPTZ,
			current_period_end   TIMESTAMPTZ,
			cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS user_usage (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_uid      UUID NOT NULL REFERENCES users(id),
			period_start  DATE NOT NULL,
			period_end    DATE NOT NULL,
			groups_count  INT  NOT NULL DEFAULT 0,
			expense_count INT  NOT NULL DEFAULT 0,
			member_count  INT  NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_uid, period_start, period_end)
		);

		CREATE TABLE IF NOT EXISTS chat_bind_requests (
			id         UUID PRIMARY KEY,
			platform   TEXT NOT NULL,
			chat_id    TEXT NOT NULL,
			nonce_hash TEXT NOT NULL UNIQUE,
			user_uid   UUID REFERENCES users(id),
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS chat_bindings (
			id         UUID PRIMARY KEY,
			group_uid  UUID NOT NULL REFERENCES expense_groups(id) ON DELETE CASCADE,
			platform   TEXT NOT NULL,
			chat_id    TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'active',
			bound_by   UUID NOT NULL REFERENCES users(id),
			bound_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			revoked_at TIMESTAMPTZ
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_bindings_one_active
			ON chat_bindings(platform, chat_id) WHERE status = 'active';

		CREATE TABLE IF NOT EXISTS categories (
			id         UUID PRIMARY KEY,
			group_uid  UUID NOT NULL REFERENCES expense_groups(id) ON DELETE CASCADE,
			name       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (group_uid, name)
		);

		CREATE TABLE IF NOT EXISTS budgets (
			id           UUID PRIMARY KEY,
			group_uid    UUID NOT NULL REFERENCES expense_groups(id) ON DELETE CASCADE,
			category_uid UUID NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
			amount       NUMERIC(14,2) NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS expense_entries (
			id           UUID PRIMARY KEY,
			group_uid    UUID NOT NULL REFERENCES expense_groups(id) ON DELETE CASCADE,
			category_uid UUID REFERENCES categories(id) ON DELETE SET NULL,
			created_by   UUID NOT NULL REFERENCES users(id),
			amount       NUMERIC(14,2) NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			spent_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_expense_entries_group ON expense_entries(group_uid, spent_at);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
