package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// isBindingRace reports whether err is one of the ways a losing concurrent
// confirm surfaces: a unique violation on the active-binding index, a
// serialization or deadlock failure on any statement in the transaction, or
// a rollback at commit. All of them mean the other confirm won.
func isBindingRace(err error) bool {
	if errors.Is(err, pgx.ErrTxCommitRollback) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation, serializationFailure, deadlockDetected:
			return true
		}
	}
	return false
}

// BindingRepository handles database operations for chat bindings. The
// consume-revoke-insert sequence in Bind runs in one transaction, with the
// partial unique index on active rows backstopping concurrent confirms.
type BindingRepository struct {
	db *pgxpool.Pool
}

// NewBindingRepository creates a new BindingRepository.
func NewBindingRepository(db *pgxpool.Pool) *BindingRepository {
	return &BindingRepository{db: db}
}

const bindingColumns = `id, group_uid, platform, chat_id, status, bound_by, bound_at, revoked_at`

func scanBinding(row pgx.Row) (*domain.ChatBinding, error) {
	var b domain.ChatBinding
	var platform string
	err := row.Scan(&b.ID, &b.GroupID, &platform, &b.ChatID, &b.Status, &b.BoundBy, &b.BoundAt, &b.RevokedAt)
	if err != nil {
		return nil, err
	}
	b.Platform = domain.Platform(platform)
	return &b, nil
}

// Get returns a binding by ID, or nil when absent.
func (r *BindingRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatBinding, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+bindingColumns+` FROM chat_bindings WHERE id = $1`, id)
	b, err := scanBinding(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get binding: %w", err)
	}
	return b, nil
}

// ActiveForChat returns the single active binding for a chat identity, or
// nil when none exists.
func (r *BindingRepository) ActiveForChat(ctx context.Context, platform domain.Platform, chatID string) (*domain.ChatBinding, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+bindingColumns+` FROM chat_bindings WHERE platform = $1 AND chat_id = $2 AND status = 'active'`,
		string(platform), chatID)
	b, err := scanBinding(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active binding: %w", err)
	}
	return b, nil
}

// ListByGroup returns all bindings for a group, newest first.
func (r *BindingRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*domain.ChatBinding, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+bindingColumns+` FROM chat_bindings WHERE group_uid = $1 ORDER BY bound_at DESC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bindings: %w", err)
	}
	defer rows.Close()

	var bindings []*domain.ChatBinding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan binding: %w", err)
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// Bind atomically consumes the bind request, revokes any active binding for
// the same chat identity, and inserts the new active row. A request already
// consumed, or an insert losing the race against a concurrent confirm,
// surfaces as Conflict; the loser leaves no half-applied state because the
// whole sequence rolls back.
func (r *BindingRepository) Bind(ctx context.Context, requestID, groupID, boundBy uuid.UUID) (*domain.ChatBinding, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var platform, chatID string
	err = tx.QueryRow(ctx, `
		DELETE FROM chat_bind_requests WHERE id = $1
		RETURNING platform, chat_id
	`, requestID).Scan(&platform, &chatID)
	if err != nil {
		if err == pgx.ErrNoRows || isBindingRace(err) {
			return nil, domain.ErrConflict("bind request already consumed", domain.ReasonBindingRace)
		}
		return nil, fmt.Errorf("failed to consume bind request: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE chat_bindings SET status = 'revoked', revoked_at = NOW()
		WHERE platform = $1 AND chat_id = $2 AND status = 'active'
	`, platform, chatID)
	if err != nil {
		if isBindingRace(err) {
			return nil, domain.ErrConflict("chat already being bound", domain.ReasonBindingRace)
		}
		return nil, fmt.Errorf("failed to revoke previous binding: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO chat_bindings (id, group_uid, platform, chat_id, status, bound_by)
		VALUES ($1, $2, $3, $4, 'active', $5)
		RETURNING `+bindingColumns,
		uuid.New(), groupID, platform, chatID, boundBy)
	b, err := scanBinding(row)
	if err != nil {
		if isBindingRace(err) {
			return nil, domain.ErrConflict("chat already being bound", domain.ReasonBindingRace)
		}
		return nil, fmt.Errorf("failed to insert binding: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isBindingRace(err) {
			return nil, domain.ErrConflict("chat already being bound", domain.ReasonBindingRace)
		}
		return nil, fmt.Errorf("failed to commit binding: %w", err)
	}
	return b, nil
}

// Revoke marks a binding revoked. Idempotent: revoking an already-revoked
// binding affects zero rows and is a no-op success.
func (r *BindingRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE chat_bindings SET status = 'revoked', revoked_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke binding: %w", err)
	}
	return nil
}
