package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
)

// UsageRepository maintains per-user, per-period resource counters. The
// check-and-increment contract is a single guarded UPDATE so two concurrent
// creations can never both pass a ceiling only one should have passed.
type UsageRepository struct {
	db *pgxpool.Pool
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

func counterColumn(kind domain.ResourceKind) (string, error) {
	switch kind {
	case domain.ResourceGroups:
		return "groups_count", nil
	case domain.ResourceExpenses:
		return "expense_count", nil
	case domain.ResourceMembers:
		return "member_count", nil
	default:
		return "", fmt.Errorf("resource kind %q has no usage counter", kind)
	}
}

// Ensure lazily creates the zeroed record for a period. Safe to call
// concurrently; the unique triple makes the insert a no-op for losers.
func (r *UsageRepository) Ensure(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_usage (user_uid, period_start, period_end)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_uid, period_start, period_end) DO NOTHING
	`, userID, periodStart, periodEnd)
	if err != nil {
		return fmt.Errorf("failed to ensure usage record: %w", err)
	}
	return nil
}

// Get returns the record for one period, or nil when absent.
func (r *UsageRepository) Get(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time) (*domain.UsageRecord, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_uid, period_start, period_end, groups_count, expense_count, member_count, created_at, updated_at
		FROM user_usage
		WHERE user_uid = $1 AND period_start = $2 AND period_end = $3
	`, userID, periodStart, periodEnd)

	var u domain.UsageRecord
	err := row.Scan(
		&u.ID, &u.UserID, &u.PeriodStart, &u.PeriodEnd,
		&u.GroupsCount, &u.ExpenseCount, &u.MemberCount,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get usage record: %w", err)
	}
	return &u, nil
}

// IncrementWithinLimit atomically adds delta to a counter only when the new
// value stays within the ceiling, returning the new value and whether the
// increment was applied. The record for the period must already exist.
func (r *UsageRepository) IncrementWithinLimit(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time, kind domain.ResourceKind, delta int, limit domain.Limit) (int, bool, error) {
	col, err := counterColumn(kind)
	if err != nil {
		return 0, false, err
	}

	query := fmt.Sprintf(`
		UPDATE user_usage
		SET %[1]s = %[1]s + $4, updated_at = NOW()
		WHERE user_uid = $1 AND period_start = $2 AND period_end = $3
		  AND ($5 OR %[1]s + $4 <= $6)
		RETURNING %[1]s
	`, col)

	var newValue int
	err = r.db.QueryRow(ctx, query, userID, periodStart, periodEnd, delta, limit.Unlimited, limit.N).Scan(&newValue)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Guard rejected the update: report the untouched counter.
			current, gerr := r.Get(ctx, userID, periodStart, periodEnd)
			if gerr != nil {
				return 0, false, gerr
			}
			if current == nil {
				return 0, false, fmt.Errorf("usage record missing for user %s", userID)
			}
			return current.CounterFor(kind), false, nil
		}
		return 0, false, fmt.Errorf("failed to increment usage: %w", err)
	}
	return newValue, true, nil
}

// Decrement subtracts delta from a counter, clamping at zero. Used when a
// tracked resource is removed within its period.
func (r *UsageRepository) Decrement(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time, kind domain.ResourceKind, delta int) error {
	col, err := counterColumn(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE user_usage
		SET %[1]s = GREATEST(%[1]s - $4, 0), updated_at = NOW()
		WHERE user_uid = $1 AND period_start = $2 AND period_end = $3
	`, col)
	_, err = r.db.Exec(ctx, query, userID, periodStart, periodEnd, delta)
	if err != nil {
		return fmt.Errorf("failed to decrement usage: %w", err)
	}
	return nil
}

// Recalculate recounts a user's tracked resources from source tables and
// overwrites the period's counters. Reconciliation helper only; enforcement
// goes through IncrementWithinLimit.
func (r *UsageRepository) Recalculate(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time) (*domain.UsageRecord, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO user_usage (user_uid, period_start, period_end, groups_count, expense_count, member_count)
		SELECT $1, $2, $3,
			(SELECT COUNT(*) FROM expense_groups WHERE owner_uid = $1),
			(SELECT COUNT(*) FROM expense_entries e
				JOIN group_members m ON m.group_uid = e.group_uid
				WHERE m.user_uid = $1 AND e.created_at >= $2 AND e.created_at < $3),
			(SELECT COUNT(DISTINCT m2.user_uid) FROM group_members m1
				JOIN group_members m2 ON m1.group_uid = m2.group_uid
				WHERE m1.user_uid = $1)
		ON CONFLICT (user_uid, period_start, period_end) DO UPDATE SET
			groups_count = EXCLUDED.groups_count,
			expense_count = EXCLUDED.expense_count,
			member_count = EXCLUDED.member_count,
			updated_at = NOW()
		RETURNING id, user_uid, period_start, period_end, groups_count, expense_count, member_count, created_at, updated_at
	`, userID, periodStart, periodEnd)

	var u domain.UsageRecord
	err := row.Scan(
		&u.ID, &u.UserID, &u.PeriodStart, &u.PeriodEnd,
		&u.GroupsCount, &u.ExpenseCount, &u.MemberCount,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to recalculate usage: %w", err)
	}
	return &u, nil
}
