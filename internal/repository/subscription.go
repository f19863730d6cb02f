package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
)

// SubscriptionRepository handles database operations for subscriptions.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts a subscription. The unique constraint on user_uid keeps it
// to one row per user; concurrent lazy creation falls back to the winner's
// row via DO NOTHING plus re-read in GetByUser.
func (r *SubscriptionRepository) Create(ctx context.Context, s *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_uid, tier, status, current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_uid) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.UserID, string(s.Tier), s.Status,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.CancelAtPeriodEnd,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetByUser returns the subscription for a user, or nil when absent.
func (r *SubscriptionRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	query := `
		SELECT id, user_uid, tier, status, current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at
		FROM subscriptions WHERE user_uid = $1
	`
	row := r.db.QueryRow(ctx, query, userID)

	var s domain.Subscription
	var tier string
	err := row.Scan(
		&s.ID, &s.UserID, &tier, &s.Status,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	s.Tier = domain.ParseTier(tier)
	return &s, nil
}

// Update persists tier, status, period bounds and the cancel flag.
func (r *SubscriptionRepository) Update(ctx context.Context, s *domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET tier = $1, status = $2, current_period_start = $3, current_period_end = $4,
		    cancel_at_period_end = $5, updated_at = NOW()
		WHERE id = $6
	`
	_, err := r.db.Exec(ctx, query,
		string(s.Tier), s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.CancelAtPeriodEnd, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}
