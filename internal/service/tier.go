package service

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
)

// SubscriptionStore is the persistence contract for subscriptions.
type SubscriptionStore interface {
	Create(ctx context.Context, s *domain.Subscription) error
	GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)
	Update(ctx context.Context, s *domain.Subscription) error
}

// UsageStore is the persistence contract for usage counters. The
// check-and-update must be atomic at the store: IncrementWithinLimit applies
// the delta only when the new value stays within the ceiling and reports
// which way it went.
type UsageStore interface {
	Ensure(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time) error
	Get(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time) (*domain.UsageRecord, error)
	IncrementWithinLimit(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time, kind domain.ResourceKind, delta int, limit domain.Limit) (int, bool, error)
	Decrement(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time, kind domain.ResourceKind, delta int) error
}

// TierDecision is the outcome of a successful tier check. Approaching is
// advisory (at or past 80% of the ceiling) and never blocks.
type TierDecision struct {
	Kind        domain.ResourceKind `json:"kind"`
	Current     int                 `json:"current"`
	Limit       int                 `json:"limit"`
	Unlimited   bool                `json:"unlimited"`
	Approaching bool                `json:"approaching"`
}

// TierService maps subscription tiers to ceilings and gates resource
// creation against per-period usage counters.
type TierService struct {
	subs  SubscriptionStore
	usage UsageStore
	now   func() time.Time
}

// NewTierService creates a new TierService.
func NewTierService(subs SubscriptionStore, usage UsageStore) *TierService {
	return &TierService{subs: subs, usage: usage, now: time.Now}
}

// EnsureSubscription returns the user's subscription, lazily creating an
// active free-tier row on first contact. Concurrent first contacts are safe:
// the store keeps one row per user and the loser re-reads the winner's row.
func (s *TierService) EnsureSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	sub, err := s.subs.GetByUser(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load subscription", err)
	}
	if sub != nil {
		return sub, nil
	}

	now := s.now()
	fresh := &domain.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		Tier:      domain.TierFree,
		Status:    domain.SubscriptionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.subs.Create(ctx, fresh); err != nil {
		return nil, domain.ErrInternal("failed to create subscription", err)
	}
	sub, err = s.subs.GetByUser(ctx, userID)
	if err != nil || sub == nil {
		return fresh, nil
	}
	return sub, nil
}

// usableLimits resolves the tier ceilings after checking the subscription
// still grants them.
func (s *TierService) usableLimits(ctx context.Context, userID uuid.UUID) (domain.TierLimits, error) {
	sub, err := s.EnsureSubscription(ctx, userID)
	if err != nil {
		return domain.TierLimits{}, err
	}
	if !sub.Usable(s.now()) {
		return domain.TierLimits{}, &domain.AppError{
			Code:    http.StatusPaymentRequired,
			Message: "subscription is not active, please renew",
		}
	}
	return sub.Tier.Limits(), nil
}

// Check evaluates a requested increment against current usage without
// applying it. Advisory only; creation paths must use CheckAndIncrement.
func (s *TierService) Check(ctx context.Context, userID uuid.UUID, cycleStartDay int, kind domain.ResourceKind, delta int) (*TierDecision, error) {
	limits, err := s.usableLimits(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := limits.For(kind)

	start, end := domain.PeriodFor(s.now(), cycleStartDay)
	record, err := s.usage.Get(ctx, userID, start, end)
	if err != nil {
		return nil, domain.ErrInternal("failed to load usage", err)
	}
	current := 0
	if record != nil {
		current = record.CounterFor(kind)
	}

	if !limit.Allows(current, delta) {
		return nil, domain.ErrLimitExceeded(kind, current, limit.N)
	}
	return &TierDecision{
		Kind:        kind,
		Current:     current,
		Limit:       limit.N,
		Unlimited:   limit.Unlimited,
		Approaching: limit.NearlyReached(current + delta),
	}, nil
}

// CheckAndIncrement atomically checks the ceiling and applies the increment
// for a usage-tracked kind. The period record is created lazily, rolling
// counters over to zero when a new period starts.
func (s *TierService) CheckAndIncrement(ctx context.Context, userID uuid.UUID, cycleStartDay int, kind domain.ResourceKind, delta int) (*TierDecision, error) {
	limits, err := s.usableLimits(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := limits.For(kind)

	start, end := domain.PeriodFor(s.now(), cycleStartDay)
	if err := s.usage.Ensure(ctx, userID, start, end); err != nil {
		return nil, domain.ErrInternal("failed to ensure usage record", err)
	}

	newValue, ok, err := s.usage.IncrementWithinLimit(ctx, userID, start, end, kind, delta, limit)
	if err != nil {
		return nil, domain.ErrInternal("failed to update usage", err)
	}
	if !ok {
		return nil, domain.ErrLimitExceeded(kind, newValue, limit.N)
	}
	return &TierDecision{
		Kind:        kind,
		Current:     newValue,
		Limit:       limit.N,
		Unlimited:   limit.Unlimited,
		Approaching: limit.NearlyReached(newValue),
	}, nil
}

// Track records an increment for a counter whose ceiling is enforced
// elsewhere (member totals, gated per group by CheckCount).
func (s *TierService) Track(ctx context.Context, userID uuid.UUID, cycleStartDay int, kind domain.ResourceKind, delta int) error {
	start, end := domain.PeriodFor(s.now(), cycleStartDay)
	if err := s.usage.Ensure(ctx, userID, start, end); err != nil {
		return domain.ErrInternal("failed to ensure usage record", err)
	}
	if _, _, err := s.usage.IncrementWithinLimit(ctx, userID, start, end, kind, delta, domain.Unbounded()); err != nil {
		return domain.ErrInternal("failed to update usage", err)
	}
	return nil
}

// Release undoes a tracked increment when the resource is removed, or when
// a creation failed after its quota was taken.
func (s *TierService) Release(ctx context.Context, userID uuid.UUID, cycleStartDay int, kind domain.ResourceKind, delta int) error {
	start, end := domain.PeriodFor(s.now(), cycleStartDay)
	if err := s.usage.Decrement(ctx, userID, start, end, kind, delta); err != nil {
		return domain.ErrInternal("failed to release usage", err)
	}
	return nil
}

// CheckCount gates count-based kinds (categories and budgets per group)
// where the current count comes from the rows themselves.
func (s *TierService) CheckCount(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind, current, delta int) (*TierDecision, error) {
	limits, err := s.usableLimits(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := limits.For(kind)
	if !limit.Allows(current, delta) {
		return nil, domain.ErrLimitExceeded(kind, current, limit.N)
	}
	return &TierDecision{
		Kind:        kind,
		Current:     current + delta,
		Limit:       limit.N,
		Unlimited:   limit.Unlimited,
		Approaching: limit.NearlyReached(current + delta),
	}, nil
}

// Usage returns the current period's counters for a user.
func (s *TierService) Usage(ctx context.Context, userID uuid.UUID, cycleStartDay int) (*domain.UsageRecord, error) {
	start, end := domain.PeriodFor(s.now(), cycleStartDay)
	record, err := s.usage.Get(ctx, userID, start, end)
	if err != nil {
		return nil, domain.ErrInternal("failed to load usage", err)
	}
	if record == nil {
		return &domain.UsageRecord{UserID: userID, PeriodStart: start, PeriodEnd: end}, nil
	}
	return record, nil
}

// ChangeTier switches the subscription tier, resetting the billing period.
// Payment is out of scope; callers gate access to this.
func (s *TierService) ChangeTier(ctx context.Context, userID uuid.UUID, tier domain.Tier) (*domain.Subscription, error) {
	sub, err := s.EnsureSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	end := now.AddDate(0, 1, 0)
	sub.Tier = tier
	sub.Status = domain.SubscriptionActive
	sub.CurrentPeriodStart = &now
	sub.CurrentPeriodEnd = &end
	sub.CancelAtPeriodEnd = false
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, domain.ErrInternal("failed to update subscription", err)
	}
	return sub, nil
}

// SetCancelAtPeriodEnd flips the cancellation flag.
func (s *TierService) SetCancelAtPeriodEnd(ctx context.Context, userID uuid.UUID, cancel bool) (*domain.Subscription, error) {
	sub, err := s.EnsureSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub.CancelAtPeriodEnd = cancel
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, domain.ErrInternal("failed to update subscription", err)
	}
	return sub, nil
}
