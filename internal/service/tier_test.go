package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
	"github.com/stretchr/testify/require"
)

type memSubscriptionStore struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*domain.Subscription
}

func newMemSubscriptionStore() *memSubscriptionStore {
	return &memSubscriptionStore{subs: make(map[uuid.UUID]*domain.Subscription)}
}

func (s *memSubscriptionStore) Create(_ context.Context, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// One row per user; concurrent creates keep the first.
	if _, ok := s.subs[sub.UserID]; ok {
		return nil
	}
	cp := *sub
	s.subs[sub.UserID] = &cp
	return nil
}

func (s *memSubscriptionStore) GetByUser(_ context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[userID]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (s *memSubscriptionStore) Update(_ context.Context, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subs[sub.UserID] = &cp
	return nil
}

type usageKey struct {
	user  uuid.UUID
	start time.Time
}

type memUsageStore struct {
	mu      sync.Mutex
	records map[usageKey]*domain.UsageRecord
}

func newMemUsageStore() *memUsageStore {
	return &memUsageStore{records: make(map[usageKey]*domain.UsageRecord)}
}

func (s *memUsageStore) Ensure(_ context.Context, userID uuid.UUID, periodStart, periodEnd time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := usageKey{user: userID, start: periodStart}
	if _, ok := s.records[key]; !ok {
		s.records[key] = &domain.UsageRecord{
			ID:          uuid.New(),
			UserID:      userID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		}
	}
	return nil
}

func (s *memUsageStore) Get(_ context.Context, userID uuid.UUID, periodStart, _ time.Time) (*domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[usageKey{user: userID, start: periodStart}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memUsageStore) counter(rec *domain.UsageRecord, kind domain.ResourceKind) *int {
	switch kind {
	case domain.ResourceGroups:
		return &rec.GroupsCount
	case domain.ResourceExpenses:
		return &rec.ExpenseCount
	case domain.ResourceMembers:
		return &rec.MemberCount
	default:
		return nil
	}
}

func (s *memUsageStore) IncrementWithinLimit(_ context.Context, userID uuid.UUID, periodStart, _ time.Time, kind domain.ResourceKind, delta int, limit domain.Limit) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[usageKey{user: userID, start: periodStart}]
	if !ok {
		return 0, false, nil
	}
	c := s.counter(rec, kind)
	if c == nil {
		return 0, false, nil
	}
	if !limit.Allows(*c, delta) {
		return *c, false, nil
	}
	*c += delta
	return *c, true, nil
}

func (s *memUsageStore) Decrement(_ context.Context, userID uuid.UUID, periodStart, _ time.Time, kind domain.ResourceKind, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[usageKey{user: userID, start: periodStart}]
	if !ok {
		return nil
	}
	if c := s.counter(rec, kind); c != nil {
		*c -= delta
		if *c < 0 {
			*c = 0
		}
	}
	return nil
}

func newTestTierService() (*TierService, *memSubscriptionStore, *memUsageStore) {
	subs := newMemSubscriptionStore()
	usage := newMemUsageStore()
	return NewTierService(subs, usage), subs, usage
}

func TestEnsureSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("creates free active row on first contact", func(t *testing.T) {
		svc, _, _ := newTestTierService()
		user := uuid.New()
		sub, err := svc.EnsureSubscription(ctx, user)
		require.NoError(t, err)
		require.Equal(t, domain.TierFree, sub.Tier)
		require.Equal(t, domain.SubscriptionActive, sub.Status)
	})

	t.Run("returns existing row", func(t *testing.T) {
		svc, subs, _ := newTestTierService()
		user := uuid.New()
		require.NoError(t, subs.Create(ctx, &domain.Subscription{
			ID: uuid.New(), UserID: user, Tier: domain.TierTeam, Status: domain.SubscriptionActive,
		}))
		sub, err := svc.EnsureSubscription(ctx, user)
		require.NoError(t, err)
		require.Equal(t, domain.TierTeam, sub.Tier)
	})

	t.Run("concurrent first contacts settle on one row", func(t *testing.T) {
		svc, subs, _ := newTestTierService()
		user := uuid.New()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.EnsureSubscription(ctx, user)
				require.NoError(t, err)
			}()
		}
		wg.Wait()
		subs.mu.Lock()
		require.Len(t, subs.subs, 1)
		subs.mu.Unlock()
	})
}

func TestCheckAndIncrement(t *testing.T) {
	ctx := context.Background()

	t.Run("free tier allows first group then denies", func(t *testing.T) {
		svc, _, _ := newTestTierService()
		user := uuid.New()

		decision, err := svc.CheckAndIncrement(ctx, user, 1, domain.ResourceGroups, 1)
		require.NoError(t, err)
		require.Equal(t, 1, decision.Current)
		require.True(t, decision.Approaching)

		_, err = svc.CheckAndIncrement(ctx, user, 1, domain.ResourceGroups, 1)
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusPaymentRequired, appErr.Code)
		require.Equal(t, domain.ReasonLimitExceeded, appErr.Reason)
	})

	t.Run("concurrent increments never pass the ceiling", func(t *testing.T) {
		svc, subs, usage := newTestTierService()
		user := uuid.New()
		require.NoError(t, subs.Create(ctx, &domain.Subscription{
			ID: uuid.New(), UserID: user, Tier: domain.TierFree, Status: domain.SubscriptionActive,
		}))

		const racers = 20 // free tier allows 100 expenses
		var wg sync.WaitGroup
		granted := make([]bool, racers)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := svc.CheckAndIncrement(ctx, user, 1, domain.ResourceExpenses, 10)
				granted[i] = err == nil
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, ok := range granted {
			if ok {
				wins++
			}
		}
		require.Equal(t, 10, wins)

		start, _ := domain.PeriodFor(time.Now(), 1)
		rec, err := usage.Get(ctx, user, start, time.Time{})
		require.NoError(t, err)
		require.Equal(t, 100, rec.ExpenseCount)
	})

	t.Run("enterprise is never limited", func(t *testing.T) {
		svc, subs, _ := newTestTierService()
		user := uuid.New()
		require.NoError(t, subs.Create(ctx, &domain.Subscription{
			ID: uuid.New(), UserID: user, Tier: domain.TierEnterprise, Status: domain.SubscriptionActive,
		}))

		for i := 0; i < 50; i++ {
			decision, err := svc.CheckAndIncrement(ctx, user, 1, domain.ResourceGroups, 1)
			require.NoError(t, err)
			require.True(t, decision.Unlimited)
			require.False(t, decision.Approaching)
		}
	})

	t.Run("lapsed subscription blocks with payment required", func(t *testing.T) {
		svc, subs, _ := newTestTierService()
		user := uuid.New()
		past := time.Now().AddDate(0, -1, 0)
		require.NoError(t, subs.Create(ctx, &domain.Subscription{
			ID: uuid.New(), UserID: user, Tier: domain.TierTeam,
			Status: domain.SubscriptionActive, CurrentPeriodEnd: &past,
		}))

		_, err := svc.CheckAndIncrement(ctx, user, 1, domain.ResourceGroups, 1)
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusPaymentRequired, appErr.Code)
	})

	t.Run("release then increment succeeds again", func(t *testing.T) {
		svc, _, _ := newTestTierService()
		user := uuid.New()

		_, err := svc.CheckAndIncrement(ctx, user, 1, domain.ResourceGroups, 1)
		require.NoError(t, err)
		_, err = svc.CheckAndIncrement(ctx, user, 1, domain.ResourceGroups, 1)
		require.Error(t, err)

		require.NoError(t, svc.Release(ctx, user, 1, domain.ResourceGroups, 1))
		_, err = svc.CheckAndIncrement(ctx, user, 1, domain.ResourceGroups, 1)
		require.NoError(t, err)
	})
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestTierService()
	user := uuid.New()

	decision, err := svc.Check(ctx, user, 1, domain.ResourceExpenses, 1)
	require.NoError(t, err)
	require.Equal(t, 0, decision.Current)
	require.Equal(t, 100, decision.Limit)

	// Check must not consume quota.
	decision, err = svc.Check(ctx, user, 1, domain.ResourceExpenses, 1)
	require.NoError(t, err)
	require.Equal(t, 0, decision.Current)
}

func TestCheckCount(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestTierService()
	user := uuid.New()

	t.Run("within ceiling", func(t *testing.T) {
		decision, err := svc.CheckCount(ctx, user, domain.ResourceCategories, 3, 1)
		require.NoError(t, err)
		require.Equal(t, 4, decision.Current)
		require.True(t, decision.Approaching)
	})

	t.Run("at ceiling", func(t *testing.T) {
		_, err := svc.CheckCount(ctx, user, domain.ResourceCategories, 5, 1)
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusPaymentRequired, appErr.Code)
	})
}

func TestChangeTier(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestTierService()
	user := uuid.New()

	sub, err := svc.ChangeTier(ctx, user, domain.TierFamily)
	require.NoError(t, err)
	require.Equal(t, domain.TierFamily, sub.Tier)
	require.NotNil(t, sub.CurrentPeriodStart)
	require.NotNil(t, sub.CurrentPeriodEnd)
	require.False(t, sub.CancelAtPeriodEnd)

	// Family tier now allows three groups.
	for i := 0; i < 3; i++ {
		_, err := svc.CheckAndIncrement(ctx, user, 1, domain.ResourceGroups, 1)
		require.NoError(t, err)
	}
	_, err = svc.CheckAndIncrement(ctx, user, 1, domain.ResourceGroups, 1)
	require.Error(t, err)

	sub, err = svc.SetCancelAtPeriodEnd(ctx, user, true)
	require.NoError(t, err)
	require.True(t, sub.CancelAtPeriodEnd)
}

func TestUsage(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestTierService()
	user := uuid.New()

	t.Run("empty period yields zero record", func(t *testing.T) {
		rec, err := svc.Usage(ctx, user, 1)
		require.NoError(t, err)
		require.Equal(t, 0, rec.GroupsCount)
		require.Equal(t, user, rec.UserID)
	})

	t.Run("tracked members show up", func(t *testing.T) {
		require.NoError(t, svc.Track(ctx, user, 1, domain.ResourceMembers, 2))
		rec, err := svc.Usage(ctx, user, 1)
		require.NoError(t, err)
		require.Equal(t, 2, rec.MemberCount)
	})
}
