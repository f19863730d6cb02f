package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tier is a named subscription level.
type Tier string

const (
	TierFree       Tier = "free"
	TierPersonal   Tier = "personal"
	TierFamily     Tier = "family"
	TierTeam       Tier = "team"
	TierEnterprise Tier = "enterprise"
)

// ParseTier maps a stored string onto a tier, defaulting to free.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierPersonal, TierFamily, TierTeam, TierEnterprise:
		return Tier(s)
	default:
		return TierFree
	}
}

// ValidTier reports whether s names a known tier.
func ValidTier(s string) bool {
	switch Tier(s) {
	case TierFree, TierPersonal, TierFamily, TierTeam, TierEnterprise:
		return true
	}
	return false
}

// Subscription statuses.
const (
	SubscriptionActive    = "active"
	SubscriptionInactive  = "inactive"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// Subscription is a user's paid tier. Exactly one row per user.
type Subscription struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"userId"`
	Tier               Tier       `json:"tier"`
	Status             string     `json:"status"`
	CurrentPeriodStart *time.Time `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Usable reports whether the subscription currently grants its tier:
// status must be active and the period, when bounded, not yet over.
func (s *Subscription) Usable(now time.Time) bool {
	if s.Status != SubscriptionActive {
		return false
	}
	if s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.Before(now) {
		return false
	}
	return true
}

// ResourceKind names a tier-gated resource.
type ResourceKind string

const (
	ResourceGroups     ResourceKind = "groups"
	ResourceMembers    ResourceKind = "members_per_group"
	ResourceCategories ResourceKind = "categories_per_group"
	ResourceBudgets    ResourceKind = "budgets_per_group"
	ResourceExpenses   ResourceKind = "expenses_per_period"
)

// AllResourceKinds lists every tier-gated resource.
func AllResourceKinds() []ResourceKind {
	return []ResourceKind{ResourceGroups, ResourceMembers, ResourceCategories, ResourceBudgets, ResourceExpenses}
}

// Limit is a numeric ceiling. Unlimited tiers carry an explicit flag rather
// than a sentinel value.
type Limit struct {
	N         int  `json:"n"`
	Unlimited bool `json:"unlimited"`
}

// Unbounded is the ceiling for unlimited tiers.
func Unbounded() Limit { return Limit{Unlimited: true} }

// Allows reports whether current+delta stays within the ceiling.
func (l Limit) Allows(current, delta int) bool {
	if l.Unlimited {
		return true
	}
	return current+delta <= l.N
}

// NearlyReached reports whether current sits at or past 80% of the ceiling.
func (l Limit) NearlyReached(current int) bool {
	if l.Unlimited {
		return false
	}
	return current*100 >= l.N*80
}

// TierLimits holds the ceilings for one tier.
type TierLimits struct {
	MaxGroups             Limit `json:"maxGroups"`
	MaxMembersPerGroup    Limit `json:"maxMembersPerGroup"`
	MaxCategoriesPerGroup Limit `json:"maxCategoriesPerGroup"`
	MaxBudgetsPerGroup    Limit `json:"maxBudgetsPerGroup"`
	MaxExpensesPerPeriod  Limit `json:"maxExpensesPerPeriod"`
}

// For returns the ceiling for one resource kind.
func (t TierLimits) For(kind ResourceKind) Limit {
	switch kind {
	case ResourceGroups:
		return t.MaxGroups
	case ResourceMembers:
		return t.MaxMembersPerGroup
	case ResourceCategories:
		return t.MaxCategoriesPerGroup
	case ResourceBudgets:
		return t.MaxBudgetsPerGroup
	case ResourceExpenses:
		return t.MaxExpensesPerPeriod
	default:
		return Unbounded()
	}
}

// Limits returns the static ceiling table for a tier.
func (t Tier) Limits() TierLimits {
	switch t {
	case TierPersonal:
		return TierLimits{
			MaxGroups:             Limit{N: 1},
			MaxMembersPerGroup:    Limit{N: 2},
			MaxCategoriesPerGroup: Limit{N: 20},
			MaxBudgetsPerGroup:    Limit{N: 10},
			MaxExpensesPerPeriod:  Limit{N: 1000},
		}
	case TierFamily:
		return TierLimits{
			MaxGroups:             Limit{N: 3},
			MaxMembersPerGroup:    Limit{N: 10},
			MaxCategoriesPerGroup: Limit{N: 50},
			MaxBudgetsPerGroup:    Limit{N: 25},
			MaxExpensesPerPeriod:  Limit{N: 5000},
		}
	case TierTeam:
		return TierLimits{
			MaxGroups:             Limit{N: 10},
			MaxMembersPerGroup:    Limit{N: 50},
			MaxCategoriesPerGroup: Limit{N: 100},
			MaxBudgetsPerGroup:    Limit{N: 50},
			MaxExpensesPerPeriod:  Limit{N: 25000},
		}
	case TierEnterprise:
		return TierLimits{
			MaxGroups:             Unbounded(),
			MaxMembersPerGroup:    Unbounded(),
			MaxCategoriesPerGroup: Unbounded(),
			MaxBudgetsPerGroup:    Unbounded(),
			MaxExpensesPerPeriod:  Unbounded(),
		}
	default: // free
		return TierLimits{
			MaxGroups:             Limit{N: 1},
			MaxMembersPerGroup:    Limit{N: 1},
			MaxCategoriesPerGroup: Limit{N: 5},
			MaxBudgetsPerGroup:    Limit{N: 3},
			MaxExpensesPerPeriod:  Limit{N: 100},
		}
	}
}

// DisplayName returns the human-facing tier name.
func (t Tier) DisplayName() string {
	switch t {
	case TierPersonal:
		return "Personal"
	case TierFamily:
		return "Family"
	case TierTeam:
		return "Team"
	case TierEnterprise:
		return "Enterprise"
	default:
		return "Free"
	}
}

// MonthlyPriceUSD returns the price in US cents per month.
func (t Tier) MonthlyPriceUSD() int {
	switch t {
	case TierPersonal:
		return 499
	case TierFamily:
		return 999
	case TierTeam:
		return 1999
	case TierEnterprise:
		return 4999
	default:
		return 0
	}
}

// AllTiers lists every tier in ascending order.
func AllTiers() []Tier {
	return []Tier{TierFree, TierPersonal, TierFamily, TierTeam, TierEnterprise}
}

// UsageRecord holds the counters for one billing period. Rows are unique per
// (user, period start, period end) and are never deleted, only superseded by
// the next period's row.
type UsageRecord struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	PeriodStart  time.Time `json:"periodStart"` // date, midnight UTC
	PeriodEnd    time.Time `json:"periodEnd"`   // exclusive
	GroupsCount  int       `json:"groupsCount"`
	ExpenseCount int       `json:"expenseCount"`
	MemberCount  int       `json:"memberCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CounterFor returns the stored counter for a usage-tracked kind.
func (u *UsageRecord) CounterFor(kind ResourceKind) int {
	switch kind {
	case ResourceGroups:
		return u.GroupsCount
	case ResourceExpenses:
		return u.ExpenseCount
	case ResourceMembers:
		return u.MemberCount
	default:
		return 0
	}
}

// PeriodFor computes the billing period [start, end) containing now for a
// cycle that rolls over on startDay (1-28). Days outside that range are
// clamped so every month has the boundary day.
func PeriodFor(now time.Time, startDay int) (time.Time, time.Time) {
	if startDay < 1 {
		startDay = 1
	}
	if startDay > 28 {
		startDay = 28
	}
	y, m, d := now.UTC().Date()
	start := time.Date(y, m, startDay, 0, 0, 0, 0, time.UTC)
	if d < startDay {
		start = start.AddDate(0, -1, 0)
	}
	end := start.AddDate(0, 1, 0)
	return start, end
}
