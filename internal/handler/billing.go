package handler

import (
	"net/http"
	"time"

	"github.com/mustafamilyas/expense-tracker/internal/domain"
	"github.com/mustafamilyas/expense-tracker/internal/repository"
	"github.com/mustafamilyas/expense-tracker/internal/service"
)

// BillingHandler exposes subscription state, the plan catalog and tier
// changes. Only web sessions may manage billing.
type BillingHandler struct {
	tier  *service.TierService
	usage *repository.UsageRepository
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(tier *service.TierService, usage *repository.UsageRepository) *BillingHandler {
	return &BillingHandler{tier: tier, usage: usage}
}

type planResponse struct {
	Tier              domain.Tier   `json:"tier"`
	DisplayName       string        `json:"displayName"`
	MonthlyPriceCents int           `json:"monthlyPriceCents"`
	Limits            []limitDetail `json:"limits"`
}

type limitDetail struct {
	Resource  domain.ResourceKind `json:"resource"`
	Limit     int                 `json:"limit,omitempty"`
	Unlimited bool                `json:"unlimited"`
}

type changeTierRequest struct {
	Tier string `json:"tier" validate:"required"`
}

type cancelRequest struct {
	CancelAtPeriodEnd bool `json:"cancelAtPeriodEnd"`
}

// Plans handles GET /plans. Public route.
func (h *BillingHandler) Plans(w http.ResponseWriter, r *http.Request) {
	tiers := domain.AllTiers()
	kinds := domain.AllResourceKinds()
	plans := make([]planResponse, 0, len(tiers))
	for _, tier := range tiers {
		limits := tier.Limits()
		details := make([]limitDetail, 0, len(kinds))
		for _, kind := range kinds {
			limit := limits.For(kind)
			details = append(details, limitDetail{
				Resource:  kind,
				Limit:     limit.N,
				Unlimited: limit.Unlimited,
			})
		}
		plans = append(plans, planResponse{
			Tier:              tier,
			DisplayName:       tier.DisplayName(),
			MonthlyPriceCents: tier.MonthlyPriceUSD(),
			Limits:            details,
		})
	}
	JSON(w, http.StatusOK, plans)
}

// Subscription handles GET /billing/subscription.
func (h *BillingHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	auth, err := requireWeb(r)
	if err != nil {
		Error(w, err)
		return
	}
	sub, err := h.tier.EnsureSubscription(r.Context(), auth.UserID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sub)
}

// Usage handles GET /billing/usage. Counters are reported against the
// calendar-month period; per-group cycles only affect gating, not this view.
func (h *BillingHandler) Usage(w http.ResponseWriter, r *http.Request) {
	auth, err := requireWeb(r)
	if err != nil {
		Error(w, err)
		return
	}
	usage, err := h.tier.Usage(r.Context(), auth.UserID, 1)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, usage)
}

// RecalculateUsage handles POST /billing/usage/recalculate. Counters are
// maintained incrementally; this recounts them from the source tables for
// when they have drifted (manual data fixes, partial failures).
func (h *BillingHandler) RecalculateUsage(w http.ResponseWriter, r *http.Request) {
	auth, err := requireWeb(r)
	if err != nil {
		Error(w, err)
		return
	}
	start, end := domain.PeriodFor(time.Now(), 1)
	rec, err := h.usage.Recalculate(r.Context(), auth.UserID, start, end)
	if err != nil {
		Error(w, domain.ErrInternal("failed to recalculate usage", err))
		return
	}
	JSON(w, http.StatusOK, rec)
}

// ChangeTier handles POST /billing/tier.
func (h *BillingHandler) ChangeTier(w http.ResponseWriter, r *http.Request) {
	auth, err := requireWeb(r)
	if err != nil {
		Error(w, err)
		return
	}
	var req changeTierRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if !domain.ValidTier(req.Tier) {
		Error(w, domain.ErrBadRequest("unknown tier"))
		return
	}
	sub, err := h.tier.ChangeTier(r.Context(), auth.UserID, domain.Tier(req.Tier))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sub)
}

// Cancel handles POST /billing/cancel.
func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	auth, err := requireWeb(r)
	if err != nil {
		Error(w, err)
		return
	}
	var req cancelRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	sub, err := h.tier.SetCancelAtPeriodEnd(r.Context(), auth.UserID, req.CancelAtPeriodEnd)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sub)
}
