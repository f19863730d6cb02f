package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
	"github.com/mustafamilyas/expense-tracker/internal/repository"
	"github.com/mustafamilyas/expense-tracker/internal/service"
	"github.com/shopspring/decimal"
)

// LedgerHandler handles categories, budgets and expense entries. All routes
// go through the group guard; chat-sourced contexts are pinned to their
// bound group before any row is touched.
type LedgerHandler struct {
	ledger *repository.LedgerRepository
	guard  *service.GuardService
	tier   *service.TierService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger *repository.LedgerRepository, guard *service.GuardService, tier *service.TierService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, guard: guard, tier: tier}
}

// CreateCategory handles POST /categories.
func (h *LedgerHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	auth, err := authFromRequest(r)
	if err != nil {
		Error(w, err)
		return
	}

	var req domain.CreateCategoryRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if _, err := h.guard.RequireGroup(r.Context(), auth, req.GroupID); err != nil {
		Error(w, err)
		return
	}

	current, err := h.ledger.CountCategories(r.Context(), req.GroupID)
	if err != nil {
		Error(w, domain.ErrInternal("failed to count categories", err))
		return
	}
	decision, err := h.tier.CheckCount(r.Context(), auth.UserID, domain.ResourceCategories, current, 1)
	if err != nil {
		Error(w, err)
		return
	}

	category := &domain.Category{
		ID:        uuid.New(),
		GroupID:   req.GroupID,
		Name:      req.Name,
		CreatedAt: nowUTC(),
	}
	if err := h.ledger.CreateCategory(r.Context(), category); err != nil {
		Error(w, domain.ErrInternal("failed to create category", err))
		return
	}
	JSON(w, http.StatusCreated, map[string]interface{}{
		"category": category,
		"warning":  approachWarning(decision),
	})
}

// ListCategories handles GET /categories?groupId=.
func (h *LedgerHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	groupID, err := h.guardedGroupQuery(r)
	if err != nil {
		Error(w, err)
		return
	}
	categories, err := h.ledger.ListCategories(r.Context(), groupID)
	if err != nil {
		Error(w, domain.ErrInternal("failed to list categories", err))
		return
	}
	JSON(w, http.StatusOK, categories)
}

// DeleteCategory handles DELETE /categories/{id}?groupId=.
func (h *LedgerHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	groupID, err := h.guardedGroupQuery(r)
	if err != nil {
		Error(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid category id"))
		return
	}
	if err := h.ledger.DeleteCategory(r.Context(), groupID, id); err != nil {
		Error(w, domain.ErrInternal("failed to delete category", err))
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// CreateBudget handles POST /budgets.
func (h *LedgerHandler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	auth, err := authFromRequest(r)
	if err != nil {
		Error(w, err)
		return
	}

	var req domain.CreateBudgetRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		Error(w, domain.ErrBadRequest("invalid amount"))
		return
	}
	if _, err := h.guard.RequireGroup(r.Context(), auth, req.GroupID); err != nil {
		Error(w, err)
		return
	}

	current, err := h.ledger.CountBudgets(r.Context(), req.GroupID)
	if err != nil {
		Error(w, domain.ErrInternal("failed to count budgets", err))
		return
	}
	decision, err := h.tier.CheckCount(r.Context(), auth.UserID, domain.ResourceBudgets, current, 1)
	if err != nil {
		Error(w, err)
		return
	}

	budget := &domain.Budget{
		ID:         uuid.New(),
		GroupID:    req.GroupID,
		CategoryID: req.CategoryID,
		Amount:     amount,
		CreatedAt:  nowUTC(),
	}
	if err := h.ledger.CreateBudget(r.Context(), budget); err != nil {
		Error(w, domain.ErrInternal("failed to create budget", err))
		return
	}
	JSON(w, http.StatusCreated, map[string]interface{}{
		"budget":  budget,
		"warning": approachWarning(decision),
	})
}

// ListBudgets handles GET /budgets?groupId=.
func (h *LedgerHandler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	groupID, err := h.guardedGroupQuery(r)
	if err != nil {
		Error(w, err)
		return
	}
	budgets, err := h.ledger.ListBudgets(r.Context(), groupID)
	if err != nil {
		Error(w, domain.ErrInternal("failed to list budgets", err))
		return
	}
	JSON(w, http.StatusOK, budgets)
}

// DeleteBudget handles DELETE /budgets/{id}?groupId=.
func (h *LedgerHandler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	groupID, err := h.guardedGroupQuery(r)
	if err != nil {
		Error(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid budget id"))
		return
	}
	if err := h.ledger.DeleteBudget(r.Context(), groupID, id); err != nil {
		Error(w, domain.ErrInternal("failed to delete budget", err))
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// CreateExpense handles POST /expenses. Creation is tier-gated against the
// per-period expense counter of the acting user, using the owning group's
// billing cycle.
func (h *LedgerHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	auth, err := authFromRequest(r)
	if err != nil {
		Error(w, err)
		return
	}

	var req domain.CreateExpenseRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		Error(w, domain.ErrBadRequest("invalid amount"))
		return
	}

	group, err := h.guard.RequireGroup(r.Context(), auth, req.GroupID)
	if err != nil {
		Error(w, err)
		return
	}

	decision, err := h.tier.CheckAndIncrement(r.Context(), auth.UserID, group.CycleStartDay, domain.ResourceExpenses, 1)
	if err != nil {
		Error(w, err)
		return
	}

	now := nowUTC()
	spentAt := now
	if req.SpentAt != nil {
		spentAt = *req.SpentAt
	}
	entry := &domain.ExpenseEntry{
		ID:          uuid.New(),
		GroupID:     req.GroupID,
		CategoryID:  req.CategoryID,
		CreatedBy:   auth.UserID,
		Amount:      amount,
		Description: req.Description,
		SpentAt:     spentAt,
		CreatedAt:   now,
	}
	if err := h.ledger.CreateExpense(r.Context(), entry); err != nil {
		_ = h.tier.Release(r.Context(), auth.UserID, group.CycleStartDay, domain.ResourceExpenses, 1)
		Error(w, domain.ErrInternal("failed to create expense", err))
		return
	}
	JSON(w, http.StatusCreated, map[string]interface{}{
		"expense": entry,
		"warning": approachWarning(decision),
	})
}

// ListExpenses handles GET /expenses?groupId=.
func (h *LedgerHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	groupID, err := h.guardedGroupQuery(r)
	if err != nil {
		Error(w, err)
		return
	}
	expenses, err := h.ledger.ListExpenses(r.Context(), groupID, 0)
	if err != nil {
		Error(w, domain.ErrInternal("failed to list expenses", err))
		return
	}
	JSON(w, http.StatusOK, expenses)
}

// DeleteExpense handles DELETE /expenses/{id}?groupId=.
func (h *LedgerHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	auth, err := authFromRequest(r)
	if err != nil {
		Error(w, err)
		return
	}
	groupID, err := uuid.Parse(r.URL.Query().Get("groupId"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid groupId"))
		return
	}
	group, err := h.guard.RequireGroup(r.Context(), auth, groupID)
	if err != nil {
		Error(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid expense id"))
		return
	}

	entry, err := h.ledger.GetExpense(r.Context(), groupID, id)
	if err != nil {
		Error(w, domain.ErrInternal("failed to load expense", err))
		return
	}
	if entry == nil {
		Error(w, domain.ErrNotFound("expense not found"))
		return
	}

	if err := h.ledger.DeleteExpense(r.Context(), groupID, id); err != nil {
		Error(w, domain.ErrInternal("failed to delete expense", err))
		return
	}
	// Only entries created in the current billing period count against it;
	// deleting an older entry must not refund current-period quota.
	if withinCurrentPeriod(entry.CreatedAt, nowUTC(), group.CycleStartDay) {
		if err := h.tier.Release(r.Context(), entry.CreatedBy, group.CycleStartDay, domain.ResourceExpenses, 1); err != nil {
			Error(w, err)
			return
		}
	}
	JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func withinCurrentPeriod(createdAt, now time.Time, cycleStartDay int) bool {
	start, end := domain.PeriodFor(now, cycleStartDay)
	return !createdAt.Before(start) && createdAt.Before(end)
}

func (h *LedgerHandler) guardedGroupQuery(r *http.Request) (uuid.UUID, error) {
	auth, err := authFromRequest(r)
	if err != nil {
		return uuid.Nil, err
	}
	groupID, err := uuid.Parse(r.URL.Query().Get("groupId"))
	if err != nil {
		return uuid.Nil, domain.ErrBadRequest("invalid groupId")
	}
	if _, err := h.guard.RequireGroup(r.Context(), auth, groupID); err != nil {
		return uuid.Nil, err
	}
	return groupID, nil
}
