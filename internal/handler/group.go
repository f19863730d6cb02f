package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
	"github.com/mustafamilyas/expense-tracker/internal/repository"
	"github.com/mustafamilyas/expense-tracker/internal/service"
)

// Group counters are not tied to any one group's billing cycle, so they
// accrue against calendar-month periods.
const groupCounterCycleDay = 1

// GroupHandler handles expense group endpoints.
type GroupHandler struct {
	groups *repository.GroupRepository
	guard  *service.GuardService
	tier   *service.TierService
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(groups *repository.GroupRepository, guard *service.GuardService, tier *service.TierService) *GroupHandler {
	return &GroupHandler{groups: groups, guard: guard, tier: tier}
}

type groupResponse struct {
	Group   *domain.ExpenseGroup `json:"group"`
	Warning string               `json:"warning,omitempty"`
}

func approachWarning(d *service.TierDecision) string {
	if d == nil || !d.Approaching {
		return ""
	}
	return "approaching plan limit"
}

// Create handles POST /groups. Creation is tier-gated: the quota is taken
// atomically first and handed back if the insert fails.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	auth, err := requireWeb(r)
	if err != nil {
		Error(w, err)
		return
	}

	var req domain.CreateGroupRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if req.CycleStartDay == 0 {
		req.CycleStartDay = 1
	}

	decision, err := h.tier.CheckAndIncrement(r.Context(), auth.UserID, groupCounterCycleDay, domain.ResourceGroups, 1)
	if err != nil {
		Error(w, err)
		return
	}

	now := nowUTC()
	group := &domain.ExpenseGroup{
		ID:            uuid.New(),
		Owner:         auth.UserID,
		Name:          req.Name,
		CycleStartDay: req.CycleStartDay,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.groups.Create(r.Context(), group); err != nil {
		_ = h.tier.Release(r.Context(), auth.UserID, groupCounterCycleDay, domain.ResourceGroups, 1)
		Error(w, domain.ErrInternal("failed to create group", err))
		return
	}

	JSON(w, http.StatusCreated, groupResponse{Group: group, Warning: approachWarning(decision)})
}

// List handles GET /groups.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	auth, err := authFromRequest(r)
	if err != nil {
		Error(w, err)
		return
	}

	groups, err := h.groups.ListByMember(r.Context(), auth.UserID)
	if err != nil {
		Error(w, domain.ErrInternal("failed to list groups", err))
		return
	}
	JSON(w, http.StatusOK, groups)
}

// Get handles GET /groups/{id}.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, group, err := h.resolve(r)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, group)
}

// Update handles PUT /groups/{id}.
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	auth, err := authFromRequest(r)
	if err != nil {
		Error(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid group id"))
		return
	}

	var req domain.UpdateGroupRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	group, err := h.guard.RequireOwner(r.Context(), auth, id)
	if err != nil {
		Error(w, err)
		return
	}
	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.CycleStartDay != nil {
		group.CycleStartDay = *req.CycleStartDay
	}
	if err := h.groups.Update(r.Context(), group); err != nil {
		Error(w, domain.ErrInternal("failed to update group", err))
		return
	}
	JSON(w, http.StatusOK, group)
}

// Delete handles DELETE /groups/{id}. The groups counter is released so the
// slot can be reused within the period.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	auth, err := authFromRequest(r)
	if err != nil {
		Error(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid group id"))
		return
	}

	if _, err := h.guard.RequireOwner(r.Context(), auth, id); err != nil {
		Error(w, err)
		return
	}
	if err := h.groups.Delete(r.Context(), id); err != nil {
		Error(w, domain.ErrInternal("failed to delete group", err))
		return
	}
	if err := h.tier.Release(r.Context(), auth.UserID, groupCounterCycleDay, domain.ResourceGroups, 1); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// AddMember handles POST /groups/{id}/members. The per-group ceiling is
// count-based; the period total is tracked for reporting.
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	auth, err := requireWeb(r)
	if err != nil {
		Error(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid group id"))
		return
	}

	var req domain.AddMemberRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	group, err := h.guard.RequireOwner(r.Context(), auth, id)
	if err != nil {
		Error(w, err)
		return
	}

	current, err := h.groups.CountMembers(r.Context(), id)
	if err != nil {
		Error(w, domain.ErrInternal("failed to count members", err))
		return
	}
	decision, err := h.tier.CheckCount(r.Context(), auth.UserID, domain.ResourceMembers, current, 1)
	if err != nil {
		Error(w, err)
		return
	}

	if err := h.groups.AddMember(r.Context(), id, req.UserID); err != nil {
		Error(w, domain.ErrInternal("failed to add member", err))
		return
	}
	if err := h.tier.Track(r.Context(), auth.UserID, group.CycleStartDay, domain.ResourceMembers, 1); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, map[string]interface{}{
		"added":   true,
		"warning": approachWarning(decision),
	})
}

// RemoveMember handles DELETE /groups/{id}/members/{userId}.
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	auth, err := requireWeb(r)
	if err != nil {
		Error(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid group id"))
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid user id"))
		return
	}

	group, err := h.guard.RequireOwner(r.Context(), auth, id)
	if err != nil {
		Error(w, err)
		return
	}
	if userID == group.Owner {
		Error(w, domain.ErrBadRequest("cannot remove the group owner"))
		return
	}

	if err := h.groups.RemoveMember(r.Context(), id, userID); err != nil {
		Error(w, domain.ErrInternal("failed to remove member", err))
		return
	}
	if err := h.tier.Release(r.Context(), auth.UserID, group.CycleStartDay, domain.ResourceMembers, 1); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (h *GroupHandler) resolve(r *http.Request) (*domain.AuthContext, *domain.ExpenseGroup, error) {
	auth, err := authFromRequest(r)
	if err != nil {
		return nil, nil, err
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, nil, domain.ErrBadRequest("invalid group id")
	}
	group, err := h.guard.RequireGroup(r.Context(), auth, id)
	if err != nil {
		return nil, nil, err
	}
	return auth, group, nil
}
