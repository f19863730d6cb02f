package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
)

// GroupStore is the persistence contract the guard needs.
type GroupStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.ExpenseGroup, error)
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

// GuardService checks that a resolved auth context may touch a group.
type GuardService struct {
	groups GroupStore
}

// NewGuardService creates a new GuardService.
func NewGuardService(groups GroupStore) *GuardService {
	return &GuardService{groups: groups}
}

// RequireGroup verifies the context's access to groupID and returns the
// group. Chat contexts are hard-scoped: any reference to a group other than
// the bound one is a scope violation, checked before touching storage. Web
// contexts require membership.
func (g *GuardService) RequireGroup(ctx context.Context, auth *domain.AuthContext, groupID uuid.UUID) (*domain.ExpenseGroup, error) {
	if auth.Source == domain.SourceChat {
		if auth.GroupID == nil || *auth.GroupID != groupID {
			return nil, domain.ErrForbidden(domain.ReasonGroupScope)
		}
	}

	group, err := g.groups.Get(ctx, groupID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load group", err)
	}
	if group == nil {
		return nil, domain.ErrNotFound("group not found")
	}

	if auth.Source == domain.SourceWeb {
		member, err := g.groups.IsMember(ctx, groupID, auth.UserID)
		if err != nil {
			return nil, domain.ErrInternal("failed to check membership", err)
		}
		if !member {
			return nil, domain.ErrForbidden(domain.ReasonGroupScope)
		}
	}
	return group, nil
}

// RequireOwner verifies the context belongs to the group's owner. Only web
// sessions can own groups; chat contexts never pass.
func (g *GuardService) RequireOwner(ctx context.Context, auth *domain.AuthContext, groupID uuid.UUID) (*domain.ExpenseGroup, error) {
	group, err := g.RequireGroup(ctx, auth, groupID)
	if err != nil {
		return nil, err
	}
	if auth.Source != domain.SourceWeb || group.Owner != auth.UserID {
		return nil, domain.ErrForbidden(domain.ReasonGroupScope)
	}
	return group, nil
}
