package service

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
	"github.com/stretchr/testify/require"
)

type memGroupStore struct {
	mu      sync.Mutex
	groups  map[uuid.UUID]*domain.ExpenseGroup
	members map[uuid.UUID]map[uuid.UUID]bool
	gets    int
}

func newMemGroupStore() *memGroupStore {
	return &memGroupStore{
		groups:  make(map[uuid.UUID]*domain.ExpenseGroup),
		members: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (s *memGroupStore) add(g *domain.ExpenseGroup, members ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
	set := map[uuid.UUID]bool{g.Owner: true}
	for _, m := range members {
		set[m] = true
	}
	s.members[g.ID] = set
}

func (s *memGroupStore) Get(_ context.Context, id uuid.UUID) (*domain.ExpenseGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (s *memGroupStore) IsMember(_ context.Context, groupID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[groupID][userID], nil
}

func TestRequireGroup(t *testing.T) {
	ctx := context.Background()
	owner, member, outsider := uuid.New(), uuid.New(), uuid.New()
	group := &domain.ExpenseGroup{ID: uuid.New(), Owner: owner, Name: "household"}
	otherGroup := &domain.ExpenseGroup{ID: uuid.New(), Owner: outsider, Name: "other"}

	newGuard := func() (*GuardService, *memGroupStore) {
		store := newMemGroupStore()
		store.add(group, member)
		store.add(otherGroup)
		return NewGuardService(store), store
	}

	t.Run("web member passes", func(t *testing.T) {
		guard, _ := newGuard()
		auth := &domain.AuthContext{Source: domain.SourceWeb, UserID: member}
		got, err := guard.RequireGroup(ctx, auth, group.ID)
		require.NoError(t, err)
		require.Equal(t, group.ID, got.ID)
	})

	t.Run("web non-member is forbidden", func(t *testing.T) {
		guard, _ := newGuard()
		auth := &domain.AuthContext{Source: domain.SourceWeb, UserID: outsider}
		_, err := guard.RequireGroup(ctx, auth, group.ID)
		requireReason(t, err, domain.ReasonGroupScope)
	})

	t.Run("chat context scoped to its bound group", func(t *testing.T) {
		guard, _ := newGuard()
		gid := group.ID
		auth := &domain.AuthContext{Source: domain.SourceChat, UserID: owner, GroupID: &gid}
		got, err := guard.RequireGroup(ctx, auth, group.ID)
		require.NoError(t, err)
		require.Equal(t, group.ID, got.ID)
	})

	t.Run("chat reference outside bound group denied before storage", func(t *testing.T) {
		guard, store := newGuard()
		gid := group.ID
		auth := &domain.AuthContext{Source: domain.SourceChat, UserID: owner, GroupID: &gid}
		before := store.gets
		_, err := guard.RequireGroup(ctx, auth, otherGroup.ID)
		requireReason(t, err, domain.ReasonGroupScope)
		require.Equal(t, before, store.gets)
	})

	t.Run("missing group", func(t *testing.T) {
		guard, _ := newGuard()
		auth := &domain.AuthContext{Source: domain.SourceWeb, UserID: owner}
		_, err := guard.RequireGroup(ctx, auth, uuid.New())
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusNotFound, appErr.Code)
	})
}

func TestRequireOwner(t *testing.T) {
	ctx := context.Background()
	owner, member := uuid.New(), uuid.New()
	group := &domain.ExpenseGroup{ID: uuid.New(), Owner: owner, Name: "household"}

	store := newMemGroupStore()
	store.add(group, member)
	guard := NewGuardService(store)

	t.Run("owner passes", func(t *testing.T) {
		auth := &domain.AuthContext{Source: domain.SourceWeb, UserID: owner}
		_, err := guard.RequireOwner(ctx, auth, group.ID)
		require.NoError(t, err)
	})

	t.Run("member is not owner", func(t *testing.T) {
		auth := &domain.AuthContext{Source: domain.SourceWeb, UserID: member}
		_, err := guard.RequireOwner(ctx, auth, group.ID)
		requireReason(t, err, domain.ReasonGroupScope)
	})

	t.Run("chat context can never own", func(t *testing.T) {
		gid := group.ID
		auth := &domain.AuthContext{Source: domain.SourceChat, UserID: owner, GroupID: &gid}
		_, err := guard.RequireOwner(ctx, auth, group.ID)
		requireReason(t, err, domain.ReasonGroupScope)
	})
}
