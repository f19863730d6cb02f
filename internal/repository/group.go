package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
)

// GroupRepository handles database operations for expense groups and their
// memberships.
type GroupRepository struct {
	db *pgxpool.Pool
}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(db *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create inserts a group and its owner membership in one transaction.
func (r *GroupRepository) Create(ctx context.Context, g *domain.ExpenseGroup) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO expense_groups (id, owner_uid, name, cycle_start_day, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, g.ID, g.Owner, g.Name, g.CycleStartDay, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO group_members (group_uid, user_uid) VALUES ($1, $2)
	`, g.ID, g.Owner)
	if err != nil {
		return fmt.Errorf("failed to add owner membership: %w", err)
	}

	return tx.Commit(ctx)
}

// Get returns a group by ID, or nil when absent.
func (r *GroupRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ExpenseGroup, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, owner_uid, name, cycle_start_day, created_at, updated_at
		FROM expense_groups WHERE id = $1
	`, id)

	var g domain.ExpenseGroup
	err := row.Scan(&g.ID, &g.Owner, &g.Name, &g.CycleStartDay, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &g, nil
}

// ListByMember returns all groups the user belongs to.
func (r *GroupRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]*domain.ExpenseGroup, error) {
	rows, err := r.db.Query(ctx, `
		SELECT g.id, g.owner_uid, g.name, g.cycle_start_day, g.created_at, g.updated_at
		FROM expense_groups g
		JOIN group_members m ON m.group_uid = g.id
		WHERE m.user_uid = $1
		ORDER BY g.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*domain.ExpenseGroup
	for rows.Next() {
		var g domain.ExpenseGroup
		if err := rows.Scan(&g.ID, &g.Owner, &g.Name, &g.CycleStartDay, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

// Update persists name and cycle day changes.
func (r *GroupRepository) Update(ctx context.Context, g *domain.ExpenseGroup) error {
	_, err := r.db.Exec(ctx, `
		UPDATE expense_groups SET name = $1, cycle_start_day = $2, updated_at = NOW()
		WHERE id = $3
	`, g.Name, g.CycleStartDay, g.ID)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return nil
}

// Delete removes a group; memberships cascade.
func (r *GroupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM expense_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

// IsMember reports whether the user belongs to the group.
func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM group_members WHERE group_uid = $1 AND user_uid = $2)
	`, groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// AddMember inserts a membership row. Adding an existing member is an error.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO group_members (group_uid, user_uid) VALUES ($1, $2)
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership row.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM group_members WHERE group_uid = $1 AND user_uid = $2
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// CountMembers returns the current member count for a group.
func (r *GroupRepository) CountMembers(ctx context.Context, groupID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM group_members WHERE group_uid = $1
	`, groupID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}
