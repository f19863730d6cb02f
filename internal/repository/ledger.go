package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
)

// LedgerRepository handles database operations for categories, budgets and
// expense entries.
type LedgerRepository struct {
	db *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// CreateCategory inserts a category.
func (r *LedgerRepository) CreateCategory(ctx context.Context, c *domain.Category) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO categories (id, group_uid, name, created_at)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.GroupID, c.Name, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// ListCategories returns the categories of a group.
func (r *LedgerRepository) ListCategories(ctx context.Context, groupID uuid.UUID) ([]*domain.Category, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, group_uid, name, created_at FROM categories
		WHERE group_uid = $1 ORDER BY name
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.GroupID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// CountCategories returns the category count for a group.
func (r *LedgerRepository) CountCategories(ctx context.Context, groupID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM categories WHERE group_uid = $1`, groupID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count categories: %w", err)
	}
	return n, nil
}

// DeleteCategory removes a category from a group.
func (r *LedgerRepository) DeleteCategory(ctx context.Context, groupID, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1 AND group_uid = $2`, id, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// CreateBudget inserts a budget.
func (r *LedgerRepository) CreateBudget(ctx context.Context, b *domain.Budget) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO budgets (id, group_uid, category_uid, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, b.ID, b.GroupID, b.CategoryID, b.Amount, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create budget: %w", err)
	}
	return nil
}

// ListBudgets returns the budgets of a group.
func (r *LedgerRepository) ListBudgets(ctx context.Context, groupID uuid.UUID) ([]*domain.Budget, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, group_uid, category_uid, amount, created_at FROM budgets
		WHERE group_uid = $1 ORDER BY created_at DESC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var out []*domain.Budget
	for rows.Next() {
		var b domain.Budget
		if err := rows.Scan(&b.ID, &b.GroupID, &b.CategoryID, &b.Amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// CountBudgets returns the budget count for a group.
func (r *LedgerRepository) CountBudgets(ctx context.Context, groupID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM budgets WHERE group_uid = $1`, groupID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count budgets: %w", err)
	}
	return n, nil
}

// DeleteBudget removes a budget from a group.
func (r *LedgerRepository) DeleteBudget(ctx context.Context, groupID, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM budgets WHERE id = $1 AND group_uid = $2`, id, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	return nil
}

// CreateExpense inserts an expense entry.
func (r *LedgerRepository) CreateExpense(ctx context.Context, e *domain.ExpenseEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO expense_entries (id, group_uid, category_uid, created_by, amount, description, spent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.GroupID, e.CategoryID, e.CreatedBy, e.Amount, e.Description, e.SpentAt, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetExpense returns an expense by ID within a group, or nil when absent.
func (r *LedgerRepository) GetExpense(ctx context.Context, groupID, id uuid.UUID) (*domain.ExpenseEntry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, group_uid, category_uid, created_by, amount, description, spent_at, created_at
		FROM expense_entries WHERE id = $1 AND group_uid = $2
	`, id, groupID)

	var e domain.ExpenseEntry
	err := row.Scan(&e.ID, &e.GroupID, &e.CategoryID, &e.CreatedBy, &e.Amount, &e.Description, &e.SpentAt, &e.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return &e, nil
}

// ListExpenses returns the expenses of a group, newest spend first.
func (r *LedgerRepository) ListExpenses(ctx context.Context, groupID uuid.UUID, limit int) ([]*domain.ExpenseEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, group_uid, category_uid, created_by, amount, description, spent_at, created_at
		FROM expense_entries WHERE group_uid = $1
		ORDER BY spent_at DESC LIMIT $2
	`, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var out []*domain.ExpenseEntry
	for rows.Next() {
		var e domain.ExpenseEntry
		if err := rows.Scan(&e.ID, &e.GroupID, &e.CategoryID, &e.CreatedBy, &e.Amount, &e.Description, &e.SpentAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// DeleteExpense removes an expense from a group.
func (r *LedgerRepository) DeleteExpense(ctx context.Context, groupID, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM expense_entries WHERE id = $1 AND group_uid = $2`, id, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}
