package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category is an expense category inside a group.
type Category struct {
	ID        uuid.UUID `json:"id"`
	GroupID   uuid.UUID `json:"groupId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Budget is a per-category spending ceiling inside a group.
type Budget struct {
	ID         uuid.UUID       `json:"id"`
	GroupID    uuid.UUID       `json:"groupId"`
	CategoryID uuid.UUID       `json:"categoryId"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ExpenseEntry is a single recorded expense.
type ExpenseEntry struct {
	ID          uuid.UUID       `json:"id"`
	GroupID     uuid.UUID       `json:"groupId"`
	CategoryID  *uuid.UUID      `json:"categoryId,omitempty"`
	CreatedBy   uuid.UUID       `json:"createdBy"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	SpentAt     time.Time       `json:"spentAt"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// CreateCategoryRequest is the input for creating a category.
type CreateCategoryRequest struct {
	GroupID uuid.UUID `json:"groupId" validate:"required"`
	Name    string    `json:"name" validate:"required,min=1,max=64"`
}

// CreateBudgetRequest is the input for creating a budget.
type CreateBudgetRequest struct {
	GroupID    uuid.UUID `json:"groupId" validate:"required"`
	CategoryID uuid.UUID `json:"categoryId" validate:"required"`
	Amount     string    `json:"amount" validate:"required"`
}

// CreateExpenseRequest is the input for recording an expense.
type CreateExpenseRequest struct {
	GroupID     uuid.UUID  `json:"groupId" validate:"required"`
	CategoryID  *uuid.UUID `json:"categoryId"`
	Amount      string     `json:"amount" validate:"required"`
	Description string     `json:"description" validate:"max=500"`
	SpentAt     *time.Time `json:"spentAt"`
}
