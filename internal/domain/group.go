package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExpenseGroup is a shared ledger owned by one user. CycleStartDay is the
// day of month (1-28) the billing period rolls over on.
type ExpenseGroup struct {
	ID            uuid.UUID `json:"id"`
	Owner         uuid.UUID `json:"owner"`
	Name          string    `json:"name"`
	CycleStartDay int       `json:"cycleStartDay"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// GroupMember links a user into a group.
type GroupMember struct {
	GroupID uuid.UUID `json:"groupId"`
	UserID  uuid.UUID `json:"userId"`
	AddedAt time.Time `json:"addedAt"`
}

// CreateGroupRequest is the input for creating an expense group.
type CreateGroupRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=100"`
	CycleStartDay int    `json:"cycleStartDay" validate:"omitempty,min=1,max=28"`
}

// UpdateGroupRequest is the input for updating an expense group.
type UpdateGroupRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=100"`
	CycleStartDay *int    `json:"cycleStartDay" validate:"omitempty,min=1,max=28"`
}

// AddMemberRequest is the input for adding a member to a group.
type AddMemberRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
}
