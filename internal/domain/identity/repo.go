package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/telecare/telecare/internal/platform/auth"
)

type Repository interface {
	Insert(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*User, int, error)
	UpdateRoles(ctx context.Context, id uuid.UUID, roles auth.RoleFlags) error
	UpdateApproval(ctx context.Context, id uuid.UUID, status auth.ApprovalStatus) error
}

// ListFilter narrows an admin user listing.
type ListFilter struct {
	Role             string
	ProviderApproval auth.ApprovalStatus
}
