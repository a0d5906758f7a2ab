// Package identity manages user accounts: registration, login, admin role
// assignment, and the provider approval workflow.
package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/telecare/telecare/internal/platform/auth"
)

// User maps to the app_user table. PasswordHash is a bcrypt digest and is
// never serialized.
type User struct {
	ID               uuid.UUID           `db:"id" json:"id"`
	Email            string              `db:"email" json:"email"`
	PasswordHash     string              `db:"password_hash" json:"-"`
	FullName         string              `db:"full_name" json:"fullName"`
	Roles            auth.RoleFlags      `db:"roles" json:"roles"`
	ProviderApproval auth.ApprovalStatus `db:"provider_approval" json:"providerApproval,omitempty"`
	Specialty        *string             `db:"specialty" json:"specialty,omitempty"`
	CreatedAt        time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updatedAt"`
}

// Principal maps the stored user onto the request-scoped actor shape.
func (u *User) Principal() auth.Principal {
	return auth.Principal{
		ID:               u.ID,
		Email:            u.Email,
		Roles:            u.Roles,
		ProviderApproval: u.ProviderApproval,
	}
}

// RegisterInput is the self-service signup payload. Exactly one of the
// provider/patient flags is chosen at signup; admin and clerk are granted
// only by an existing admin.
type RegisterInput struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FullName  string  `json:"fullName"`
	Role      string  `json:"role"`
	Specialty *string `json:"specialty,omitempty"`
}

// LoginInput is the credential payload.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RoleUpdateInput is the admin role-assignment payload.
type RoleUpdateInput struct {
	Roles auth.RoleFlags `json:"roles"`
}

// ReviewInput moves a provider account through review.
type ReviewInput struct {
	Status auth.ApprovalStatus `json:"status"`
}
