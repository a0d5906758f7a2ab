// Package auth resolves the authenticated principal for each request and
// evaluates role capability predicates against it.
package auth

import (
	"context"

	"github.com/google/uuid"
)

// ApprovalStatus is the review state of a provider account. Transitions are
// one-way (pending -> reviewing -> approved|rejected) except explicit admin
// override.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalReviewing ApprovalStatus = "reviewing"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
)

// RoleFlags are non-exclusive capability flags. An admin who is also a
// practicing provider carries both IsAdmin and IsProvider.
type RoleFlags struct {
	IsAdmin    bool `json:"isAdmin"`
	IsClerk    bool `json:"isClerk"`
	IsProvider bool `json:"isProvider"`
	IsPatient  bool `json:"isPatient"`
}

// Principal is the authenticated actor for one request. It is resolved once
// by the session middleware and passed explicitly to every downstream call;
// nothing reads ambient session state.
type Principal struct {
	ID               uuid.UUID      `json:"id"`
	Email            string         `json:"email"`
	Roles            RoleFlags      `json:"roles"`
	ProviderApproval ApprovalStatus `json:"providerApproval,omitempty"`
}

// IsApprovedProvider reports whether the principal is a provider whose
// account has passed review.
func (p Principal) IsApprovedProvider() bool {
	return p.Roles.IsProvider && p.ProviderApproval == ApprovalApproved
}

// RoleNames returns the active flags as strings, for audit metadata.
func (p Principal) RoleNames() []string {
	var names []string
	if p.Roles.IsAdmin {
		names = append(names, "admin")
	}
	if p.Roles.IsClerk {
		names = append(names, "clerk")
	}
	if p.Roles.IsProvider {
		names = append(names, "provider")
	}
	if p.Roles.IsPatient {
		names = append(names, "patient")
	}
	return names
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a context carrying the resolved principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the principal resolved by the session
// middleware. ok is false on unauthenticated requests.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

const clientIPKey contextKey = "client_ip"

// WithClientIP returns a context carrying the caller address resolved by the
// session middleware. Audit rows default their ip column from it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext retrieves the caller address stored by the session
// middleware.
func ClientIPFromContext(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(clientIPKey).(string)
	return ip, ok
}
