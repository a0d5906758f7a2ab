package auth

import (
	"fmt"

	"github.com/telecare/telecare/internal/platform/respond"
)

// Action is a named operation guarded by the permission table.
type Action string

const (
	ActionManageUsers       Action = "users.manage"
	ActionReviewProviders   Action = "providers.review"
	ActionRequestLink       Action = "links.request"
	ActionDecideLink        Action = "links.decide"
	ActionDisconnectLink    Action = "links.disconnect"
	ActionOpenEncounter     Action = "encounters.open"
	ActionViewEncounter     Action = "encounters.view"
	ActionDraftNote         Action = "notes.draft"
	ActionFinalizeNote      Action = "notes.finalize"
	ActionAmendNote         Action = "notes.amend"
	ActionViewNotes         Action = "notes.view"
	ActionCreateAppointment Action = "appointments.create"
	ActionManageAppointment Action = "appointments.manage"
	ActionViewAppointments  Action = "appointments.view"
	ActionSendMessage       Action = "messages.send"
	ActionViewMessages      Action = "messages.view"
	ActionRecordPayment     Action = "payments.record"
	ActionViewPayments      Action = "payments.view"
	ActionSearchAudit       Action = "audit.search"
	ActionPruneAudit        Action = "audit.prune"
)

// capabilities maps each action to the role flags that may perform it. The
// table is static: RequirePermission is a pure function of principal + action.
var capabilities = map[Action]func(RoleFlags) bool{
	ActionManageUsers:       func(r RoleFlags) bool { return r.IsAdmin },
	ActionReviewProviders:   func(r RoleFlags) bool { return r.IsAdmin || r.IsClerk },
	ActionRequestLink:       func(r RoleFlags) bool { return r.IsPatient },
	ActionDecideLink:        func(r RoleFlags) bool { return r.IsProvider },
	ActionDisconnectLink:    func(r RoleFlags) bool { return r.IsPatient },
	ActionOpenEncounter:     func(r RoleFlags) bool { return r.IsProvider },
	ActionViewEncounter:     func(r RoleFlags) bool { return r.IsProvider || r.IsPatient },
	ActionDraftNote:         func(r RoleFlags) bool { return r.IsProvider },
	ActionFinalizeNote:      func(r RoleFlags) bool { return r.IsProvider || r.IsAdmin },
	ActionAmendNote:         func(r RoleFlags) bool { return r.IsProvider },
	ActionViewNotes:         func(r RoleFlags) bool { return r.IsProvider || r.IsPatient },
	ActionCreateAppointment: func(r RoleFlags) bool { return r.IsPatient || r.IsClerk },
	ActionManageAppointment: func(r RoleFlags) bool { return r.IsProvider },
	ActionViewAppointments:  func(r RoleFlags) bool { return r.IsProvider || r.IsPatient || r.IsClerk },
	ActionSendMessage:       func(r RoleFlags) bool { return r.IsProvider || r.IsPatient },
	ActionViewMessages:      func(r RoleFlags) bool { return r.IsProvider || r.IsPatient },
	ActionRecordPayment:     func(r RoleFlags) bool { return r.IsPatient || r.IsClerk },
	ActionViewPayments:      func(r RoleFlags) bool { return r.IsProvider || r.IsPatient || r.IsClerk },
	ActionSearchAudit:       func(r RoleFlags) bool { return r.IsAdmin },
	ActionPruneAudit:        func(r RoleFlags) bool { return r.IsAdmin },
}

type permissionOptions struct {
	requireApprovedProvider bool
}

// Option narrows a permission check beyond the capability table.
type Option func(*permissionOptions)

// RequireApprovedProvider additionally demands that the principal is a
// provider whose account review reached "approved".
func RequireApprovedProvider() Option {
	return func(o *permissionOptions) { o.requireApprovedProvider = true }
}

// RequirePermission fails with a 403 Forbidden error unless the principal's
// role flags satisfy the action's capability entry. Admins pass every check
// except those gated on provider approval. Pure: no side effects, no I/O.
func RequirePermission(p Principal, action Action, opts ...Option) error {
	var o permissionOptions
	for _, opt := range opts {
		opt(&o)
	}

	check, ok := capabilities[action]
	if !ok {
		return respond.Forbidden(fmt.Sprintf("unknown action %q", action))
	}

	if !check(p.Roles) && !p.Roles.IsAdmin {
		return respond.Forbidden(fmt.Sprintf("role lacks capability for %s", action))
	}

	if o.requireApprovedProvider && !p.IsApprovedProvider() {
		return respond.Forbidden("provider account is not approved")
	}

	return nil
}
