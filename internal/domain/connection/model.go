// Package connection manages provider-patient links: the patient-initiated
// request, the provider's approve/reject decision, and disconnection. An
// approved link is the gate for every clinical read and write between the
// pair.
package connection

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a link.
type Status string

const (
	StatusPending      Status = "pending"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusDisconnected Status = "disconnected"
)

// Link maps to the provider_patient_link table. OutstandingBalance is in
// cents; a nonzero balance blocks patient-initiated disconnect.
type Link struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	ProviderID         uuid.UUID  `db:"provider_id" json:"providerId"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patientId"`
	TreatmentType      string     `db:"treatment_type" json:"treatmentType"`
	Status             Status     `db:"status" json:"status"`
	OutstandingBalance int64      `db:"outstanding_balance" json:"outstandingBalance"`
	CanDisconnect      bool       `db:"can_disconnect" json:"canDisconnect"`
	RequestedAt        time.Time  `db:"requested_at" json:"requestedAt"`
	DecidedAt          *time.Time `db:"decided_at" json:"decidedAt,omitempty"`
	DisconnectedAt     *time.Time `db:"disconnected_at" json:"disconnectedAt,omitempty"`
}

// RequestInput is the patient's link request payload.
type RequestInput struct {
	ProviderID    uuid.UUID `json:"providerId"`
	TreatmentType string    `json:"treatmentType"`
}

// DecisionInput is the provider's approve/reject payload.
type DecisionInput struct {
	Approve bool `json:"approve"`
}

// LinkApproved is the event payload published when a provider approves a
// link request.
type LinkApproved struct {
	LinkID     uuid.UUID
	ProviderID uuid.UUID
	PatientID  uuid.UUID
}
