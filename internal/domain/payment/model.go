// Package payment records payment intake against provider-patient links.
// A settled payment reduces the link's outstanding balance, which in turn
// unblocks patient-initiated disconnect.
package payment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the settlement state of a payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Payment maps to the payment table. AmountCents is always positive.
type Payment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	LinkID      uuid.UUID `db:"link_id" json:"linkId"`
	PatientID   uuid.UUID `db:"patient_id" json:"patientId"`
	ProviderID  uuid.UUID `db:"provider_id" json:"providerId"`
	AmountCents int64     `db:"amount_cents" json:"amountCents"`
	Currency    string    `db:"currency" json:"currency"`
	Status      Status    `db:"status" json:"status"`
	Method      string    `db:"method" json:"method"`
	Reference   *string   `db:"reference" json:"reference,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// RecordInput is the intake payload.
type RecordInput struct {
	LinkID      uuid.UUID `json:"linkId"`
	AmountCents int64     `json:"amountCents"`
	Currency    string    `json:"currency"`
	Method      string    `json:"method"`
	Reference   *string   `json:"reference,omitempty"`
}

// SettleInput resolves a pending payment.
type SettleInput struct {
	Succeeded bool `json:"succeeded"`
}
