// Package appointment handles scheduling between linked patients and
// providers. Patients request appointments; only the owning provider moves
// them through the status transitions.
package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the scheduling state of an appointment.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// Appointment maps to the appointment table. Duration is in minutes. Note
// accumulates free-text annotations such as decline reasons.
type Appointment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patientId"`
	ProviderID     uuid.UUID  `db:"provider_id" json:"providerId"`
	Date           time.Time  `db:"date" json:"date"`
	Duration       int        `db:"duration" json:"duration"`
	Status         Status     `db:"status" json:"status"`
	Note           string     `db:"note" json:"note,omitempty"`
	MeetingLink    *string    `db:"meeting_link" json:"meetingLink,omitempty"`
	MeetingStartAt *time.Time `db:"meeting_start_at" json:"meetingStartAt,omitempty"`
	MeetingEndAt   *time.Time `db:"meeting_end_at" json:"meetingEndAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// CreateInput is the patient's (or clerk's) booking request.
type CreateInput struct {
	ProviderID uuid.UUID `json:"providerId"`
	PatientID  uuid.UUID `json:"patientId,omitempty"`
	Date       time.Time `json:"date"`
	Duration   int       `json:"duration"`
}

// DeclineInput carries the provider's cancellation reason.
type DeclineInput struct {
	Reason string `json:"reason"`
}

// RescheduleInput moves an appointment to a new slot, preserving status.
type RescheduleInput struct {
	Date time.Time `json:"date"`
}

// Declined is the event payload published when a provider declines.
type Declined struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	ProviderID    uuid.UUID
	Reason        string
}
