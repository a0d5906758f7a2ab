// Package encounter tracks clinical visits. An encounter is opened by an
// approved provider against a linked patient, optionally from a confirmed
// appointment, and is the anchor for progress notes.
package encounter

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an encounter.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusFinished   Status = "finished"
	StatusCancelled  Status = "cancelled"
)

// Encounter maps to the encounter table.
type Encounter struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patientId"`
	ProviderID    uuid.UUID  `db:"provider_id" json:"providerId"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointmentId,omitempty"`
	Type          string     `db:"type" json:"type"`
	Mode          string     `db:"mode" json:"mode"`
	StartTime     time.Time  `db:"start_time" json:"startTime"`
	EndTime       *time.Time `db:"end_time" json:"endTime,omitempty"`
	Status        Status     `db:"status" json:"status"`
	Location      *string    `db:"location" json:"location,omitempty"`
}

// OpenInput is the provider's payload for starting an encounter.
type OpenInput struct {
	PatientID     uuid.UUID  `json:"patientId"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	Type          string     `json:"type"`
	Mode          string     `json:"mode"`
	Location      *string    `json:"location,omitempty"`
}
