// Package note implements the progress-note lifecycle. A note is a
// SOAP-structured clinical document that moves draft -> finalized and, via
// an append-only amendment, finalized -> amended. Finalized content is
// immutable.
package note

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a progress note.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"
	StatusAmended   Status = "amended"
)

// Note maps to the progress_note table. Once finalized, the clinical body
// fields never change; an amendment creates a fresh draft instead.
type Note struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	EncounterID   *uuid.UUID `db:"encounter_id" json:"encounterId,omitempty"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patientId"`
	AuthorID      uuid.UUID  `db:"author_id" json:"authorId"`
	Status        Status     `db:"status" json:"status"`
	Subjective    string     `db:"subjective" json:"subjective"`
	Objective     string     `db:"objective" json:"objective"`
	Assessment    string     `db:"assessment" json:"assessment"`
	Plan          string     `db:"plan" json:"plan"`
	Summary       string     `db:"summary" json:"summary"`
	SignatureHash *string    `db:"signature_hash" json:"signatureHash,omitempty"`
	FinalizedAt   *time.Time `db:"finalized_at" json:"finalizedAt,omitempty"`
	AmendsNoteID  *uuid.UUID `db:"amends_note_id" json:"amendsNoteId,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// Body carries the mutable clinical fields of a draft.
type Body struct {
	EncounterID *uuid.UUID `json:"encounterId,omitempty"`
	Subjective  string     `json:"subjective"`
	Objective   string     `json:"objective"`
	Assessment  string     `json:"assessment"`
	Plan        string     `json:"plan"`
	Summary     string     `json:"summary"`
}

// FinalizeInput locks a draft with its signature.
type FinalizeInput struct {
	NoteID        uuid.UUID  `json:"noteId"`
	SignatureHash string     `json:"signatureHash"`
	FinalizedAt   *time.Time `json:"finalizedAt,omitempty"`
}

// Finalized is the event payload published after a successful finalize.
type Finalized struct {
	NoteID        uuid.UUID
	EncounterID   *uuid.UUID
	PatientID     uuid.UUID
	AuthorID      uuid.UUID
	FinalizedAt   time.Time
	SignatureHash string
}
