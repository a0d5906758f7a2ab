package note

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/domain/audit"
	"github.com/telecare/telecare/internal/domain/connection"
	"github.com/telecare/telecare/internal/domain/encounter"
	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/events"
	"github.com/telecare/telecare/internal/platform/respond"
)

// LinkGate verifies the approved provider-patient connection.
type LinkGate interface {
	EnsureLink(ctx context.Context, providerID, patientID uuid.UUID) (*connection.Link, error)
}

// EncounterSource resolves the encounter a note belongs to, for the
// finalize authorization check.
type EncounterSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error)
}

type Service struct {
	repo       Repository
	links      LinkGate
	encounters EncounterSource
	bus        *events.Bus
	auditor    *audit.Recorder
	logger     zerolog.Logger
}

func NewService(repo Repository, links LinkGate, encounters EncounterSource, bus *events.Bus, auditor *audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		links:      links,
		encounters: encounters,
		bus:        bus,
		auditor:    auditor,
		logger:     logger.With().Str("component", "note").Logger(),
	}
}

// CreateDraft opens a new draft note for a linked patient.
func (s *Service) CreateDraft(ctx context.Context, actor auth.Principal, patientID uuid.UUID, body Body) (*Note, error) {
	if err := auth.RequirePermission(actor, auth.ActionDraftNote, auth.RequireApprovedProvider()); err != nil {
		return nil, err
	}
	if _, err := s.links.EnsureLink(ctx, actor.ID, patientID); err != nil {
		return nil, err
	}

	n := &Note{
		EncounterID: body.EncounterID,
		PatientID:   patientID,
		AuthorID:    actor.ID,
		Status:      StatusDraft,
		Subjective:  body.Subjective,
		Objective:   body.Objective,
		Assessment:  body.Assessment,
		Plan:        body.Plan,
		Summary:     body.Summary,
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionCreate,
		EntityType: "progress_note",
		EntityID:   n.ID.String(),
		Metadata:   s.provenance(actor, n),
	})
	return n, nil
}

// UpdateDraft rewrites a draft's clinical fields. Conflicts once the note
// is finalized or amended; only the author may edit a draft.
func (s *Service) UpdateDraft(ctx context.Context, actor auth.Principal, id uuid.UUID, body Body) (*Note, error) {
	if err := auth.RequirePermission(actor, auth.ActionDraftNote, auth.RequireApprovedProvider()); err != nil {
		return nil, err
	}

	n, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.AuthorID != actor.ID && !actor.Roles.IsAdmin {
		return nil, respond.Forbidden("only the author may edit a draft")
	}

	ok, err := s.repo.UpdateBody(ctx, id, body)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, respond.Conflict("note is no longer a draft")
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionUpdate,
		EntityType: "progress_note",
		EntityID:   n.ID.String(),
		Metadata:   s.provenance(actor, n),
	})
	return s.get(ctx, id)
}

// Finalize locks a draft with its signature hash. The transition is a
// compare-and-swap at the store: of two concurrent calls exactly one
// succeeds and the other conflicts. A finalized or amended note always
// conflicts, never re-signs.
func (s *Service) Finalize(ctx context.Context, actor auth.Principal, input FinalizeInput) (*Note, error) {
	if err := auth.RequirePermission(actor, auth.ActionFinalizeNote); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.SignatureHash) == "" {
		return nil, respond.Validation("invalid finalize request",
			respond.Issue{Field: "signatureHash", Message: "is required"})
	}

	n, err := s.get(ctx, input.NoteID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeFinalize(ctx, actor, n); err != nil {
		return nil, err
	}
	switch n.Status {
	case StatusFinalized:
		return nil, respond.Conflict("Note already finalized")
	case StatusAmended:
		return nil, respond.Conflict("amended notes cannot be finalized")
	}

	finalizedAt := time.Now().UTC()
	if input.FinalizedAt != nil {
		finalizedAt = input.FinalizedAt.UTC()
	}

	ok, err := s.repo.Finalize(ctx, n.ID, input.SignatureHash, finalizedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race: someone else moved the note out of draft first.
		return nil, respond.Conflict("Note already finalized")
	}

	n, err = s.get(ctx, n.ID)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionFinalize,
		EntityType: "progress_note",
		EntityID:   n.ID.String(),
		Metadata:   s.provenance(actor, n),
	})

	s.bus.Publish(events.Event{
		Topic: events.TopicNoteFinalized,
		Payload: Finalized{
			NoteID:        n.ID,
			EncounterID:   n.EncounterID,
			PatientID:     n.PatientID,
			AuthorID:      n.AuthorID,
			FinalizedAt:   finalizedAt,
			SignatureHash: input.SignatureHash,
		},
	})
	s.logger.Info().Str("note_id", n.ID.String()).Msg("note finalized")
	return n, nil
}

// Amend marks a finalized note amended and opens a fresh draft carrying the
// correction. The original's content and signature are untouched.
func (s *Service) Amend(ctx context.Context, actor auth.Principal, id uuid.UUID, body Body) (*Note, error) {
	if err := auth.RequirePermission(actor, auth.ActionAmendNote, auth.RequireApprovedProvider()); err != nil {
		return nil, err
	}

	original, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeFinalize(ctx, actor, original); err != nil {
		return nil, err
	}
	if original.Status != StatusFinalized {
		return nil, respond.Conflict("only finalized notes can be amended")
	}

	ok, err := s.repo.MarkAmended(ctx, original.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, respond.Conflict("note was amended concurrently")
	}

	amendment := &Note{
		EncounterID:  original.EncounterID,
		PatientID:    original.PatientID,
		AuthorID:     actor.ID,
		Status:       StatusDraft,
		Subjective:   body.Subjective,
		Objective:    body.Objective,
		Assessment:   body.Assessment,
		Plan:         body.Plan,
		Summary:      body.Summary,
		AmendsNoteID: &original.ID,
	}
	if err := s.repo.Insert(ctx, amendment); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionAmend,
		EntityType: "progress_note",
		EntityID:   original.ID.String(),
		Metadata: s.provenance(actor, original, func(meta map[string]interface{}) {
			meta["amendmentId"] = amendment.ID.String()
		}),
	})
	return amendment, nil
}

// Get returns one note to its author, the note's patient, the patient's
// linked provider, or an admin. The read is audited.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Note, error) {
	if err := auth.RequirePermission(actor, auth.ActionViewNotes); err != nil {
		return nil, err
	}

	n, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.AuthorID != actor.ID && n.PatientID != actor.ID && !actor.Roles.IsAdmin {
		if _, err := s.links.EnsureLink(ctx, actor.ID, n.PatientID); err != nil {
			return nil, err
		}
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionView,
		EntityType: "progress_note",
		EntityID:   n.ID.String(),
		Metadata:   s.provenance(actor, n),
	})
	return n, nil
}

// ListForPatient returns a patient's notes to the patient themselves, their
// linked provider, or an admin.
func (s *Service) ListForPatient(ctx context.Context, actor auth.Principal, patientID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	if err := auth.RequirePermission(actor, auth.ActionViewNotes); err != nil {
		return nil, 0, err
	}
	if actor.ID != patientID && !actor.Roles.IsAdmin {
		if _, err := s.links.EnsureLink(ctx, actor.ID, patientID); err != nil {
			return nil, 0, err
		}
	}

	notes, total, err := s.repo.ListForPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionRead,
		EntityType: "progress_note",
		EntityID:   patientID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, map[string]interface{}{"patientId": patientID.String()}),
	})
	return notes, total, nil
}

// authorizeFinalize allows the author, the encounter's provider, or an
// admin.
func (s *Service) authorizeFinalize(ctx context.Context, actor auth.Principal, n *Note) error {
	if actor.Roles.IsAdmin || n.AuthorID == actor.ID {
		return nil
	}
	if n.EncounterID != nil {
		enc, err := s.encounters.GetByID(ctx, *n.EncounterID)
		if err == nil && enc.ProviderID == actor.ID {
			return nil
		}
	}
	return respond.Forbidden("Forbidden: not author or encounter provider")
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Note, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, respond.NotFound("note not found")
		}
		return nil, err
	}
	return n, nil
}

// provenance builds the non-PHI metadata envelope for note audit rows.
// Clinical content never goes in here.
func (s *Service) provenance(actor auth.Principal, n *Note, mutate ...func(map[string]interface{})) map[string]interface{} {
	extras := map[string]interface{}{"patientId": n.PatientID.String()}
	if n.EncounterID != nil {
		extras["encounterId"] = n.EncounterID.String()
	}
	for _, fn := range mutate {
		fn(extras)
	}
	return audit.ProvenanceMetadata(actor, extras)
}
