package encounter

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
	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/respond"
)

// LinkGate verifies the approved provider-patient connection before any
// clinical operation.
type LinkGate interface {
	EnsureLink(ctx context.Context, providerID, patientID uuid.UUID) (*connection.Link, error)
}

type Service struct {
	repo    Repository
	links   LinkGate
	auditor *audit.Recorder
	logger  zerolog.Logger
}

func NewService(repo Repository, links LinkGate, auditor *audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		links:   links,
		auditor: auditor,
		logger:  logger.With().Str("component", "encounter").Logger(),
	}
}

// Open starts an encounter for a linked patient. The caller must be an
// approved provider with an approved link to the patient.
func (s *Service) Open(ctx context.Context, actor auth.Principal, input OpenInput) (*Encounter, error) {
	if err := auth.RequirePermission(actor, auth.ActionOpenEncounter, auth.RequireApprovedProvider()); err != nil {
		return nil, err
	}

	var issues []respond.Issue
	if strings.TrimSpace(input.Type) == "" {
		issues = append(issues, respond.Issue{Field: "type", Message: "is required"})
	}
	if strings.TrimSpace(input.Mode) == "" {
		issues = append(issues, respond.Issue{Field: "mode", Message: "is required"})
	}
	if len(issues) > 0 {
		return nil, respond.Validation("invalid encounter", issues...)
	}

	if _, err := s.links.EnsureLink(ctx, actor.ID, input.PatientID); err != nil {
		return nil, err
	}

	enc := &Encounter{
		PatientID:     input.PatientID,
		ProviderID:    actor.ID,
		AppointmentID: input.AppointmentID,
		Type:          strings.TrimSpace(input.Type),
		Mode:          strings.TrimSpace(input.Mode),
		StartTime:     time.Now().UTC(),
		Status:        StatusInProgress,
		Location:      input.Location,
	}
	if err := s.repo.Insert(ctx, enc); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionCreate,
		EntityType: "encounter",
		EntityID:   enc.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, map[string]interface{}{"patientId": input.PatientID.String()}),
	})
	return enc, nil
}

// Close finishes or cancels an in-progress encounter. Only the opening
// provider may close it.
func (s *Service) Close(ctx context.Context, actor auth.Principal, id uuid.UUID, status Status) (*Encounter, error) {
	if err := auth.RequirePermission(actor, auth.ActionOpenEncounter, auth.RequireApprovedProvider()); err != nil {
		return nil, err
	}
	if status != StatusFinished && status != StatusCancelled {
		return nil, respond.Validation("invalid status",
			respond.Issue{Field: "status", Message: "must be finished or cancelled"})
	}

	enc, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enc.ProviderID != actor.ID {
		return nil, respond.AccessDenied("encounter belongs to another provider")
	}
	if enc.Status != StatusInProgress {
		return nil, respond.Conflict("encounter is already closed")
	}

	now := time.Now().UTC()
	enc.Status = status
	enc.EndTime = &now
	if err := s.repo.Update(ctx, enc); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionUpdate,
		EntityType: "encounter",
		EntityID:   enc.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, map[string]interface{}{"status": string(status)}),
	})
	return enc, nil
}

// Get returns one encounter, visible only to its provider, its patient, or
// an admin. Reads of clinical records are audited.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Encounter, error) {
	if err := auth.RequirePermission(actor, auth.ActionViewEncounter); err != nil {
		return nil, err
	}

	enc, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enc.ProviderID != actor.ID && enc.PatientID != actor.ID && !actor.Roles.IsAdmin {
		return nil, respond.AccessDenied("encounter is not visible to this account")
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionView,
		EntityType: "encounter",
		EntityID:   enc.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, nil),
	})
	return enc, nil
}

// ListForPrincipal returns the caller's encounters.
func (s *Service) ListForPrincipal(ctx context.Context, actor auth.Principal, status Status, limit, offset int) ([]*Encounter, int, error) {
	if err := auth.RequirePermission(actor, auth.ActionViewEncounter); err != nil {
		return nil, 0, err
	}
	switch {
	case actor.Roles.IsProvider:
		return s.repo.ListForProvider(ctx, actor.ID, status, limit, offset)
	case actor.Roles.IsPatient:
		return s.repo.ListForPatient(ctx, actor.ID, status, limit, offset)
	default:
		return nil, 0, respond.Forbidden("no encounters for this role")
	}
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, respond.NotFound("encounter not found")
		}
		return nil, err
	}
	return enc, nil
}
