package connection

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/domain/audit"
	"github.com/telecare/telecare/internal/domain/identity"
	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/events"
	"github.com/telecare/telecare/internal/platform/respond"
)

// UserDirectory is the slice of the identity service the link workflow
// needs.
type UserDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

type Service struct {
	repo    Repository
	users   UserDirectory
	bus     *events.Bus
	auditor *audit.Recorder
	logger  zerolog.Logger
}

func NewService(repo Repository, users UserDirectory, bus *events.Bus, auditor *audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		bus:     bus,
		auditor: auditor,
		logger:  logger.With().Str("component", "connection").Logger(),
	}
}

// Request creates a pending link from the calling patient to a provider.
// Only one pending or approved link may exist per (provider, patient,
// treatment type).
func (s *Service) Request(ctx context.Context, actor auth.Principal, input RequestInput) (*Link, error) {
	if err := auth.RequirePermission(actor, auth.ActionRequestLink); err != nil {
		return nil, err
	}
	input.TreatmentType = strings.TrimSpace(input.TreatmentType)
	if input.TreatmentType == "" {
		return nil, respond.Validation("invalid request",
			respond.Issue{Field: "treatmentType", Message: "is required"})
	}

	provider, err := s.users.Get(ctx, input.ProviderID)
	if err != nil {
		return nil, err
	}
	if !provider.Roles.IsProvider || provider.ProviderApproval != auth.ApprovalApproved {
		return nil, respond.Validation("invalid request",
			respond.Issue{Field: "providerId", Message: "is not an approved provider"})
	}

	if existing, err := s.repo.FindActive(ctx, input.ProviderID, actor.ID, input.TreatmentType); err == nil && existing != nil {
		return nil, respond.Conflict("a link for this treatment type already exists")
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	link := &Link{
		ProviderID:    input.ProviderID,
		PatientID:     actor.ID,
		TreatmentType: input.TreatmentType,
		Status:        StatusPending,
		CanDisconnect: true,
		RequestedAt:   time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, link); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionCreate,
		EntityType: "provider_patient_link",
		EntityID:   link.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, map[string]interface{}{"providerId": input.ProviderID.String()}),
	})
	return link, nil
}

// Decide records the provider's approve/reject decision on a pending link.
// Only the provider named on the link may decide.
func (s *Service) Decide(ctx context.Context, actor auth.Principal, linkID uuid.UUID, approve bool) (*Link, error) {
	if err := auth.RequirePermission(actor, auth.ActionDecideLink, auth.RequireApprovedProvider()); err != nil {
		return nil, err
	}

	link, err := s.get(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.ProviderID != actor.ID {
		return nil, respond.AccessDenied("link belongs to another provider")
	}
	if link.Status != StatusPending {
		return nil, respond.Conflict("link has already been decided")
	}

	now := time.Now().UTC()
	link.DecidedAt = &now
	if approve {
		link.Status = StatusApproved
	} else {
		link.Status = StatusRejected
	}
	if err := s.repo.Update(ctx, link); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionUpdate,
		EntityType: "provider_patient_link",
		EntityID:   link.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, map[string]interface{}{"decision": string(link.Status)}),
	})

	if approve {
		s.bus.Publish(events.Event{
			Topic: events.TopicLinkApproved,
			Payload: LinkApproved{
				LinkID:     link.ID,
				ProviderID: link.ProviderID,
				PatientID:  link.PatientID,
			},
		})
	}
	return link, nil
}

// Disconnect ends an approved link at the patient's request. Blocked while
// the link carries an outstanding balance or the provider has cleared the
// disconnect flag.
func (s *Service) Disconnect(ctx context.Context, actor auth.Principal, linkID uuid.UUID) (*Link, error) {
	if err := auth.RequirePermission(actor, auth.ActionDisconnectLink); err != nil {
		return nil, err
	}

	link, err := s.get(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.PatientID != actor.ID && !actor.Roles.IsAdmin {
		return nil, respond.AccessDenied("link belongs to another patient")
	}
	if link.Status != StatusApproved {
		return nil, respond.Conflict("only approved links can be disconnected")
	}
	if link.OutstandingBalance > 0 {
		return nil, respond.Forbidden("link has an outstanding balance")
	}
	if !link.CanDisconnect {
		return nil, respond.Forbidden("disconnect is blocked for this link")
	}

	now := time.Now().UTC()
	link.Status = StatusDisconnected
	link.DisconnectedAt = &now
	if err := s.repo.Update(ctx, link); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionDelete,
		EntityType: "provider_patient_link",
		EntityID:   link.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, nil),
	})
	return link, nil
}

// ListForPrincipal returns the caller's links: a provider sees links naming
// them as provider, a patient as patient.
func (s *Service) ListForPrincipal(ctx context.Context, actor auth.Principal, status Status, limit, offset int) ([]*Link, int, error) {
	switch {
	case actor.Roles.IsProvider:
		return s.repo.ListForProvider(ctx, actor.ID, status, limit, offset)
	case actor.Roles.IsPatient:
		return s.repo.ListForPatient(ctx, actor.ID, status, limit, offset)
	default:
		return nil, 0, respond.Forbidden("no links for this role")
	}
}

// EnsureLink is the clinical access gate: it returns the approved link
// between the pair or an access-denied error. Every encounter, note, and
// message operation calls through here.
func (s *Service) EnsureLink(ctx context.Context, providerID, patientID uuid.UUID) (*Link, error) {
	link, err := s.repo.FindApproved(ctx, providerID, patientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, respond.AccessDenied("no approved connection with this patient")
		}
		return nil, err
	}
	return link, nil
}

// AddBalance records a charge (positive delta) or payment (negative delta)
// against the link's outstanding balance.
func (s *Service) AddBalance(ctx context.Context, linkID uuid.UUID, delta int64) error {
	if err := s.repo.AdjustBalance(ctx, linkID, delta); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respond.NotFound("link not found")
		}
		return err
	}
	return nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, respond.NotFound("link not found")
		}
		return nil, err
	}
	return link, nil
}
