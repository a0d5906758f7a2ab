package appointment

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
	"github.com/telecare/telecare/internal/platform/events"
	"github.com/telecare/telecare/internal/platform/respond"
)

// LinkGate verifies the approved provider-patient connection before
// booking.
type LinkGate interface {
	EnsureLink(ctx context.Context, providerID, patientID uuid.UUID) (*connection.Link, error)
}

// transitions lists the legal status moves applied by the owning provider.
// Reschedule is handled separately: it changes the date, never the status.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

type Service struct {
	repo    Repository
	links   LinkGate
	bus     *events.Bus
	auditor *audit.Recorder
	logger  zerolog.Logger
}

func NewService(repo Repository, links LinkGate, bus *events.Bus, auditor *audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		links:   links,
		bus:     bus,
		auditor: auditor,
		logger:  logger.With().Str("component", "appointment").Logger(),
	}
}

// Create books a scheduled appointment. Patients book for themselves; a
// clerk may book on a patient's behalf. The pair must hold an approved
// link.
func (s *Service) Create(ctx context.Context, actor auth.Principal, input CreateInput) (*Appointment, error) {
	if err := auth.RequirePermission(actor, auth.ActionCreateAppointment); err != nil {
		return nil, err
	}

	patientID := actor.ID
	if actor.Roles.IsClerk || actor.Roles.IsAdmin {
		if input.PatientID == uuid.Nil {
			return nil, respond.Validation("invalid appointment",
				respond.Issue{Field: "patientId", Message: "is required when booking on behalf of a patient"})
		}
		patientID = input.PatientID
	}

	var issues []respond.Issue
	if input.Date.Before(time.Now()) {
		issues = append(issues, respond.Issue{Field: "date", Message: "must be in the future"})
	}
	if input.Duration <= 0 {
		issues = append(issues, respond.Issue{Field: "duration", Message: "must be positive minutes"})
	}
	if len(issues) > 0 {
		return nil, respond.Validation("invalid appointment", issues...)
	}

	if _, err := s.links.EnsureLink(ctx, input.ProviderID, patientID); err != nil {
		return nil, err
	}

	appt := &Appointment{
		PatientID:  patientID,
		ProviderID: input.ProviderID,
		Date:       input.Date.UTC(),
		Duration:   input.Duration,
		Status:     StatusScheduled,
	}
	if err := s.repo.Insert(ctx, appt); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionCreate,
		EntityType: "appointment",
		EntityID:   appt.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, map[string]interface{}{"providerId": input.ProviderID.String()}),
	})
	return appt, nil
}

// Accept moves scheduled -> confirmed.
func (s *Service) Accept(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, actor, id, StatusConfirmed, nil)
}

// Decline cancels a scheduled or confirmed appointment, appends the reason
// to the appointment note, and notifies the patient via the event bus.
func (s *Service) Decline(ctx context.Context, actor auth.Principal, id uuid.UUID, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, respond.Validation("invalid decline",
			respond.Issue{Field: "reason", Message: "is required"})
	}

	appt, err := s.transition(ctx, actor, id, StatusCancelled, func(a *Appointment) error {
		if a.Note != "" {
			a.Note += "\n"
		}
		a.Note += "cancelReason:" + reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.Event{
		Topic: events.TopicAppointmentDecline,
		Payload: Declined{
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			ProviderID:    appt.ProviderID,
			Reason:        reason,
		},
	})
	return appt, nil
}

// Start moves confirmed -> in-progress and stamps the meeting start.
func (s *Service) Start(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Appointment, error) {
	now := time.Now().UTC()
	return s.transition(ctx, actor, id, StatusInProgress, func(a *Appointment) error {
		a.MeetingStartAt = &now
		return nil
	})
}

// Complete moves in-progress -> completed and stamps the meeting end.
func (s *Service) Complete(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Appointment, error) {
	now := time.Now().UTC()
	return s.transition(ctx, actor, id, StatusCompleted, func(a *Appointment) error {
		a.MeetingEndAt = &now
		return nil
	})
}

// NoShow records that the patient did not attend. Only allowed once the
// scheduled time has passed.
func (s *Service) NoShow(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, actor, id, StatusNoShow, func(a *Appointment) error {
		if time.Now().UTC().Before(a.Date) {
			return respond.Conflict("appointment time has not passed yet")
		}
		return nil
	})
}

// Reschedule moves the appointment to a new slot. Status is preserved;
// completed and cancelled appointments cannot move.
func (s *Service) Reschedule(ctx context.Context, actor auth.Principal, id uuid.UUID, date time.Time) (*Appointment, error) {
	if err := auth.RequirePermission(actor, auth.ActionManageAppointment, auth.RequireApprovedProvider()); err != nil {
		return nil, err
	}
	if date.Before(time.Now()) {
		return nil, respond.Validation("invalid reschedule",
			respond.Issue{Field: "date", Message: "must be in the future"})
	}

	appt, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCompleted || appt.Status == StatusCancelled {
		return nil, respond.Conflict("appointment can no longer be rescheduled")
	}

	appt.Date = date.UTC()
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionUpdate,
		EntityType: "appointment",
		EntityID:   appt.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, map[string]interface{}{"rescheduledTo": appt.Date.Format(time.RFC3339)}),
	})
	return appt, nil
}

// Get returns one appointment to its provider, its patient, a clerk, or an
// admin.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Appointment, error) {
	if err := auth.RequirePermission(actor, auth.ActionViewAppointments); err != nil {
		return nil, err
	}

	appt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.ProviderID != actor.ID && appt.PatientID != actor.ID &&
		!actor.Roles.IsAdmin && !actor.Roles.IsClerk {
		return nil, respond.AccessDenied("appointment is not visible to this account")
	}
	return appt, nil
}

// ListForPrincipal returns the caller's appointments.
func (s *Service) ListForPrincipal(ctx context.Context, actor auth.Principal, status Status, limit, offset int) ([]*Appointment, int, error) {
	if err := auth.RequirePermission(actor, auth.ActionViewAppointments); err != nil {
		return nil, 0, err
	}
	switch {
	case actor.Roles.IsProvider:
		return s.repo.ListForProvider(ctx, actor.ID, status, limit, offset)
	case actor.Roles.IsPatient:
		return s.repo.ListForPatient(ctx, actor.ID, status, limit, offset)
	default:
		return nil, 0, respond.Forbidden("no appointments for this role")
	}
}

// transition applies one legal status move under the owning provider's
// authority. mutate may veto the move before anything is written.
func (s *Service) transition(ctx context.Context, actor auth.Principal, id uuid.UUID, target Status, mutate func(*Appointment) error) (*Appointment, error) {
	if err := auth.RequirePermission(actor, auth.ActionManageAppointment, auth.RequireApprovedProvider()); err != nil {
		return nil, err
	}

	appt, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !legalTransition(appt.Status, target) {
		return nil, respond.Conflict("cannot move appointment from " + string(appt.Status) + " to " + string(target))
	}

	if mutate != nil {
		if err := mutate(appt); err != nil {
			return nil, err
		}
	}
	appt.Status = target
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionUpdate,
		EntityType: "appointment",
		EntityID:   appt.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, map[string]interface{}{"status": string(target)}),
	})
	return appt, nil
}

func (s *Service) owned(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Appointment, error) {
	appt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.ProviderID != actor.ID && !actor.Roles.IsAdmin {
		return nil, respond.AccessDenied("appointment belongs to another provider")
	}
	return appt, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, respond.NotFound("appointment not found")
		}
		return nil, err
	}
	return appt, nil
}

func legalTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
