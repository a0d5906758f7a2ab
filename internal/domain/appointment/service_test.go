package appointment

import (
	"context"
	"io"
	"strings"
	"testing"
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

type mockRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: map[uuid.UUID]*Appointment{}}
}

func (m *mockRepo) Insert(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	m.appts[appt.ID] = appt
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

func (m *mockRepo) ListForProvider(ctx context.Context, providerID uuid.UUID, status Status, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.ProviderID == providerID && (status == "" || a.Status == status) {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListForPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID && (status == "" || a.Status == status) {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) Update(ctx context.Context, appt *Appointment) error {
	if _, ok := m.appts[appt.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.appts[appt.ID] = appt
	return nil
}

type mockGate struct {
	providerID uuid.UUID
	patientID  uuid.UUID
}

func (m *mockGate) EnsureLink(ctx context.Context, providerID, patientID uuid.UUID) (*connection.Link, error) {
	if providerID == m.providerID && patientID == m.patientID {
		return &connection.Link{ID: uuid.New(), Status: connection.StatusApproved}, nil
	}
	return nil, respond.AccessDenied("no approved connection with this patient")
}

type noopAuditRepo struct{}

func (noopAuditRepo) Insert(ctx context.Context, entry *audit.Log) error { return nil }
func (noopAuditRepo) Search(ctx context.Context, filter audit.SearchFilter, limit, offset int) ([]*audit.Log, int, error) {
	return nil, 0, nil
}
func (noopAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fixture struct {
	repo     *mockRepo
	svc      *Service
	bus      *events.Bus
	provider auth.Principal
	patient  auth.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	repo := newMockRepo()
	bus := events.NewBus(logger)

	providerID := uuid.New()
	patientID := uuid.New()
	gate := &mockGate{providerID: providerID, patientID: patientID}

	return &fixture{
		repo: repo,
		svc:  NewService(repo, gate, bus, audit.NewRecorder(noopAuditRepo{}, logger), logger),
		bus:  bus,
		provider: auth.Principal{
			ID:               providerID,
			Roles:            auth.RoleFlags{IsProvider: true},
			ProviderApproval: auth.ApprovalApproved,
		},
		patient: auth.Principal{ID: patientID, Roles: auth.RoleFlags{IsPatient: true}},
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	re := respond.AsError(err)
	if re == nil {
		t.Fatalf("expected respond.Error, got %v", err)
	}
	return re.Status
}

func booked(t *testing.T, f *fixture) *Appointment {
	t.Helper()
	appt, err := f.svc.Create(context.Background(), f.patient, CreateInput{
		ProviderID: f.provider.ID,
		Date:       time.Now().Add(48 * time.Hour),
		Duration:   30,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return appt
}

func TestCreateRequiresLink(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.patient, CreateInput{
		ProviderID: uuid.New(),
		Date:       time.Now().Add(48 * time.Hour),
		Duration:   30,
	})
	if statusOf(t, err) != 403 {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestCreateRejectsPastDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.patient, CreateInput{
		ProviderID: f.provider.ID,
		Date:       time.Now().Add(-time.Hour),
		Duration:   30,
	})
	if statusOf(t, err) != 400 {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestAcceptConfirms(t *testing.T) {
	f := newFixture(t)
	appt := booked(t, f)

	out, err := f.svc.Accept(context.Background(), f.provider, appt.ID)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if out.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %q", out.Status)
	}
}

func TestDeclineAppendsReasonAndNotifies(t *testing.T) {
	f := newFixture(t)
	appt := booked(t, f)

	done := make(chan Declined, 1)
	f.bus.Subscribe(events.TopicAppointmentDecline, func(ctx context.Context, evt events.Event) {
		done <- evt.Payload.(Declined)
	})

	out, err := f.svc.Decline(context.Background(), f.provider, appt.ID, "patient unavailable")
	if err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if out.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %q", out.Status)
	}
	if !strings.Contains(out.Note, "cancelReason:patient unavailable") {
		t.Errorf("expected reason appended to note, got %q", out.Note)
	}

	f.bus.Wait()
	evt := <-done
	if evt.PatientID != f.patient.ID || evt.Reason != "patient unavailable" {
		t.Errorf("unexpected event payload: %+v", evt)
	}
}

func TestTransitionByNonOwner(t *testing.T) {
	f := newFixture(t)
	appt := booked(t, f)

	other := auth.Principal{
		ID:               uuid.New(),
		Roles:            auth.RoleFlags{IsProvider: true},
		ProviderApproval: auth.ApprovalApproved,
	}
	_, err := f.svc.Accept(context.Background(), other, appt.ID)
	if statusOf(t, err) != 403 {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestIllegalTransitionConflicts(t *testing.T) {
	f := newFixture(t)
	appt := booked(t, f)

	// scheduled -> completed skips confirmed and in-progress.
	_, err := f.svc.Complete(context.Background(), f.provider, appt.ID)
	if statusOf(t, err) != 409 {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestNoShowBeforeScheduledTime(t *testing.T) {
	f := newFixture(t)
	appt := booked(t, f)

	// The slot is 48h out; marking no-show now must conflict.
	_, err := f.svc.NoShow(context.Background(), f.provider, appt.ID)
	if statusOf(t, err) != 409 {
		t.Errorf("expected 409 before the scheduled time, got %v", err)
	}
	stored, _ := f.repo.GetByID(context.Background(), appt.ID)
	if stored.Status != StatusScheduled {
		t.Errorf("vetoed no-show must not change status, got %q", stored.Status)
	}
}

func TestNoShowAfterScheduledTime(t *testing.T) {
	f := newFixture(t)
	appt := booked(t, f)
	f.repo.appts[appt.ID].Date = time.Now().UTC().Add(-time.Hour)

	out, err := f.svc.NoShow(context.Background(), f.provider, appt.ID)
	if err != nil {
		t.Fatalf("no-show failed: %v", err)
	}
	if out.Status != StatusNoShow {
		t.Errorf("expected no-show, got %q", out.Status)
	}
}

func TestMeetingLifecycle(t *testing.T) {
	f := newFixture(t)
	appt := booked(t, f)

	if _, err := f.svc.Accept(context.Background(), f.provider, appt.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	started, err := f.svc.Start(context.Background(), f.provider, appt.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.MeetingStartAt == nil {
		t.Error("expected meeting start stamp")
	}
	completed, err := f.svc.Complete(context.Background(), f.provider, appt.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.MeetingEndAt == nil {
		t.Error("expected meeting end stamp")
	}
}

func TestReschedulePreservesStatus(t *testing.T) {
	f := newFixture(t)
	appt := booked(t, f)

	if _, err := f.svc.Accept(context.Background(), f.provider, appt.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	newDate := time.Now().Add(96 * time.Hour)
	out, err := f.svc.Reschedule(context.Background(), f.provider, appt.ID, newDate)
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if out.Status != StatusConfirmed {
		t.Errorf("reschedule must preserve status, got %q", out.Status)
	}
	if !out.Date.Equal(newDate.UTC()) {
		t.Errorf("expected date moved, got %v", out.Date)
	}
}

func TestRescheduleCancelledConflicts(t *testing.T) {
	f := newFixture(t)
	appt := booked(t, f)

	if _, err := f.svc.Decline(context.Background(), f.provider, appt.ID, "closed"); err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	_, err := f.svc.Reschedule(context.Background(), f.provider, appt.ID, time.Now().Add(96*time.Hour))
	if statusOf(t, err) != 409 {
		t.Errorf("expected 409, got %v", err)
	}
}
