package note

import (
	"context"
	"io"
	"testing"
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

type mockRepo struct {
	notes map[uuid.UUID]*Note
}

func newMockRepo() *mockRepo {
	return &mockRepo{notes: map[uuid.UUID]*Note{}}
}

func (m *mockRepo) Insert(ctx context.Context, n *Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	clone := *n
	m.notes[n.ID] = &clone
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *n
	return &clone, nil
}

func (m *mockRepo) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	var out []*Note
	for _, n := range m.notes {
		if n.PatientID == patientID {
			clone := *n
			out = append(out, &clone)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) UpdateBody(ctx context.Context, id uuid.UUID, body Body) (bool, error) {
	n, ok := m.notes[id]
	if !ok || n.Status != StatusDraft {
		return false, nil
	}
	n.EncounterID = body.EncounterID
	n.Subjective = body.Subjective
	n.Objective = body.Objective
	n.Assessment = body.Assessment
	n.Plan = body.Plan
	n.Summary = body.Summary
	n.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *mockRepo) Finalize(ctx context.Context, id uuid.UUID, signatureHash string, finalizedAt time.Time) (bool, error) {
	n, ok := m.notes[id]
	if !ok || n.Status != StatusDraft {
		return false, nil
	}
	n.Status = StatusFinalized
	n.SignatureHash = &signatureHash
	n.FinalizedAt = &finalizedAt
	return true, nil
}

func (m *mockRepo) MarkAmended(ctx context.Context, id uuid.UUID) (bool, error) {
	n, ok := m.notes[id]
	if !ok || n.Status != StatusFinalized {
		return false, nil
	}
	n.Status = StatusAmended
	return true, nil
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

type mockEncounters struct {
	encounters map[uuid.UUID]*encounter.Encounter
}

func (m *mockEncounters) GetByID(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error) {
	e, ok := m.encounters[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return e, nil
}

type countingAuditRepo struct {
	entries []*audit.Log
}

func (c *countingAuditRepo) Insert(ctx context.Context, entry *audit.Log) error {
	c.entries = append(c.entries, entry)
	return nil
}
func (c *countingAuditRepo) Search(ctx context.Context, filter audit.SearchFilter, limit, offset int) ([]*audit.Log, int, error) {
	return c.entries, len(c.entries), nil
}
func (c *countingAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (c *countingAuditRepo) count(action audit.Action) int {
	n := 0
	for _, e := range c.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

type fixture struct {
	repo       *mockRepo
	auditRepo  *countingAuditRepo
	encounters *mockEncounters
	svc        *Service
	bus        *events.Bus
	author     auth.Principal
	patientID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	repo := newMockRepo()
	auditRepo := &countingAuditRepo{}
	encounters := &mockEncounters{encounters: map[uuid.UUID]*encounter.Encounter{}}
	bus := events.NewBus(logger)

	authorID := uuid.New()
	patientID := uuid.New()
	gate := &mockGate{providerID: authorID, patientID: patientID}

	return &fixture{
		repo:       repo,
		auditRepo:  auditRepo,
		encounters: encounters,
		svc:        NewService(repo, gate, encounters, bus, audit.NewRecorder(auditRepo, logger), logger),
		bus:        bus,
		author: auth.Principal{
			ID:               authorID,
			Email:            "doc@example.com",
			Roles:            auth.RoleFlags{IsProvider: true},
			ProviderApproval: auth.ApprovalApproved,
		},
		patientID: patientID,
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

func draftNote(t *testing.T, f *fixture) *Note {
	t.Helper()
	n, err := f.svc.CreateDraft(context.Background(), f.author, f.patientID, Body{
		Subjective: "cough", Objective: "clear lungs", Assessment: "viral", Plan: "rest",
	})
	if err != nil {
		t.Fatalf("create draft failed: %v", err)
	}
	return n
}

func TestCreateDraftRequiresLink(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateDraft(context.Background(), f.author, uuid.New(), Body{Subjective: "cough"})
	if statusOf(t, err) != 403 {
		t.Errorf("expected 403, got %v", err)
	}
	if respond.AsError(err).Type != "access-denied" {
		t.Errorf("expected access-denied, got %q", respond.AsError(err).Type)
	}
}

func TestCreateDraftRoundtrip(t *testing.T) {
	f := newFixture(t)
	n := draftNote(t, f)

	got, err := f.svc.Get(context.Background(), f.author, n.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Subjective != "cough" || got.Plan != "rest" {
		t.Errorf("fields did not round-trip: %+v", got)
	}
	if got.Status != StatusDraft {
		t.Errorf("expected draft, got %q", got.Status)
	}
}

func TestFinalizeThenSecondFinalizeConflicts(t *testing.T) {
	f := newFixture(t)
	n := draftNote(t, f)

	out, err := f.svc.Finalize(context.Background(), f.author, FinalizeInput{
		NoteID: n.ID, SignatureHash: "abc123",
	})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if out.Status != StatusFinalized {
		t.Errorf("expected finalized, got %q", out.Status)
	}
	if out.SignatureHash == nil || *out.SignatureHash != "abc123" {
		t.Error("expected signature hash stored")
	}
	if out.FinalizedAt == nil {
		t.Error("expected finalizedAt set")
	}

	_, err = f.svc.Finalize(context.Background(), f.author, FinalizeInput{
		NoteID: n.ID, SignatureHash: "def456",
	})
	if statusOf(t, err) != 409 {
		t.Fatalf("expected 409, got %v", err)
	}

	// The losing call must not touch the signature or produce a second
	// audit row.
	stored, _ := f.repo.GetByID(context.Background(), n.ID)
	if *stored.SignatureHash != "abc123" {
		t.Errorf("signature overwritten: %q", *stored.SignatureHash)
	}
	if got := f.auditRepo.count(audit.ActionFinalize); got != 1 {
		t.Errorf("expected exactly 1 finalize audit row, got %d", got)
	}
}

func TestPatientReadsOwnNote(t *testing.T) {
	f := newFixture(t)
	n := draftNote(t, f)

	patient := auth.Principal{ID: f.patientID, Roles: auth.RoleFlags{IsPatient: true}}
	got, err := f.svc.Get(context.Background(), patient, n.ID)
	if err != nil {
		t.Fatalf("patient must read their own note: %v", err)
	}
	if got.ID != n.ID {
		t.Errorf("unexpected note: %+v", got)
	}
}

func TestPatientListsOwnNotes(t *testing.T) {
	f := newFixture(t)
	draftNote(t, f)

	patient := auth.Principal{ID: f.patientID, Roles: auth.RoleFlags{IsPatient: true}}
	notes, total, err := f.svc.ListForPatient(context.Background(), patient, patient.ID, 20, 0)
	if err != nil {
		t.Fatalf("patient must list their own notes: %v", err)
	}
	if total != 1 || len(notes) != 1 {
		t.Errorf("expected 1 note, got %d", total)
	}
}

func TestPatientCannotReadAnotherPatientsNote(t *testing.T) {
	f := newFixture(t)
	n := draftNote(t, f)

	stranger := auth.Principal{ID: uuid.New(), Roles: auth.RoleFlags{IsPatient: true}}
	_, err := f.svc.Get(context.Background(), stranger, n.ID)
	if statusOf(t, err) != 403 {
		t.Errorf("expected 403, got %v", err)
	}
	if _, _, err := f.svc.ListForPatient(context.Background(), stranger, f.patientID, 20, 0); statusOf(t, err) != 403 {
		t.Errorf("expected 403 listing another patient, got %v", err)
	}
}

func TestFinalizeByNonAuthorNonEncounterProvider(t *testing.T) {
	f := newFixture(t)
	n := draftNote(t, f)

	other := auth.Principal{
		ID:               uuid.New(),
		Roles:            auth.RoleFlags{IsProvider: true},
		ProviderApproval: auth.ApprovalApproved,
	}
	_, err := f.svc.Finalize(context.Background(), other, FinalizeInput{
		NoteID: n.ID, SignatureHash: "abc123",
	})
	if statusOf(t, err) != 403 {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestFinalizeByEncounterProvider(t *testing.T) {
	f := newFixture(t)
	encProvider := uuid.New()
	encID := uuid.New()
	f.encounters.encounters[encID] = &encounter.Encounter{
		ID: encID, ProviderID: encProvider, PatientID: f.patientID,
	}

	n, err := f.svc.CreateDraft(context.Background(), f.author, f.patientID, Body{
		EncounterID: &encID, Subjective: "cough",
	})
	if err != nil {
		t.Fatalf("create draft failed: %v", err)
	}

	actor := auth.Principal{
		ID:               encProvider,
		Roles:            auth.RoleFlags{IsProvider: true},
		ProviderApproval: auth.ApprovalApproved,
	}
	if _, err := f.svc.Finalize(context.Background(), actor, FinalizeInput{
		NoteID: n.ID, SignatureHash: "abc123",
	}); err != nil {
		t.Errorf("encounter provider should finalize: %v", err)
	}
}

func TestFinalizeRequiresSignature(t *testing.T) {
	f := newFixture(t)
	n := draftNote(t, f)

	_, err := f.svc.Finalize(context.Background(), f.author, FinalizeInput{NoteID: n.ID})
	if statusOf(t, err) != 400 {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestFinalizePublishesEvent(t *testing.T) {
	f := newFixture(t)
	n := draftNote(t, f)

	done := make(chan Finalized, 1)
	f.bus.Subscribe(events.TopicNoteFinalized, func(ctx context.Context, evt events.Event) {
		done <- evt.Payload.(Finalized)
	})

	if _, err := f.svc.Finalize(context.Background(), f.author, FinalizeInput{
		NoteID: n.ID, SignatureHash: "abc123",
	}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	f.bus.Wait()

	evt := <-done
	if evt.NoteID != n.ID || evt.SignatureHash != "abc123" {
		t.Errorf("unexpected event payload: %+v", evt)
	}
}

func TestUpdateAfterFinalizeConflicts(t *testing.T) {
	f := newFixture(t)
	n := draftNote(t, f)

	if _, err := f.svc.Finalize(context.Background(), f.author, FinalizeInput{
		NoteID: n.ID, SignatureHash: "abc123",
	}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	_, err := f.svc.UpdateDraft(context.Background(), f.author, n.ID, Body{Subjective: "changed"})
	if statusOf(t, err) != 409 {
		t.Fatalf("expected 409, got %v", err)
	}

	// Immutability: the failed edit must leave the content untouched.
	stored, _ := f.repo.GetByID(context.Background(), n.ID)
	if stored.Subjective != "cough" {
		t.Errorf("finalized content mutated: %q", stored.Subjective)
	}
}

func TestUpdateDraftByNonAuthor(t *testing.T) {
	f := newFixture(t)
	n := draftNote(t, f)

	other := auth.Principal{
		ID:               uuid.New(),
		Roles:            auth.RoleFlags{IsProvider: true},
		ProviderApproval: auth.ApprovalApproved,
	}
	_, err := f.svc.UpdateDraft(context.Background(), other, n.ID, Body{Subjective: "changed"})
	if statusOf(t, err) != 403 {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestAmendCreatesFreshDraft(t *testing.T) {
	f := newFixture(t)
	n := draftNote(t, f)

	if _, err := f.svc.Finalize(context.Background(), f.author, FinalizeInput{
		NoteID: n.ID, SignatureHash: "abc123",
	}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	amendment, err := f.svc.Amend(context.Background(), f.author, n.ID, Body{
		Subjective: "corrected history",
	})
	if err != nil {
		t.Fatalf("amend failed: %v", err)
	}
	if amendment.Status != StatusDraft {
		t.Errorf("expected draft amendment, got %q", amendment.Status)
	}
	if amendment.AmendsNoteID == nil || *amendment.AmendsNoteID != n.ID {
		t.Error("expected amendment to reference the original")
	}

	original, _ := f.repo.GetByID(context.Background(), n.ID)
	if original.Status != StatusAmended {
		t.Errorf("expected original amended, got %q", original.Status)
	}
	if original.SignatureHash == nil || *original.SignatureHash != "abc123" {
		t.Error("amend must not touch the original signature")
	}

	// An amended note can never be finalized again.
	_, err = f.svc.Finalize(context.Background(), f.author, FinalizeInput{
		NoteID: n.ID, SignatureHash: "zzz",
	})
	if statusOf(t, err) != 409 {
		t.Errorf("expected 409 finalizing amended note, got %v", err)
	}
}

func TestAmendDraftConflicts(t *testing.T) {
	f := newFixture(t)
	n := draftNote(t, f)

	_, err := f.svc.Amend(context.Background(), f.author, n.ID, Body{})
	if statusOf(t, err) != 409 {
		t.Errorf("expected 409, got %v", err)
	}
}
